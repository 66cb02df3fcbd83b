package directory

import (
	"context"
	"errors"
	"fmt"

	"storefront-chat/internal/database"
	"storefront-chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *database.MongoDatabase) *MongoRepository {
	return &MongoRepository{coll: db.Collection(database.ConversationsCollection)}
}

// Create is guarded by the unique {customerId, sellerId} index.
func (r *MongoRepository) Create(ctx context.Context, conv model.ConversationItem) error {
	_, err := r.coll.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (model.ConversationItem, error) {
	var conv model.ConversationItem
	err := r.coll.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.ConversationItem{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationItem{}, fmt.Errorf("find conversation: %w", err)
	}
	return conv, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	return r.findOne(ctx, bson.M{"_id": conversationID})
}

func (r *MongoRepository) GetByPair(ctx context.Context, customerID, sellerID string) (model.ConversationItem, error) {
	return r.findOne(ctx, bson.M{"customerId": customerID, "sellerId": sellerID})
}

func (r *MongoRepository) ListForParty(ctx context.Context, userID string, role model.Role, limit int) ([]model.ConversationItem, error) {
	field := "customerId"
	if role == model.RoleSeller {
		field = "sellerId"
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.coll.Find(ctx, bson.M{field: userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]model.ConversationItem, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) update(ctx context.Context, conv model.ConversationItem, update bson.M) (model.ConversationItem, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.ConversationItem
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": conv.ConversationID}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.ConversationItem{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationItem{}, fmt.Errorf("update conversation: %w", err)
	}
	return updated, nil
}

func (r *MongoRepository) SetLastMessage(ctx context.Context, conv model.ConversationItem, summary model.MessageSummary, productID, at string) (model.ConversationItem, error) {
	set := bson.M{"lastMessage": summary, "updatedAt": at}
	if productID != "" {
		set["productId"] = productID
	}
	return r.update(ctx, conv, bson.M{"$set": set})
}

func (r *MongoRepository) IncrementUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(ctx, conv, bson.M{"$inc": bson.M{model.UnreadAttr(role): 1}})
}

func (r *MongoRepository) ResetUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(ctx, conv, bson.M{"$set": bson.M{model.UnreadAttr(role): 0}})
}
