package message

import (
	"context"
	"fmt"

	"storefront-chat/internal/database"
	"storefront-chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoHotRepository struct {
	coll *mongo.Collection
}

func NewMongoHotRepository(db *database.MongoDatabase) *MongoHotRepository {
	return &MongoHotRepository{coll: db.Collection(database.MessagesCollection)}
}

func (r *MongoHotRepository) Insert(ctx context.Context, msg model.MessageItem) error {
	_, err := r.coll.InsertOne(ctx, msg)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MongoHotRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	out := make([]model.MessageItem, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (r *MongoHotRepository) ListOlderThan(ctx context.Context, cutoff string, limit int) ([]model.MessageItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find aged messages: %w", err)
	}
	out := make([]model.MessageItem, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (r *MongoHotRepository) AdvanceStatus(ctx context.Context, conversationID, receiverID string, to model.MessageStatus, at string) (int, error) {
	lower := model.StatusesBefore(to)
	if len(lower) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"conversationId": conversationID,
		"receiverId":     receiverID,
		"status":         bson.M{"$in": lower},
	}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": at}}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("advance message status: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (r *MongoHotRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

type MongoArchiveRepository struct {
	coll *mongo.Collection
}

func NewMongoArchiveRepository(db *database.MongoDatabase) *MongoArchiveRepository {
	return &MongoArchiveRepository{coll: db.Collection(database.ArchivedMessagesCollection)}
}

// InsertBatch upserts by original id so a retried batch replaces rather than
// duplicates what an earlier attempt wrote.
func (r *MongoArchiveRepository) InsertBatch(ctx context.Context, items []model.ArchivedMessageItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": item.OriginalID}).
			SetReplacement(item).
			SetUpsert(true))
	}
	if _, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("write archive batch: %w", err)
	}
	return nil
}

func (r *MongoArchiveRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.ArchivedMessageItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find archived messages: %w", err)
	}
	out := make([]model.ArchivedMessageItem, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode archived messages: %w", err)
	}
	return out, nil
}

func (r *MongoArchiveRepository) ExistingIDs(ctx context.Context, originalIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(originalIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": originalIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find archived ids: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode archived id: %w", err)
		}
		out[row.ID] = struct{}{}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived ids: %w", err)
	}
	return out, nil
}
