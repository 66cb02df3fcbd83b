package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MessagesCollection         = "chat_messages"
	ArchivedMessagesCollection = "chat_archived_messages"
	ConversationsCollection    = "chat_conversations"
)

type MongoDatabase struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoDatabase(ctx context.Context, uri, name string) (*MongoDatabase, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoDatabase{Client: client, DB: client.Database(name)}, nil
}

func (m *MongoDatabase) Collection(name string) *mongo.Collection {
	return m.DB.Collection(name)
}

// EnsureIndexes creates the unique pair constraint on conversations and the
// compound indexes history and archival queries rely on.
func (m *MongoDatabase) EnsureIndexes(ctx context.Context) error {
	messageIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("conversation_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("parties_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("created_idx"),
		},
	}
	if _, err := m.Collection(MessagesCollection).Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	archiveIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("conversation_created_idx"),
		},
	}
	if _, err := m.Collection(ArchivedMessagesCollection).Indexes().CreateMany(ctx, archiveIndexes); err != nil {
		return fmt.Errorf("create archive indexes: %w", err)
	}

	conversationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "sellerId", Value: 1}},
			Options: options.Index().SetName("pair_unique_idx").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("customer_updated_idx"),
		},
		{
			Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("seller_updated_idx"),
		},
	}
	if _, err := m.Collection(ConversationsCollection).Indexes().CreateMany(ctx, conversationIndexes); err != nil {
		return fmt.Errorf("create conversation indexes: %w", err)
	}
	return nil
}

func (m *MongoDatabase) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
