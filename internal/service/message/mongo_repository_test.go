package message

import (
	"context"
	"testing"
	"time"

	"storefront-chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestMongoInsertDuplicateKey(t *testing.T) {
	mt := newMockMongo(t)
	mt.Run("duplicate", func(mt *mtest.T) {
		repo := &MongoHotRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		err := repo.Insert(context.Background(), model.MessageItem{MessageID: "m1"})
		require.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestMongoAdvanceStatusFiltersLowerStatuses(t *testing.T) {
	mt := newMockMongo(t)
	mt.Run("advance", func(mt *mtest.T) {
		repo := &MongoHotRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2},
			bson.E{Key: "nModified", Value: 2},
		))

		n, err := repo.AdvanceStatus(context.Background(), "conv-1", "sell", model.MessageStatusRead, "2025-03-01T11:00:00.000000Z")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		ev := mt.GetStartedEvent()
		require.NotNil(t, ev)
		assert.Equal(t, "update", ev.CommandName)
		q := ev.Command.Lookup("updates", "0", "q")
		assert.Equal(t, "conv-1", q.Document().Lookup("conversationId").StringValue())
		assert.Equal(t, "sell", q.Document().Lookup("receiverId").StringValue())
		assert.Equal(t, "sent", q.Document().Lookup("status", "$in", "0").StringValue())
		assert.Equal(t, "delivered", q.Document().Lookup("status", "$in", "1").StringValue())
		assert.Equal(t, "read", ev.Command.Lookup("updates", "0", "u", "$set", "status").StringValue())
		assert.True(t, ev.Command.Lookup("updates", "0", "multi").Boolean())
	})
}

func TestMongoListOlderThanSortsOldestFirst(t *testing.T) {
	mt := newMockMongo(t)
	mt.Run("aged", func(mt *mtest.T) {
		repo := &MongoHotRepository{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "m1"}, {Key: "createdAt", Value: "2025-01-01T00:00:01.000000Z"}},
			bson.D{{Key: "_id", Value: "m2"}, {Key: "createdAt", Value: "2025-01-01T00:00:02.000000Z"}},
		))

		cutoff := "2025-02-01T00:00:00.000000Z"
		out, err := repo.ListOlderThan(context.Background(), cutoff, 50)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "m1", out[0].MessageID)

		ev := mt.GetStartedEvent()
		require.NotNil(t, ev)
		assert.Equal(t, "find", ev.CommandName)
		assert.Equal(t, cutoff, ev.Command.Lookup("filter", "createdAt", "$lt").StringValue())
		assert.Equal(t, "createdAt", ev.Command.Lookup("sort").Document().Index(0).Key())
		assert.EqualValues(t, 1, ev.Command.Lookup("sort", "createdAt").AsInt64())
		assert.EqualValues(t, 50, ev.Command.Lookup("limit").AsInt64())
	})
}

func TestMongoInsertBatchUpsertsByOriginalID(t *testing.T) {
	mt := newMockMongo(t)
	mt.Run("upsert", func(mt *mtest.T) {
		repo := &MongoArchiveRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		items := []model.ArchivedMessageItem{
			model.ArchiveOf(model.MessageItem{MessageID: "m1", ConversationID: "conv-1"}, at),
			model.ArchiveOf(model.MessageItem{MessageID: "m2", ConversationID: "conv-1"}, at),
		}
		require.NoError(t, repo.InsertBatch(context.Background(), items))

		ev := mt.GetStartedEvent()
		require.NotNil(t, ev)
		assert.Equal(t, "update", ev.CommandName)
		assert.False(t, ev.Command.Lookup("ordered").Boolean())
		for i, id := range []string{"m1", "m2"} {
			idx := []string{"0", "1"}[i]
			assert.Equal(t, id, ev.Command.Lookup("updates", idx, "q", "_id").StringValue())
			assert.True(t, ev.Command.Lookup("updates", idx, "upsert").Boolean())
			assert.Equal(t, id, ev.Command.Lookup("updates", idx, "u", "_id").StringValue())
		}
	})
}

func TestMongoExistingIDs(t *testing.T) {
	mt := newMockMongo(t)
	mt.Run("ids", func(mt *mtest.T) {
		repo := &MongoArchiveRepository{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "m1"}},
			bson.D{{Key: "_id", Value: "m3"}},
		))

		got, err := repo.ExistingIDs(context.Background(), []string{"m1", "m2", "m3"})
		require.NoError(t, err)
		assert.Equal(t, map[string]struct{}{"m1": {}, "m3": {}}, got)

		ev := mt.GetStartedEvent()
		require.NotNil(t, ev)
		assert.Equal(t, "m2", ev.Command.Lookup("filter", "_id", "$in", "1").StringValue())
		assert.EqualValues(t, 1, ev.Command.Lookup("projection", "_id").AsInt64())
	})
}
