package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront-chat/internal/errs"
	"storefront-chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%03d", n)
	}
}

type failingArchive struct {
	*MemoryArchiveRepository
	insertErr error
}

func (f *failingArchive) InsertBatch(ctx context.Context, items []model.ArchivedMessageItem) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MemoryArchiveRepository.InsertBatch(ctx, items)
}

type failingHot struct {
	*MemoryHotRepository
	deleteErr error
}

func (f *failingHot) DeleteByIDs(ctx context.Context, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryHotRepository.DeleteByIDs(ctx, ids)
}

func newTestStore(t *testing.T) (*Store, *MemoryHotRepository, *MemoryArchiveRepository, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	hot := NewMemoryHotRepository()
	archive := NewMemoryArchiveRepository()
	store := NewStore(hot, archive, Options{Now: clk.Now, NewID: sequentialIDs()})
	return store, hot, archive, clk
}

func send(t *testing.T, s *Store, from, to, content string) model.MessageItem {
	t.Helper()
	msg, err := s.CreateMessage(context.Background(), CreateParams{
		ConversationID: "conv-1",
		SenderID:       from,
		ReceiverID:     to,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func TestCreateMessageValidation(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"empty content and no images", CreateParams{ConversationID: "c", SenderID: "a", ReceiverID: "b", Content: "   "}},
		{"missing conversation", CreateParams{SenderID: "a", ReceiverID: "b", Content: "hi"}},
		{"missing receiver", CreateParams{ConversationID: "c", SenderID: "a", Content: "hi"}},
		{"self message", CreateParams{ConversationID: "c", SenderID: "a", ReceiverID: "a", Content: "hi"}},
		{"content too long", CreateParams{ConversationID: "c", SenderID: "a", ReceiverID: "b", Content: strings.Repeat("x", MaxContentLength+1)}},
		{"too many images", CreateParams{ConversationID: "c", SenderID: "a", ReceiverID: "b", Images: make11Images()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.CreateMessage(ctx, tc.params)
			require.Error(t, err)
			assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
		})
	}
}

func make11Images() []string {
	out := make([]string, MaxImages+1)
	for i := range out {
		out[i] = fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
	}
	return out
}

func TestCreateMessageImagesOnly(t *testing.T) {
	store, hot, _, _ := newTestStore(t)

	msg, err := store.CreateMessage(context.Background(), CreateParams{
		ConversationID: "conv-1",
		SenderID:       "cust",
		ReceiverID:     "sell",
		Images:         []string{" https://cdn.example.com/a.jpg ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, msg.Status)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, msg.Images)
	assert.Equal(t, msg.CreatedAt, msg.UpdatedAt)

	stored, ok := hot.Get(msg.MessageID)
	require.True(t, ok)
	assert.Equal(t, msg, stored)
}

func TestCreateMessageCopiesProductSnapshot(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	product := &model.ProductSnapshot{ProductID: "p1", Title: "Lamp", Price: 19.5}

	msg, err := store.CreateMessage(context.Background(), CreateParams{
		ConversationID: "conv-1", SenderID: "cust", ReceiverID: "sell", Content: "is this available?", Product: product,
	})
	require.NoError(t, err)

	product.Title = "changed"
	require.NotNil(t, msg.Product)
	assert.Equal(t, "Lamp", msg.Product.Title)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	store, hot, _, _ := newTestStore(t)
	ctx := context.Background()

	a := send(t, store, "cust", "sell", "one")
	b := send(t, store, "cust", "sell", "two")
	own := send(t, store, "sell", "cust", "reply")

	n, err := store.MarkRead(ctx, "conv-1", "sell")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.MarkRead(ctx, "conv-1", "sell")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, id := range []string{a.MessageID, b.MessageID} {
		m, _ := hot.Get(id)
		assert.Equal(t, model.MessageStatusRead, m.Status)
	}
	m, _ := hot.Get(own.MessageID)
	assert.Equal(t, model.MessageStatusSent, m.Status, "reader's own messages are untouched")
}

func TestStatusNeverRegresses(t *testing.T) {
	store, hot, _, _ := newTestStore(t)
	ctx := context.Background()

	msg := send(t, store, "cust", "sell", "hello")

	n, err := store.MarkDelivered(ctx, "conv-1", "sell")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.MarkRead(ctx, "conv-1", "sell")
	require.NoError(t, err)

	n, err = store.MarkDelivered(ctx, "conv-1", "sell")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := hot.Get(msg.MessageID)
	assert.Equal(t, model.MessageStatusRead, got.Status)
}

func TestMoveArchivesAndDeletes(t *testing.T) {
	store, hot, archive, clk := newTestStore(t)
	ctx := context.Background()

	old := send(t, store, "cust", "sell", "old")
	clk.Advance(31 * 24 * time.Hour)
	fresh := send(t, store, "cust", "sell", "fresh")

	res, err := store.Move(ctx, clk.Now().Add(-30*24*time.Hour), 1000)
	require.NoError(t, err)
	assert.Equal(t, MoveResult{Selected: 1, Archived: 1, Deleted: 1}, res)

	_, inHot := hot.Get(old.MessageID)
	assert.False(t, inHot)
	archived, ok := archive.Get(old.MessageID)
	require.True(t, ok)
	assert.Equal(t, "old", archived.Content)
	assert.Equal(t, old.CreatedAt, archived.CreatedAt)

	_, freshInHot := hot.Get(fresh.MessageID)
	assert.True(t, freshInHot)
}

func TestMoveInsertFailureDeletesNothing(t *testing.T) {
	clk := &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	hot := NewMemoryHotRepository()
	archive := &failingArchive{MemoryArchiveRepository: NewMemoryArchiveRepository(), insertErr: errors.New("archive down")}
	store := NewStore(hot, archive, Options{Now: clk.Now, NewID: sequentialIDs()})

	msg := send(t, store, "cust", "sell", "keep me")
	clk.Advance(31 * 24 * time.Hour)

	_, err := store.Move(context.Background(), clk.Now().Add(-30*24*time.Hour), 1000)
	require.Error(t, err)
	assert.Equal(t, errs.CodeUnavailable, errs.CodeOf(err))

	_, ok := hot.Get(msg.MessageID)
	assert.True(t, ok)
}

func TestMoveDeleteFailureThenReconcile(t *testing.T) {
	clk := &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	hot := &failingHot{MemoryHotRepository: NewMemoryHotRepository(), deleteErr: errors.New("throttled")}
	archive := NewMemoryArchiveRepository()
	store := NewStore(hot, archive, Options{Now: clk.Now, NewID: sequentialIDs()})
	ctx := context.Background()

	msg := send(t, store, "cust", "sell", "twice")
	clk.Advance(31 * 24 * time.Hour)
	cutoff := clk.Now().Add(-30 * 24 * time.Hour)

	_, err := store.Move(ctx, cutoff, 1000)
	require.Error(t, err)

	_, inHot := hot.Get(msg.MessageID)
	_, inArchive := archive.Get(msg.MessageID)
	assert.True(t, inHot)
	assert.True(t, inArchive)

	// Visible once while both copies exist.
	page, err := store.GetHistory(ctx, "conv-1", 1, 30)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)

	hot.deleteErr = nil
	removed, err := store.Reconcile(ctx, cutoff, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, inHot = hot.Get(msg.MessageID)
	assert.False(t, inHot)
}

func TestMoveSkipsAlreadyArchived(t *testing.T) {
	store, hot, archive, clk := newTestStore(t)
	ctx := context.Background()

	msg := send(t, store, "cust", "sell", "again")
	require.NoError(t, archive.InsertBatch(ctx, []model.ArchivedMessageItem{model.ArchiveOf(msg, clk.Now())}))
	clk.Advance(31 * 24 * time.Hour)

	res, err := store.Move(ctx, clk.Now().Add(-30*24*time.Hour), 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Archived)
	assert.Equal(t, 1, res.AlreadyArchived)
	assert.Equal(t, 1, res.Deleted)

	_, inHot := hot.Get(msg.MessageID)
	assert.False(t, inHot)
}

func TestHistoryMergesArchiveInOrder(t *testing.T) {
	store, _, _, clk := newTestStore(t)
	ctx := context.Background()

	first := send(t, store, "cust", "sell", "at T")
	clk.Advance(31 * 24 * time.Hour)
	_, err := store.Move(ctx, clk.Now().Add(-30*24*time.Hour), 1000)
	require.NoError(t, err)
	second := send(t, store, "sell", "cust", "at T+31d")

	page, err := store.GetHistory(ctx, "conv-1", 1, 30)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, first.MessageID, page.Messages[0].MessageID)
	assert.Equal(t, second.MessageID, page.Messages[1].MessageID)
	assert.False(t, page.HasMore)

	require.Len(t, page.Days, 2)
	assert.Equal(t, "2025-03-01", page.Days[0].Date)
	assert.Equal(t, "2025-04-01", page.Days[1].Date)
}

func TestHistoryPagination(t *testing.T) {
	store, _, _, clk := newTestStore(t)
	ctx := context.Background()

	var sent []model.MessageItem
	for i := 0; i < 5; i++ {
		sent = append(sent, send(t, store, "cust", "sell", fmt.Sprintf("msg %d", i)))
		clk.Advance(time.Minute)
	}

	page1, err := store.GetHistory(ctx, "conv-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	assert.Equal(t, sent[3].MessageID, page1.Messages[0].MessageID)
	assert.Equal(t, sent[4].MessageID, page1.Messages[1].MessageID)
	assert.True(t, page1.HasMore)

	page3, err := store.GetHistory(ctx, "conv-1", 3, 2)
	require.NoError(t, err)
	require.Len(t, page3.Messages, 1)
	assert.Equal(t, sent[0].MessageID, page3.Messages[0].MessageID)
	assert.False(t, page3.HasMore)

	page4, err := store.GetHistory(ctx, "conv-1", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page4.Messages)
}

func TestHistoryGroupsByLocalDay(t *testing.T) {
	clk := &clock{now: time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC)}
	loc := time.FixedZone("UTC+2", 2*60*60)
	store := NewStore(NewMemoryHotRepository(), NewMemoryArchiveRepository(), Options{Now: clk.Now, NewID: sequentialIDs(), Location: loc})

	send(t, store, "cust", "sell", "late")
	clk.Advance(time.Hour)
	send(t, store, "cust", "sell", "later")

	page, err := store.GetHistory(context.Background(), "conv-1", 1, 30)
	require.NoError(t, err)
	require.Len(t, page.Days, 1)
	assert.Equal(t, "2025-03-02", page.Days[0].Date)
	assert.Len(t, page.Days[0].Messages, 2)
}

func TestHistoryRejectsPageOutOfRange(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	send(t, store, "cust", "sell", "hi")

	_, err := store.GetHistory(context.Background(), "conv-1", 307445734561825861, 30)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeValidation))

	_, err = store.GetHistory(context.Background(), "conv-1", MaxPage, MaxPageSize)
	require.NoError(t, err)
}

func TestHistoryHasMoreWithRowsInBothPartitions(t *testing.T) {
	clk := &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	hot := &failingHot{MemoryHotRepository: NewMemoryHotRepository()}
	archive := NewMemoryArchiveRepository()
	store := NewStore(hot, archive, Options{Now: clk.Now, NewID: sequentialIDs()})
	ctx := context.Background()

	// old0 is archived normally; old1 and old2 stay behind in hot after a
	// failed delete.
	send(t, store, "cust", "sell", "old0")
	clk.Advance(time.Minute)
	_, err := store.Move(ctx, clk.Now(), 1000)
	require.NoError(t, err)
	send(t, store, "cust", "sell", "old1")
	clk.Advance(time.Minute)
	send(t, store, "cust", "sell", "old2")
	clk.Advance(time.Minute)
	hot.deleteErr = errors.New("throttled")
	_, err = store.Move(ctx, clk.Now(), 1000)
	require.Error(t, err)
	hot.deleteErr = nil
	send(t, store, "sell", "cust", "new")

	page1, err := store.GetHistory(ctx, "conv-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	assert.Equal(t, "old2", page1.Messages[0].Content)
	assert.Equal(t, "new", page1.Messages[1].Content)
	assert.True(t, page1.HasMore)

	page2, err := store.GetHistory(ctx, "conv-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 2)
	assert.Equal(t, "old0", page2.Messages[0].Content)
	assert.Equal(t, "old1", page2.Messages[1].Content)
	assert.False(t, page2.HasMore)
}
