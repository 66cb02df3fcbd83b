package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront-chat/internal/model"
	"storefront-chat/internal/service/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func seed(t *testing.T, store *message.Store, n int) []model.MessageItem {
	t.Helper()
	out := make([]model.MessageItem, 0, n)
	for i := 0; i < n; i++ {
		msg, err := store.CreateMessage(context.Background(), message.CreateParams{
			ConversationID: "conv-1",
			SenderID:       "cust",
			ReceiverID:     "sell",
			Content:        fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func TestSweepOnceArchivesInBatches(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	hot := message.NewMemoryHotRepository()
	arch := message.NewMemoryArchiveRepository()
	store := message.NewStore(hot, arch, message.Options{Now: clk.Now})

	old := seed(t, store, 5)
	clk.now = clk.now.Add(31 * 24 * time.Hour)
	fresh := seed(t, store, 1)

	sweeper := NewSweeper(store, Config{Retention: 30 * 24 * time.Hour, BatchSize: 2})
	sweeper.SetClock(clk.Now)

	report, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Archived)
	assert.Equal(t, 5, report.Deleted)
	assert.Equal(t, 3, report.Batches)

	for _, m := range old {
		_, inHot := hot.Get(m.MessageID)
		archived, inArchive := arch.Get(m.MessageID)
		assert.False(t, inHot)
		require.True(t, inArchive)
		assert.Equal(t, m.MessageID, archived.OriginalID)
	}
	_, freshInHot := hot.Get(fresh[0].MessageID)
	assert.True(t, freshInHot)
}

type scriptedMover struct {
	reconcileErr error
	moves        []message.MoveResult
	moveErr      error
	reconcileCut time.Time
	calls        int
}

func (m *scriptedMover) Reconcile(_ context.Context, cutoff time.Time, _ int) (int, error) {
	m.reconcileCut = cutoff
	return 2, m.reconcileErr
}

func (m *scriptedMover) Move(_ context.Context, _ time.Time, _ int) (message.MoveResult, error) {
	m.calls++
	if len(m.moves) == 0 {
		return message.MoveResult{}, m.moveErr
	}
	res := m.moves[0]
	m.moves = m.moves[1:]
	return res, nil
}

func TestSweepOnceReconcilesFirstAndUsesRetention(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mover := &scriptedMover{}
	sweeper := NewSweeper(mover, Config{Retention: 48 * time.Hour, BatchSize: 10})
	sweeper.SetClock(func() time.Time { return now })

	report, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reconciled)
	assert.Equal(t, now.Add(-48*time.Hour), mover.reconcileCut)
	assert.Equal(t, 1, mover.calls)
}

func TestSweepOnceContinuesAfterReconcileFailure(t *testing.T) {
	mover := &scriptedMover{
		reconcileErr: errors.New("scan failed"),
		moves:        []message.MoveResult{{Selected: 3, Archived: 3, Deleted: 3}},
	}
	sweeper := NewSweeper(mover, Config{BatchSize: 10})

	report, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Reconciled)
	assert.Equal(t, 3, report.Archived)
}

func TestSweepOnceReturnsMoveError(t *testing.T) {
	mover := &scriptedMover{moveErr: errors.New("archive unavailable")}
	sweeper := NewSweeper(mover, Config{BatchSize: 10})

	_, err := sweeper.SweepOnce(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	mover := &scriptedMover{}
	sweeper := NewSweeper(mover, Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
