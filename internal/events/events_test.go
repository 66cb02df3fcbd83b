package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisherKeysByConversation(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Record{
		Type:           TypeMessageSent,
		ConversationID: "conv-1",
		Data:           map[string]string{"messageId": "m1"},
		OccurredAt:     at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "conv-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeMessageSent, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "message.sent", decoded["type"])
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &captureWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), Record{Type: TypeMessagesRead, ConversationID: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "messages.read")
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	p := New(nil, "chat.events")
	_, ok := p.(NoopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), Record{}))
}

// gatedPublisher blocks every write until gate is closed.
type gatedPublisher struct {
	gate    chan struct{}
	mu      sync.Mutex
	records []Record
	closed  bool
}

func (g *gatedPublisher) Publish(_ context.Context, rec Record) error {
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, rec)
	return nil
}

func (g *gatedPublisher) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *gatedPublisher) conversations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, r := range g.records {
		out = append(out, r.ConversationID)
	}
	return out
}

func TestAsyncPublishDoesNotWaitForWriter(t *testing.T) {
	inner := &gatedPublisher{gate: make(chan struct{})}
	p := NewAsync(inner, 8)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for _, c := range []string{"c1", "c2", "c3"} {
			assert.NoError(t, p.Publish(context.Background(), Record{Type: TypeMessageSent, ConversationID: c}))
		}
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled writer")
	}

	close(inner.gate)
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"c1", "c2", "c3"}, inner.conversations())
	assert.True(t, inner.closed)
}

func TestAsyncDropsWhenBufferFull(t *testing.T) {
	inner := &gatedPublisher{gate: make(chan struct{})}
	p := NewAsync(inner, 1)

	// The writer takes at most one record off the buffer before blocking,
	// so the third publish finds the buffer full.
	var full error
	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), Record{ConversationID: "c"}); err != nil {
			full = err
		}
	}
	assert.ErrorIs(t, full, ErrBufferFull)

	close(inner.gate)
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), Record{}), ErrClosed)
	require.NoError(t, p.Close())
}

func TestNewWithBrokersIsAsync(t *testing.T) {
	p := New([]string{"localhost:9092"}, "chat.events")
	_, ok := p.(*AsyncPublisher)
	assert.True(t, ok)
	require.NoError(t, p.Close())
}
