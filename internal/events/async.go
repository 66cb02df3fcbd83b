package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-chat/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultAsyncBuffer = 1024
	writeTimeout       = 2 * time.Second
)

var (
	ErrBufferFull = errors.New("events: export buffer full")
	ErrClosed     = errors.New("events: publisher closed")
)

// AsyncPublisher hands records to a single background writer. Publish never
// waits on the wrapped publisher, and records leave in the order they were
// published.
type AsyncPublisher struct {
	next    Publisher
	records chan Record
	done    chan struct{}
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Publisher, buffer int) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	p := &AsyncPublisher{
		next:    next,
		records: make(chan Record, buffer),
		done:    make(chan struct{}),
		log:     logger.L().Named("events"),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for rec := range p.records {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.next.Publish(ctx, rec)
		cancel()
		if err != nil {
			p.log.Warn("event write failed",
				zap.String("type", rec.Type),
				zap.String("conversation_id", rec.ConversationID),
				zap.Error(err),
			)
		}
	}
}

// Publish queues rec. A full buffer drops the record and reports ErrBufferFull.
func (p *AsyncPublisher) Publish(_ context.Context, rec Record) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.records <- rec:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting records, writes out what is queued, then closes the
// wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.records)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
