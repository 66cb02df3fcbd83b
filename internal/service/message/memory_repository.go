package message

import (
	"context"
	"sort"
	"sync"

	"storefront-chat/internal/model"
)

type MemoryHotRepository struct {
	mu       sync.Mutex
	messages map[string]model.MessageItem
}

func NewMemoryHotRepository() *MemoryHotRepository {
	return &MemoryHotRepository{messages: make(map[string]model.MessageItem)}
}

func (r *MemoryHotRepository) Insert(ctx context.Context, msg model.MessageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[msg.MessageID]; ok {
		return ErrDuplicate
	}
	r.messages[msg.MessageID] = msg
	return nil
}

func (r *MemoryHotRepository) Get(messageID string) (model.MessageItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	return msg, ok
}

func (r *MemoryHotRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.MessageItem, 0)
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].MessageID > out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryHotRepository) ListOlderThan(ctx context.Context, cutoff string, limit int) ([]model.MessageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.MessageItem, 0)
	for _, m := range r.messages {
		if m.CreatedAt < cutoff {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].MessageID < out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryHotRepository) AdvanceStatus(ctx context.Context, conversationID, receiverID string, to model.MessageStatus, at string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, m := range r.messages {
		if m.ConversationID != conversationID || m.ReceiverID != receiverID {
			continue
		}
		if !m.Status.CanAdvanceTo(to) {
			continue
		}
		m.Status = to
		m.UpdatedAt = at
		r.messages[id] = m
		count++
	}
	return count, nil
}

func (r *MemoryHotRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.messages, id)
	}
	return nil
}

type MemoryArchiveRepository struct {
	mu    sync.Mutex
	items map[string]model.ArchivedMessageItem
}

func NewMemoryArchiveRepository() *MemoryArchiveRepository {
	return &MemoryArchiveRepository{items: make(map[string]model.ArchivedMessageItem)}
}

func (r *MemoryArchiveRepository) InsertBatch(ctx context.Context, items []model.ArchivedMessageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.items[item.OriginalID] = item
	}
	return nil
}

func (r *MemoryArchiveRepository) Get(originalID string) (model.ArchivedMessageItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[originalID]
	return item, ok
}

func (r *MemoryArchiveRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.ArchivedMessageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ArchivedMessageItem, 0)
	for _, item := range r.items {
		if item.ConversationID == conversationID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].OriginalID > out[j].OriginalID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryArchiveRepository) ExistingIDs(ctx context.Context, originalIDs []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range originalIDs {
		if _, ok := r.items[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}
