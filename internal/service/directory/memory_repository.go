package directory

import (
	"context"
	"sort"
	"sync"

	"storefront-chat/internal/model"
)

type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]model.ConversationItem
	byPair map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]model.ConversationItem),
		byPair: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, conv model.ConversationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPair[conv.PK]; ok {
		return ErrConflict
	}
	r.byPair[conv.PK] = conv.ConversationID
	r.byID[conv.ConversationID] = conv
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conv, nil
}

func (r *MemoryRepository) GetByPair(ctx context.Context, customerID, sellerID string) (model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPair[model.ConversationPairPK(customerID, sellerID)]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return r.byID[id], nil
}

// Count reports how many rows exist for the pair.
func (r *MemoryRepository) Count(customerID, sellerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, conv := range r.byID {
		if conv.CustomerID == customerID && conv.SellerID == sellerID {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) ListForParty(ctx context.Context, userID string, role model.Role, limit int) ([]model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ConversationItem, 0)
	for _, conv := range r.byID {
		if (role == model.RoleCustomer && conv.CustomerID == userID) ||
			(role == model.RoleSeller && conv.SellerID == userID) {
			out = append(out, conv)
		}
	}
	sortByUpdated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) update(conversationID string, fn func(*model.ConversationItem)) (model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	fn(&conv)
	r.byID[conversationID] = conv
	return conv, nil
}

func (r *MemoryRepository) SetLastMessage(ctx context.Context, conv model.ConversationItem, summary model.MessageSummary, productID, at string) (model.ConversationItem, error) {
	return r.update(conv.ConversationID, func(c *model.ConversationItem) {
		s := summary
		c.LastMessage = &s
		c.UpdatedAt = at
		if productID != "" {
			c.ProductID = productID
		}
	})
}

func (r *MemoryRepository) IncrementUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(conv.ConversationID, func(c *model.ConversationItem) {
		if role == model.RoleSeller {
			c.SellerUnread++
		} else {
			c.CustomerUnread++
		}
	})
}

func (r *MemoryRepository) ResetUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(conv.ConversationID, func(c *model.ConversationItem) {
		if role == model.RoleSeller {
			c.SellerUnread = 0
		} else {
			c.CustomerUnread = 0
		}
	})
}

func sortByUpdated(convs []model.ConversationItem) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].UpdatedAt != convs[j].UpdatedAt {
			return convs[i].UpdatedAt > convs[j].UpdatedAt
		}
		return convs[i].ConversationID > convs[j].ConversationID
	})
}
