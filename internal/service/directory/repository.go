package directory

import (
	"context"
	"errors"

	"storefront-chat/internal/model"
)

var (
	ErrNotFound = errors.New("directory repository: not found")
	ErrConflict = errors.New("directory repository: pair already exists")
)

// Repository persists conversations. Create must reject a second row for the
// same customer/seller pair with ErrConflict.
type Repository interface {
	Create(ctx context.Context, conv model.ConversationItem) error
	GetByID(ctx context.Context, conversationID string) (model.ConversationItem, error)
	GetByPair(ctx context.Context, customerID, sellerID string) (model.ConversationItem, error)
	// ListForParty returns conversations where userID holds role, most
	// recently updated first.
	ListForParty(ctx context.Context, userID string, role model.Role, limit int) ([]model.ConversationItem, error)
	SetLastMessage(ctx context.Context, conv model.ConversationItem, summary model.MessageSummary, productID, at string) (model.ConversationItem, error)
	IncrementUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error)
	ResetUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error)
}
