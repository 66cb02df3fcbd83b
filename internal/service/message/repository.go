package message

import (
	"context"
	"errors"

	"storefront-chat/internal/model"
)

var ErrDuplicate = errors.New("message repository: duplicate id")

// HotRepository holds live messages.
type HotRepository interface {
	Insert(ctx context.Context, msg model.MessageItem) error
	// ListByConversation returns up to limit messages, newest first.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
	// ListOlderThan returns up to limit messages created before cutoff, oldest first.
	ListOlderThan(ctx context.Context, cutoff string, limit int) ([]model.MessageItem, error)
	// AdvanceStatus moves every message addressed to receiverID whose status
	// ranks below to, and returns how many changed.
	AdvanceStatus(ctx context.Context, conversationID, receiverID string, to model.MessageStatus, at string) (int, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// ArchiveRepository holds aged-out messages keyed by their original id.
// InsertBatch must be idempotent per OriginalID.
type ArchiveRepository interface {
	InsertBatch(ctx context.Context, items []model.ArchivedMessageItem) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.ArchivedMessageItem, error)
	ExistingIDs(ctx context.Context, originalIDs []string) (map[string]struct{}, error)
}
