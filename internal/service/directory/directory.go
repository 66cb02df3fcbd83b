package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-chat/internal/database"
	"storefront-chat/internal/errs"
	"storefront-chat/internal/model"

	"github.com/google/uuid"
)

const DefaultListLimit = 50

// Directory keeps one conversation per customer/seller pair with its
// last-message summary and per-party unread counters.
type Directory struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

func New(repo Repository) *Directory {
	return &Directory{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func NewDynamo(db *database.Database) *Directory {
	return New(NewDynamoRepository(db))
}

func NewMongo(db *database.MongoDatabase) *Directory {
	return New(NewMongoRepository(db))
}

func NewMemory() *Directory {
	return New(NewMemoryRepository())
}

func (d *Directory) SetClock(now func() time.Time) {
	if now != nil {
		d.now = now
	}
}

func mapRepoError(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return errs.NotFound("conversation not found", err)
	}
	return errs.Unavailable(msg, err)
}

// GetOrCreate returns the pair's conversation, creating it when absent. Two
// racing creators both end up with the single row the store accepted.
func (d *Directory) GetOrCreate(ctx context.Context, customerID, sellerID, productID string) (model.ConversationItem, error) {
	customerID = strings.TrimSpace(customerID)
	sellerID = strings.TrimSpace(sellerID)
	if customerID == "" || sellerID == "" {
		return model.ConversationItem{}, errs.Validation("customer and seller are required")
	}
	if customerID == sellerID {
		return model.ConversationItem{}, errs.Validation("customer and seller must differ")
	}

	conv, err := d.repo.GetByPair(ctx, customerID, sellerID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.ConversationItem{}, errs.Unavailable("failed to load conversation", err)
	}

	nowStr := model.FormatTime(d.now())
	conv = model.ConversationItem{
		PK:             model.ConversationPairPK(customerID, sellerID),
		ConversationID: d.newID(),
		CustomerID:     customerID,
		SellerID:       sellerID,
		ProductID:      strings.TrimSpace(productID),
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
	}

	err = d.repo.Create(ctx, conv)
	switch {
	case err == nil:
		return conv, nil
	case errors.Is(err, ErrConflict):
		winner, err := d.repo.GetByPair(ctx, customerID, sellerID)
		if err != nil {
			return model.ConversationItem{}, errs.Unavailable("failed to load conversation", err)
		}
		return winner, nil
	default:
		return model.ConversationItem{}, errs.Unavailable("failed to create conversation", err)
	}
}

func (d *Directory) Get(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	if strings.TrimSpace(conversationID) == "" {
		return model.ConversationItem{}, errs.Validation("conversationId is required")
	}
	conv, err := d.repo.GetByID(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, mapRepoError(err, "failed to load conversation")
	}
	return conv, nil
}

// GetForParty loads a conversation and checks userID takes part in it.
func (d *Directory) GetForParty(ctx context.Context, conversationID, userID string) (model.ConversationItem, model.Role, error) {
	conv, err := d.Get(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, "", err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return model.ConversationItem{}, "", errs.Forbidden("not a participant of this conversation")
	}
	return conv, role, nil
}

func (d *Directory) ListForUser(ctx context.Context, userID string, role model.Role, limit int) ([]model.ConversationItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validation("user is required")
	}
	if !role.Valid() {
		return nil, errs.Validation("role must be customer or seller")
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	convs, err := d.repo.ListForParty(ctx, userID, role, limit)
	if err != nil {
		return nil, errs.Unavailable("failed to list conversations", err)
	}
	return convs, nil
}

// ApplyNewMessage records msg as the conversation's latest message and bumps
// the receiver's unread counter unless they are looking at the conversation.
func (d *Directory) ApplyNewMessage(ctx context.Context, conv model.ConversationItem, msg model.MessageItem, receiverViewing bool) (model.ConversationItem, error) {
	productID := ""
	if msg.Product != nil {
		productID = msg.Product.ProductID
	}

	updated, err := d.repo.SetLastMessage(ctx, conv, model.SummaryOf(msg), productID, msg.CreatedAt)
	if err != nil {
		return model.ConversationItem{}, mapRepoError(err, "failed to update conversation")
	}
	return d.incrementUnless(ctx, updated, msg.ReceiverID, receiverViewing)
}

func (d *Directory) IncrementUnreadUnless(ctx context.Context, conversationID, partyID string, viewing bool) (model.ConversationItem, error) {
	conv, err := d.Get(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}
	return d.incrementUnless(ctx, conv, partyID, viewing)
}

func (d *Directory) incrementUnless(ctx context.Context, conv model.ConversationItem, partyID string, viewing bool) (model.ConversationItem, error) {
	role, ok := conv.RoleOf(partyID)
	if !ok {
		return model.ConversationItem{}, errs.Forbidden("not a participant of this conversation")
	}
	if viewing {
		return conv, nil
	}
	updated, err := d.repo.IncrementUnread(ctx, conv, role)
	if err != nil {
		return model.ConversationItem{}, mapRepoError(err, "failed to update unread count")
	}
	return updated, nil
}

func (d *Directory) ResetUnread(ctx context.Context, conversationID, userID string) (model.ConversationItem, error) {
	conv, role, err := d.GetForParty(ctx, conversationID, userID)
	if err != nil {
		return model.ConversationItem{}, err
	}
	if conv.UnreadFor(role) == 0 {
		return conv, nil
	}
	updated, err := d.repo.ResetUnread(ctx, conv, role)
	if err != nil {
		return model.ConversationItem{}, mapRepoError(err, "failed to reset unread count")
	}
	return updated, nil
}
