package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-chat/internal/bus"
	"storefront-chat/internal/catalog"
	"storefront-chat/internal/dto"
	"storefront-chat/internal/errs"
	"storefront-chat/internal/events"
	"storefront-chat/internal/logger"
	"storefront-chat/internal/model"
	"storefront-chat/internal/presence"
	"storefront-chat/internal/service/directory"
	"storefront-chat/internal/service/message"

	"go.uber.org/zap"
)

// Identity is the authenticated caller. Role only matters when a message
// opens a new conversation.
type Identity struct {
	UserID    string
	Role      model.Role
	SessionID string
}

// Publisher fans events out to live sessions.
type Publisher interface {
	PublishToUser(userID string, ev bus.Event) int
	PublishToUserExcept(userID string, ev bus.Event, exceptSessionID string) int
	PublishToConversation(conversationID string, ev bus.Event, exceptUserID string) int
	PublishToWatchers(userID string, ev bus.Event) int
}

// ViewTracker answers whether a party is looking at a conversation right now.
type ViewTracker interface {
	IsViewing(userID, conversationID string) bool
}

type PresenceTracker interface {
	StartTyping(conversationID, userID string)
	StopTyping(conversationID, userID string)
	Lookup(ctx context.Context, userID string) presence.Record
}

type Deps struct {
	Messages  *message.Store
	Directory *directory.Directory
	Publisher Publisher
	Viewing   ViewTracker
	Presence  PresenceTracker
	Catalog   catalog.Provider
	// Events is called under the conversation lock and must not block;
	// events.New returns a buffered publisher.
	Events    events.Publisher
	Logger    *zap.Logger
}

type Service struct {
	messages  *message.Store
	directory *directory.Directory
	publisher Publisher
	viewing   ViewTracker
	presence  PresenceTracker
	catalog   catalog.Provider
	events    events.Publisher
	locks     keyedMutex
	now       func() time.Time
	log       *zap.Logger
}

func NewService(deps Deps) *Service {
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.L()
	}
	return &Service{
		messages:  deps.Messages,
		directory: deps.Directory,
		publisher: deps.Publisher,
		viewing:   deps.Viewing,
		presence:  deps.Presence,
		catalog:   deps.Catalog,
		events:    deps.Events,
		now:       time.Now,
		log:       deps.Logger.Named("chat"),
	}
}

type SendParams struct {
	ConversationID string
	ReceiverID     string
	Content        string
	Images         []string
	ProductID      string
	Product        *model.ProductSnapshot
}

type SendResult struct {
	Message      model.MessageItem
	Conversation model.ConversationItem
}

func requireUser(id Identity) error {
	if strings.TrimSpace(id.UserID) == "" {
		return errs.New(errs.CodeUnauthorized, "authentication required", nil)
	}
	return nil
}

// resolveConversation finds the thread a send belongs to. Without a
// conversation id the caller's role decides which side of the pair they are.
func (s *Service) resolveConversation(ctx context.Context, id Identity, params SendParams) (model.ConversationItem, string, error) {
	receiverID := strings.TrimSpace(params.ReceiverID)

	if convID := strings.TrimSpace(params.ConversationID); convID != "" {
		conv, _, err := s.directory.GetForParty(ctx, convID, id.UserID)
		if err != nil {
			return model.ConversationItem{}, "", err
		}
		counterpart := conv.Counterpart(id.UserID)
		if receiverID != "" && receiverID != counterpart {
			return model.ConversationItem{}, "", errs.Validation("receiverId does not match the conversation")
		}
		return conv, counterpart, nil
	}

	if receiverID == "" {
		return model.ConversationItem{}, "", errs.Validation("conversationId or receiverId is required")
	}
	if receiverID == id.UserID {
		return model.ConversationItem{}, "", errs.Validation("cannot message yourself")
	}

	customerID, sellerID := id.UserID, receiverID
	if id.Role == model.RoleSeller {
		customerID, sellerID = receiverID, id.UserID
	}
	conv, err := s.directory.GetOrCreate(ctx, customerID, sellerID, params.ProductID)
	if err != nil {
		return model.ConversationItem{}, "", err
	}
	return conv, receiverID, nil
}

// resolveProduct snapshots the referenced product. The catalog wins over a
// client-supplied snapshot; without a catalog the client copy is kept.
func (s *Service) resolveProduct(ctx context.Context, params SendParams) (*model.ProductSnapshot, error) {
	productID := strings.TrimSpace(params.ProductID)
	if productID == "" && params.Product != nil {
		productID = strings.TrimSpace(params.Product.ProductID)
	}
	if productID == "" {
		if params.Product != nil {
			return nil, errs.Validation("product requires a productId")
		}
		return nil, nil
	}

	if s.catalog == nil {
		if params.Product != nil {
			snap := *params.Product
			snap.ProductID = productID
			return &snap, nil
		}
		return &model.ProductSnapshot{ProductID: productID}, nil
	}

	snap, err := s.catalog.Snapshot(ctx, productID)
	switch {
	case err == nil:
		return &snap, nil
	case errors.Is(err, catalog.ErrProductNotFound):
		return nil, errs.Validation("unknown product")
	case params.Product != nil:
		s.log.Warn("catalog lookup failed, keeping client snapshot", zap.String("product_id", productID), zap.Error(err))
		fallback := *params.Product
		fallback.ProductID = productID
		return &fallback, nil
	default:
		return nil, errs.Unavailable("product catalog unavailable", err)
	}
}

func hasBody(params SendParams) bool {
	if strings.TrimSpace(params.Content) != "" {
		return true
	}
	for _, img := range params.Images {
		if strings.TrimSpace(img) != "" {
			return true
		}
	}
	return false
}

// SendMessage persists a message and only then tells anyone about it.
func (s *Service) SendMessage(ctx context.Context, id Identity, params SendParams) (SendResult, error) {
	if err := requireUser(id); err != nil {
		return SendResult{}, err
	}
	if !hasBody(params) {
		return SendResult{}, errs.Validation("message must have content or at least one image")
	}

	conv, receiverID, err := s.resolveConversation(ctx, id, params)
	if err != nil {
		return SendResult{}, err
	}
	product, err := s.resolveProduct(ctx, params)
	if err != nil {
		return SendResult{}, err
	}

	unlock := s.locks.lock(conv.ConversationID)
	defer unlock()

	msg, err := s.messages.CreateMessage(ctx, message.CreateParams{
		ConversationID: conv.ConversationID,
		SenderID:       id.UserID,
		ReceiverID:     receiverID,
		Content:        params.Content,
		Images:         params.Images,
		Product:        product,
	})
	if err != nil {
		return SendResult{}, err
	}

	viewing := s.viewing != nil && s.viewing.IsViewing(receiverID, conv.ConversationID)
	updated, err := s.directory.ApplyNewMessage(ctx, conv, msg, viewing)
	if err != nil {
		// The message is durable; a stale summary heals on the next send.
		s.log.Error("failed to update conversation after send",
			zap.String("conversation_id", conv.ConversationID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		updated = conv
	}

	payload := dto.MessageFrom(msg)
	ev := bus.NewEvent(bus.EventNewMessage, conv.ConversationID, payload)
	reached := 0
	if s.publisher != nil {
		reached = s.publisher.PublishToUser(receiverID, ev)
		s.publisher.PublishToUserExcept(id.UserID, ev, id.SessionID)
	}

	if reached > 0 {
		if n := s.markDelivered(ctx, conv.ConversationID, receiverID, id.UserID); n > 0 {
			msg.Status = model.MessageStatusDelivered
		}
	}

	s.export(conv.ConversationID, events.TypeMessageSent, payload)

	return SendResult{Message: msg, Conversation: updated}, nil
}

// markDelivered must run under the conversation lock.
func (s *Service) markDelivered(ctx context.Context, conversationID, receiverID, senderID string) int {
	n, err := s.messages.MarkDelivered(ctx, conversationID, receiverID)
	if err != nil {
		s.log.Warn("failed to mark messages delivered",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return 0
	}
	if n > 0 && s.publisher != nil {
		s.publisher.PublishToUser(senderID, bus.NewEvent(bus.EventMessagesDelivered, conversationID, dto.MessagesDeliveredPayload{
			ReceiverID:  receiverID,
			Count:       n,
			DeliveredAt: model.FormatTime(s.now()),
		}))
	}
	return n
}

type MarkReadResult struct {
	Updated      int
	Conversation model.ConversationItem
}

// MarkRead advances the caller's incoming messages to read, clears their
// unread counter, and tells the other party once both are committed.
func (s *Service) MarkRead(ctx context.Context, id Identity, conversationID string) (MarkReadResult, error) {
	if err := requireUser(id); err != nil {
		return MarkReadResult{}, err
	}
	conv, _, err := s.directory.GetForParty(ctx, conversationID, id.UserID)
	if err != nil {
		return MarkReadResult{}, err
	}

	unlock := s.locks.lock(conv.ConversationID)
	defer unlock()

	n, err := s.messages.MarkRead(ctx, conv.ConversationID, id.UserID)
	if err != nil {
		return MarkReadResult{}, err
	}
	updated, err := s.directory.ResetUnread(ctx, conv.ConversationID, id.UserID)
	if err != nil {
		return MarkReadResult{}, err
	}

	if n > 0 {
		payload := dto.MessagesReadPayload{
			ReaderID: id.UserID,
			Count:    n,
			ReadAt:   model.FormatTime(s.now()),
		}
		if s.publisher != nil {
			s.publisher.PublishToUser(conv.Counterpart(id.UserID), bus.NewEvent(bus.EventMessagesRead, conv.ConversationID, payload))
		}
		s.export(conv.ConversationID, events.TypeMessagesRead, payload)
	}
	return MarkReadResult{Updated: n, Conversation: updated}, nil
}

// GetHistory marks the caller's pending messages delivered, then returns one
// page.
func (s *Service) GetHistory(ctx context.Context, id Identity, conversationID string, page, pageSize int) (message.History, error) {
	if err := requireUser(id); err != nil {
		return message.History{}, err
	}
	conv, _, err := s.directory.GetForParty(ctx, conversationID, id.UserID)
	if err != nil {
		return message.History{}, err
	}

	unlock := s.locks.lock(conv.ConversationID)
	s.markDelivered(ctx, conv.ConversationID, id.UserID, conv.Counterpart(id.UserID))
	unlock()

	return s.messages.GetHistory(ctx, conv.ConversationID, page, pageSize)
}

func (s *Service) ListConversations(ctx context.Context, id Identity, role model.Role, limit int) ([]model.ConversationItem, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if role == "" {
		role = id.Role
	}
	if role == "" {
		role = model.RoleCustomer
	}
	return s.directory.ListForUser(ctx, id.UserID, role, limit)
}

func (s *Service) Presence(ctx context.Context, userID string) (presence.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return presence.Record{}, errs.Validation("userId is required")
	}
	if s.presence == nil {
		return presence.Record{UserID: userID}, nil
	}
	return s.presence.Lookup(ctx, userID), nil
}

// PresenceChanged forwards presence transitions to every session watching
// the user.
func (s *Service) PresenceChanged(rec presence.Record) {
	if s.publisher == nil {
		return
	}
	payload := dto.Presence{UserID: rec.UserID, Online: rec.Online}
	if !rec.LastSeen.IsZero() {
		payload.LastSeen = model.FormatTime(rec.LastSeen)
	}
	s.publisher.PublishToWatchers(rec.UserID, bus.NewEvent(bus.EventPresenceChanged, "", payload))
}

func (s *Service) TypingChanged(conversationID, userID string, typing bool) {
	if s.publisher == nil {
		return
	}
	evType := bus.EventStopTyping
	if typing {
		evType = bus.EventTyping
	}
	s.publisher.PublishToConversation(conversationID, bus.NewEvent(evType, conversationID, dto.TypingPayload{UserID: userID}), userID)
}

// export hands the record to the event stream without failing the caller.
// It runs under the conversation lock so records keep commit order.
func (s *Service) export(conversationID, kind string, data interface{}) {
	err := s.events.Publish(context.Background(), events.Record{
		Type:           kind,
		ConversationID: conversationID,
		Data:           data,
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		s.log.Warn("event export failed",
			zap.String("type", kind),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}
