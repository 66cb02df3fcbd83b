package dto

import "storefront-chat/internal/model"

type Product struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency,omitempty"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

type Message struct {
	MessageID      string   `json:"messageId"`
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	ReceiverID     string   `json:"receiverId"`
	Content        string   `json:"content,omitempty"`
	Images         []string `json:"images,omitempty"`
	Status         string   `json:"status"`
	Product        *Product `json:"product,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

type LastMessage struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content,omitempty"`
	SenderID  string `json:"senderId"`
	HasImages bool   `json:"hasImages"`
	SentAt    string `json:"sentAt"`
}

// Conversation is the listing view for one party; Unread is that party's counter.
type Conversation struct {
	ConversationID string       `json:"conversationId"`
	CustomerID     string       `json:"customerId"`
	SellerID       string       `json:"sellerId"`
	ProductID      string       `json:"productId,omitempty"`
	LastMessage    *LastMessage `json:"lastMessage,omitempty"`
	Unread         int          `json:"unread"`
	CreatedAt      string       `json:"createdAt"`
	UpdatedAt      string       `json:"updatedAt"`
}

type SendMessageRequest struct {
	ConversationID string   `json:"conversationId,omitempty"`
	ReceiverID     string   `json:"receiverId,omitempty"`
	Content        string   `json:"content,omitempty"`
	Images         []string `json:"images,omitempty"`
	ProductID      string   `json:"productId,omitempty"`
	Product        *Product `json:"product,omitempty"`
}

type SendMessageResponse struct {
	Message      Message      `json:"message"`
	Conversation Conversation `json:"conversation"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type DayGroup struct {
	Date     string    `json:"date"`
	Messages []Message `json:"messages"`
}

type HistoryResponse struct {
	ConversationID string     `json:"conversationId"`
	Messages       []Message  `json:"messages"`
	Days           []DayGroup `json:"days"`
	Page           int        `json:"page"`
	PageSize       int        `json:"pageSize"`
	HasMore        bool       `json:"hasMore"`
}

type MarkReadResponse struct {
	ConversationID string `json:"conversationId"`
	Updated        int    `json:"updated"`
}

type Presence struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen string `json:"lastSeen,omitempty"`
}

// Event payloads pushed over the websocket.

type MessagesReadPayload struct {
	ReaderID string `json:"readerId"`
	Count    int    `json:"count"`
	ReadAt   string `json:"readAt"`
}

type MessagesDeliveredPayload struct {
	ReceiverID  string `json:"receiverId"`
	Count       int    `json:"count"`
	DeliveredAt string `json:"deliveredAt"`
}

type TypingPayload struct {
	UserID string `json:"userId"`
}

func ProductFrom(p *model.ProductSnapshot) *Product {
	if p == nil {
		return nil
	}
	return &Product{
		ProductID: p.ProductID,
		Title:     p.Title,
		Price:     p.Price,
		Currency:  p.Currency,
		ImageURL:  p.ImageURL,
	}
}

func (p *Product) Snapshot() *model.ProductSnapshot {
	if p == nil {
		return nil
	}
	return &model.ProductSnapshot{
		ProductID: p.ProductID,
		Title:     p.Title,
		Price:     p.Price,
		Currency:  p.Currency,
		ImageURL:  p.ImageURL,
	}
}

func MessageFrom(m model.MessageItem) Message {
	return Message{
		MessageID:      m.MessageID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Images:         m.Images,
		Status:         string(m.Status),
		Product:        ProductFrom(m.Product),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func MessagesFrom(msgs []model.MessageItem) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageFrom(m))
	}
	return out
}

// ConversationFor renders conv from userID's side.
func ConversationFor(conv model.ConversationItem, userID string) Conversation {
	out := Conversation{
		ConversationID: conv.ConversationID,
		CustomerID:     conv.CustomerID,
		SellerID:       conv.SellerID,
		ProductID:      conv.ProductID,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	if role, ok := conv.RoleOf(userID); ok {
		out.Unread = conv.UnreadFor(role)
	}
	if lm := conv.LastMessage; lm != nil {
		out.LastMessage = &LastMessage{
			MessageID: lm.MessageID,
			Content:   lm.Content,
			SenderID:  lm.SenderID,
			HasImages: lm.HasImages,
			SentAt:    lm.SentAt,
		}
	}
	return out
}
