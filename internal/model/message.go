package model

import "time"

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

var statusOrder = []MessageStatus{MessageStatusSent, MessageStatusDelivered, MessageStatusRead}

func (s MessageStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next goes strictly forward.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// StatusesBefore lists the statuses ranked below s, oldest first.
func StatusesBefore(s MessageStatus) []MessageStatus {
	r := s.Rank()
	if r <= 0 {
		return nil
	}
	out := make([]MessageStatus, r)
	copy(out, statusOrder[:r])
	return out
}

// ProductSnapshot is captured once when a product-referencing message is sent.
type ProductSnapshot struct {
	ProductID string  `dynamodbav:"productId" bson:"productId" json:"productId"`
	Title     string  `dynamodbav:"title" bson:"title" json:"title"`
	Price     float64 `dynamodbav:"price" bson:"price" json:"price"`
	Currency  string  `dynamodbav:"currency,omitempty" bson:"currency,omitempty" json:"currency,omitempty"`
	ImageURL  string  `dynamodbav:"imageUrl,omitempty" bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

type MessageItem struct {
	MessageID      string           `dynamodbav:"messageId" bson:"_id"`
	ConversationID string           `dynamodbav:"conversationId" bson:"conversationId"`
	SenderID       string           `dynamodbav:"senderId" bson:"senderId"`
	ReceiverID     string           `dynamodbav:"receiverId" bson:"receiverId"`
	Content        string           `dynamodbav:"content,omitempty" bson:"content,omitempty"`
	Images         []string         `dynamodbav:"images,omitempty" bson:"images,omitempty"`
	Status         MessageStatus    `dynamodbav:"status" bson:"status"`
	Product        *ProductSnapshot `dynamodbav:"product,omitempty" bson:"product,omitempty"`
	CreatedAt      string           `dynamodbav:"createdAt" bson:"createdAt"`
	UpdatedAt      string           `dynamodbav:"updatedAt" bson:"updatedAt"`
	// AgeBucket partitions the byAge index; see AgeBucketFor.
	AgeBucket string `dynamodbav:"ageBucket,omitempty" bson:"-"`
}

type ArchivedMessageItem struct {
	OriginalID     string           `dynamodbav:"originalId" bson:"_id"`
	ConversationID string           `dynamodbav:"conversationId" bson:"conversationId"`
	SenderID       string           `dynamodbav:"senderId" bson:"senderId"`
	ReceiverID     string           `dynamodbav:"receiverId" bson:"receiverId"`
	Content        string           `dynamodbav:"content,omitempty" bson:"content,omitempty"`
	Images         []string         `dynamodbav:"images,omitempty" bson:"images,omitempty"`
	Status         MessageStatus    `dynamodbav:"status" bson:"status"`
	Product        *ProductSnapshot `dynamodbav:"product,omitempty" bson:"product,omitempty"`
	CreatedAt      string           `dynamodbav:"createdAt" bson:"createdAt"`
	UpdatedAt      string           `dynamodbav:"updatedAt" bson:"updatedAt"`
	ArchivedAt     string           `dynamodbav:"archivedAt" bson:"archivedAt"`
}

func ArchiveOf(m MessageItem, archivedAt time.Time) ArchivedMessageItem {
	return ArchivedMessageItem{
		OriginalID:     m.MessageID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Images:         append([]string(nil), m.Images...),
		Status:         m.Status,
		Product:        m.Product,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ArchivedAt:     FormatTime(archivedAt),
	}
}

// Message returns the archived row in its live shape, keyed by OriginalID.
func (a ArchivedMessageItem) Message() MessageItem {
	return MessageItem{
		MessageID:      a.OriginalID,
		ConversationID: a.ConversationID,
		SenderID:       a.SenderID,
		ReceiverID:     a.ReceiverID,
		Content:        a.Content,
		Images:         append([]string(nil), a.Images...),
		Status:         a.Status,
		Product:        a.Product,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
