package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSeller
}

type MessageSummary struct {
	MessageID string `dynamodbav:"messageId" bson:"messageId"`
	Content   string `dynamodbav:"content,omitempty" bson:"content,omitempty"`
	SenderID  string `dynamodbav:"senderId" bson:"senderId"`
	HasImages bool   `dynamodbav:"hasImages" bson:"hasImages"`
	SentAt    string `dynamodbav:"sentAt" bson:"sentAt"`
}

func SummaryOf(m MessageItem) MessageSummary {
	return MessageSummary{
		MessageID: m.MessageID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		HasImages: len(m.Images) > 0,
		SentAt:    m.CreatedAt,
	}
}

type ConversationItem struct {
	PK             string          `dynamodbav:"pk" bson:"pairKey"`
	ConversationID string          `dynamodbav:"conversationId" bson:"_id"`
	CustomerID     string          `dynamodbav:"customerId" bson:"customerId"`
	SellerID       string          `dynamodbav:"sellerId" bson:"sellerId"`
	ProductID      string          `dynamodbav:"productId,omitempty" bson:"productId,omitempty"`
	LastMessage    *MessageSummary `dynamodbav:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	CustomerUnread int             `dynamodbav:"customerUnread" bson:"customerUnread"`
	SellerUnread   int             `dynamodbav:"sellerUnread" bson:"sellerUnread"`
	CreatedAt      string          `dynamodbav:"createdAt" bson:"createdAt"`
	UpdatedAt      string          `dynamodbav:"updatedAt" bson:"updatedAt"`
}

// RoleOf reports which side of the conversation userID is on.
func (c ConversationItem) RoleOf(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case c.CustomerID:
		return RoleCustomer, true
	case c.SellerID:
		return RoleSeller, true
	}
	return "", false
}

func (c ConversationItem) Counterpart(userID string) string {
	if userID == c.CustomerID {
		return c.SellerID
	}
	if userID == c.SellerID {
		return c.CustomerID
	}
	return ""
}

func (c ConversationItem) UnreadFor(role Role) int {
	if role == RoleSeller {
		return c.SellerUnread
	}
	return c.CustomerUnread
}

// UnreadAttr is the stored attribute holding the counter for role.
func UnreadAttr(role Role) string {
	if role == RoleSeller {
		return "sellerUnread"
	}
	return "customerUnread"
}
