package bus

import "time"

type EventType string

const (
	EventNewMessage        EventType = "new_message"
	EventMessagesRead      EventType = "messages_read"
	EventMessagesDelivered EventType = "messages_delivered"
	EventTyping            EventType = "typing"
	EventStopTyping        EventType = "stop_typing"
	EventPresenceChanged   EventType = "presence_changed"
	EventError             EventType = "error"
)

// Event is the envelope written to every client socket.
type Event struct {
	Type           EventType   `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Payload        interface{} `json:"payload,omitempty"`
	SentAt         time.Time   `json:"sentAt"`
}

func NewEvent(t EventType, conversationID string, payload interface{}) Event {
	return Event{
		Type:           t,
		ConversationID: conversationID,
		Payload:        payload,
		SentAt:         time.Now().UTC(),
	}
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
