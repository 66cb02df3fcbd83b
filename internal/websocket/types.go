package websocket

import (
	"context"

	"storefront-chat/internal/bus"
	"storefront-chat/internal/presence"
)

type CommandType string

const (
	CommandJoin        CommandType = "join"
	CommandLeave       CommandType = "leave"
	CommandTypingStart CommandType = "typing_start"
	CommandTypingStop  CommandType = "typing_stop"
	CommandMarkRead    CommandType = "mark_read"
)

// Command is a client frame.
type Command struct {
	Type           CommandType `json:"type"`
	ConversationID string      `json:"conversationId"`
}

// CommandHandler executes commands on behalf of a session.
type CommandHandler interface {
	Join(ctx context.Context, s *bus.Session, conversationID string) error
	Leave(ctx context.Context, s *bus.Session, conversationID string) error
	StartTyping(ctx context.Context, s *bus.Session, conversationID string) error
	StopTyping(ctx context.Context, s *bus.Session, conversationID string) error
	MarkRead(ctx context.Context, s *bus.Session, conversationID string) error
}

type Registry interface {
	Register(s *bus.Session)
	Unregister(s *bus.Session)
}

type Presence interface {
	Connect(userID, sessionID string) (presence.Record, bool)
	Disconnect(userID, sessionID string) (presence.Record, bool)
}
