package chat

import (
	"context"
	"strings"

	"storefront-chat/internal/bus"
	"storefront-chat/internal/errs"
)

// Rooms is the part of the hub the session commands drive.
type Rooms interface {
	Join(s *bus.Session, conversationID string)
	Leave(s *bus.Session, conversationID string)
	Joined(s *bus.Session, conversationID string) bool
	Watch(s *bus.Session, userID string)
}

// SessionCommands executes client frames received on a live connection.
type SessionCommands struct {
	svc   *Service
	rooms Rooms
}

func NewSessionCommands(svc *Service, rooms Rooms) *SessionCommands {
	return &SessionCommands{svc: svc, rooms: rooms}
}

func identityOf(s *bus.Session) Identity {
	return Identity{UserID: s.UserID, SessionID: s.ID}
}

func requireConversation(conversationID string) (string, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return "", errs.Validation("conversationId is required")
	}
	return id, nil
}

// Join opens the conversation on this session: room events start flowing,
// the counterpart's presence is watched, and pending messages become
// delivered.
func (c *SessionCommands) Join(ctx context.Context, s *bus.Session, conversationID string) error {
	convID, err := requireConversation(conversationID)
	if err != nil {
		return err
	}
	conv, _, err := c.svc.directory.GetForParty(ctx, convID, s.UserID)
	if err != nil {
		return err
	}
	c.rooms.Join(s, conv.ConversationID)
	c.rooms.Watch(s, conv.Counterpart(s.UserID))

	unlock := c.svc.locks.lock(conv.ConversationID)
	c.svc.markDelivered(ctx, conv.ConversationID, s.UserID, conv.Counterpart(s.UserID))
	unlock()
	return nil
}

func (c *SessionCommands) Leave(ctx context.Context, s *bus.Session, conversationID string) error {
	convID, err := requireConversation(conversationID)
	if err != nil {
		return err
	}
	if !c.rooms.Joined(s, convID) {
		return nil
	}
	c.rooms.Leave(s, convID)
	if c.svc.presence != nil {
		c.svc.presence.StopTyping(convID, s.UserID)
	}
	return nil
}

// StartTyping is only accepted for rooms this session has joined, which
// already proved membership.
func (c *SessionCommands) StartTyping(ctx context.Context, s *bus.Session, conversationID string) error {
	convID, err := c.joinedRoom(s, conversationID)
	if err != nil {
		return err
	}
	if c.svc.presence != nil {
		c.svc.presence.StartTyping(convID, s.UserID)
	}
	return nil
}

func (c *SessionCommands) StopTyping(ctx context.Context, s *bus.Session, conversationID string) error {
	convID, err := c.joinedRoom(s, conversationID)
	if err != nil {
		return err
	}
	if c.svc.presence != nil {
		c.svc.presence.StopTyping(convID, s.UserID)
	}
	return nil
}

func (c *SessionCommands) MarkRead(ctx context.Context, s *bus.Session, conversationID string) error {
	convID, err := requireConversation(conversationID)
	if err != nil {
		return err
	}
	_, err = c.svc.MarkRead(ctx, identityOf(s), convID)
	return err
}

func (c *SessionCommands) joinedRoom(s *bus.Session, conversationID string) (string, error) {
	convID, err := requireConversation(conversationID)
	if err != nil {
		return "", err
	}
	if !c.rooms.Joined(s, convID) {
		return "", errs.Forbidden("join the conversation first")
	}
	return convID, nil
}
