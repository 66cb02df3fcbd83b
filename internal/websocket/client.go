package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"storefront-chat/internal/bus"
	"storefront-chat/internal/errs"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	codeRateLimited = "rate_limited"
	commandTimeout  = 5 * time.Second
	replyBuffer     = 8
)

// wsClient owns one socket. writePump is the only writer; readPump replies
// through the replies channel so gorilla never sees concurrent writes.
type wsClient struct {
	conn    *websocket.Conn
	session *bus.Session
	limiter *rate.Limiter
	replies chan bus.Event
	done    chan struct{}
	cfg     Config
	log     *zap.Logger
}

func (cl *wsClient) writePump() {
	ticker := time.NewTicker(cl.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		close(cl.done)
		cl.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-cl.session.Queue():
			if !ok {
				// Unregistered by the hub: shutdown or a slow consumer.
				_ = cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteDeadline))
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session closed"))
				return
			}
			if !cl.write(ev) {
				return
			}
		case ev := <-cl.replies:
			if !cl.write(ev) {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteDeadline))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.log.Debug("ping failed", zap.String("session_id", cl.session.ID), zap.Error(err))
				return
			}
		}
	}
}

func (cl *wsClient) write(ev bus.Event) bool {
	_ = cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteDeadline))
	if err := cl.conn.WriteJSON(ev); err != nil {
		cl.log.Debug("write failed", zap.String("session_id", cl.session.ID), zap.Error(err))
		return false
	}
	addFramesWritten(1)
	return true
}

// reply queues a frame for this connection only. Dropped when the writer has
// exited or is backed up.
func (cl *wsClient) reply(ev bus.Event) {
	select {
	case cl.replies <- ev:
	case <-cl.done:
	default:
	}
}

func (cl *wsClient) replyError(conversationID, code, message string) {
	cl.reply(bus.NewEvent(bus.EventError, conversationID, bus.ErrorPayload{Code: code, Message: message}))
}

// readPump blocks until the socket fails or the writer closes it.
func (cl *wsClient) readPump(ctx context.Context, commands CommandHandler) {
	cl.conn.SetReadLimit(cl.cfg.MaxFrameBytes)
	_ = cl.conn.SetReadDeadline(time.Now().Add(cl.cfg.pongWait()))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(cl.cfg.pongWait()))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				cl.log.Info("connection closed unexpectedly", zap.String("session_id", cl.session.ID), zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			countCommand("invalid", "rejected")
			cl.replyError("", string(errs.CodeValidation), "malformed command")
			continue
		}
		if !cl.limiter.Allow() {
			countCommand(labelFor(cmd.Type), codeRateLimited)
			cl.replyError(cmd.ConversationID, codeRateLimited, "too many commands")
			continue
		}

		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		err = dispatch(cmdCtx, commands, cl.session, cmd)
		cancel()
		if err != nil {
			countCommand(labelFor(cmd.Type), string(errs.CodeOf(err)))
			cl.replyError(cmd.ConversationID, string(errs.CodeOf(err)), errorMessage(err))
			continue
		}
		countCommand(cmd.Type, "ok")
	}
}

func dispatch(ctx context.Context, h CommandHandler, s *bus.Session, cmd Command) error {
	convID := strings.TrimSpace(cmd.ConversationID)
	switch cmd.Type {
	case CommandJoin:
		return h.Join(ctx, s, convID)
	case CommandLeave:
		return h.Leave(ctx, s, convID)
	case CommandTypingStart:
		return h.StartTyping(ctx, s, convID)
	case CommandTypingStop:
		return h.StopTyping(ctx, s, convID)
	case CommandMarkRead:
		return h.MarkRead(ctx, s, convID)
	}
	return errs.Validation("unknown command type")
}

// labelFor keeps metric cardinality bounded for garbage command types.
func labelFor(t CommandType) CommandType {
	switch t {
	case CommandJoin, CommandLeave, CommandTypingStart, CommandTypingStop, CommandMarkRead:
		return t
	}
	return "unknown"
}

func errorMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "command failed"
}
