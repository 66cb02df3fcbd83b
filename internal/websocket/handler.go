package websocket

import (
	"context"
	"net/http"
	"time"

	"storefront-chat/internal/bus"
	"storefront-chat/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Config struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxFrameBytes  int64
	SendBuffer     int
	CommandRate    rate.Limit
	CommandBurst   int
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteDeadline <= 0 {
		c.WriteDeadline = 10 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 512 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = bus.DefaultSendBuffer
	}
	if c.CommandRate <= 0 {
		c.CommandRate = 20
	}
	if c.CommandBurst <= 0 {
		c.CommandBurst = 40
	}
	return c
}

// A connection that answers no ping within this window is dead.
func (c Config) pongWait() time.Duration {
	return c.PingInterval * 2
}

type Handler struct {
	upgrader websocket.Upgrader
	hub      Registry
	presence Presence
	commands CommandHandler
	cfg      Config
	log      *zap.Logger
}

func NewHandler(hub Registry, tracker Presence, commands CommandHandler, cfg Config) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{
		hub:      hub,
		presence: tracker,
		commands: commands,
		cfg:      cfg,
		log:      logger.L().Named("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts any origin when none are configured, and requests with
// no Origin header (non-browser clients).
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request for an authenticated user and blocks until the
// connection ends.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session := bus.NewSession(userID, h.cfg.SendBuffer)
	cl := &wsClient{
		conn:    conn,
		session: session,
		limiter: rate.NewLimiter(h.cfg.CommandRate, h.cfg.CommandBurst),
		replies: make(chan bus.Event, replyBuffer),
		done:    make(chan struct{}),
		cfg:     h.cfg,
		log:     h.log,
	}

	h.hub.Register(session)
	if h.presence != nil {
		h.presence.Connect(userID, session.ID)
	}
	incConnections()
	h.log.Info("session connected", zap.String("user_id", userID), zap.String("session_id", session.ID))

	go cl.writePump()

	ctx, cancel := context.WithCancel(context.Background())
	cl.readPump(ctx, h.commands)
	cancel()

	h.hub.Unregister(session)
	if h.presence != nil {
		h.presence.Disconnect(userID, session.ID)
	}
	<-cl.done
	decConnections()
	h.log.Info("session disconnected", zap.String("user_id", userID), zap.String("session_id", session.ID))
}
