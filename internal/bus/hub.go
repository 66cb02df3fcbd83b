package bus

import (
	"sync"

	"storefront-chat/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSendBuffer = 64

	// A session that drops this many events in a row is disconnected.
	DefaultSlowSessionLimit = 16
)

// Session is one live client connection. The transport drains Queue and
// writes each event to the socket.
type Session struct {
	ID     string
	UserID string

	queue  chan Event
	closed bool
	drops  int
	rooms  map[string]struct{}
	watchs map[string]struct{}
}

func NewSession(userID string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		queue:  make(chan Event, buffer),
		rooms:  make(map[string]struct{}),
		watchs: make(map[string]struct{}),
	}
}

// Queue is closed by the hub when the session is unregistered.
func (s *Session) Queue() <-chan Event {
	return s.queue
}

type sessionSet map[*Session]struct{}

// Hub routes events to sessions by user, by conversation room, and by
// presence subscription. Enqueueing happens under the hub lock, so every
// session sees events in the order they were published.
type Hub struct {
	mu        sync.Mutex
	byUser    map[string]sessionSet
	rooms     map[string]sessionSet
	watchers  map[string]sessionSet
	count     int
	slowLimit int
	log       *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		byUser:    make(map[string]sessionSet),
		rooms:     make(map[string]sessionSet),
		watchers:  make(map[string]sessionSet),
		slowLimit: DefaultSlowSessionLimit,
		log:       logger.L().Named("bus"),
	}
}

func (h *Hub) SetSlowSessionLimit(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > 0 {
		h.slowLimit = n
	}
}

func addTo(index map[string]sessionSet, key string, s *Session) {
	set, ok := index[key]
	if !ok {
		set = make(sessionSet)
		index[key] = set
	}
	set[s] = struct{}{}
}

func removeFrom(index map[string]sessionSet, key string, s *Session) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(index, key)
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	if set, ok := h.byUser[s.UserID]; ok {
		if _, dup := set[s]; dup {
			return
		}
	}
	addTo(h.byUser, s.UserID, s)
	h.count++
	setSessions(h.count)
}

// Unregister removes s from every index and closes its queue. Safe to call
// more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(s)
}

func (h *Hub) unregisterLocked(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)

	if set, ok := h.byUser[s.UserID]; ok {
		if _, member := set[s]; member {
			h.count--
			setSessions(h.count)
		}
	}
	removeFrom(h.byUser, s.UserID, s)
	for room := range s.rooms {
		removeFrom(h.rooms, room, s)
	}
	for user := range s.watchs {
		removeFrom(h.watchers, user, s)
	}
	s.rooms = map[string]struct{}{}
	s.watchs = map[string]struct{}{}
	setRooms(len(h.rooms))
}

func (h *Hub) Join(s *Session, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.rooms[conversationID] = struct{}{}
	addTo(h.rooms, conversationID, s)
	setRooms(len(h.rooms))
}

func (h *Hub) Leave(s *Session, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(s.rooms, conversationID)
	removeFrom(h.rooms, conversationID, s)
	setRooms(len(h.rooms))
}

func (h *Hub) Joined(s *Session, conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := s.rooms[conversationID]
	return ok
}

// Watch subscribes s to presence changes of userID.
func (h *Hub) Watch(s *Session, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed || userID == "" {
		return
	}
	s.watchs[userID] = struct{}{}
	addTo(h.watchers, userID, s)
}

func (h *Hub) Unwatch(s *Session, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(s.watchs, userID)
	removeFrom(h.watchers, userID, s)
}

// deliverLocked enqueues without blocking. Sessions over the slow limit are
// returned so the caller can drop them once iteration is finished.
func (h *Hub) deliverLocked(set sessionSet, ev Event, skip func(*Session) bool) (int, []*Session) {
	delivered, dropped := 0, 0
	var slow []*Session
	for s := range set {
		if skip != nil && skip(s) {
			continue
		}
		select {
		case s.queue <- ev:
			s.drops = 0
			delivered++
		default:
			s.drops++
			dropped++
			if s.drops >= h.slowLimit {
				slow = append(slow, s)
			}
		}
	}
	addDelivered(delivered)
	addDropped(dropped)
	return delivered, slow
}

func (h *Hub) dropSlowLocked(slow []*Session) {
	for _, s := range slow {
		h.log.Warn("disconnecting slow session",
			zap.String("session_id", s.ID),
			zap.String("user_id", s.UserID),
		)
		h.unregisterLocked(s)
	}
}

// PublishToUser delivers ev to every session of userID and returns how many
// sessions accepted it.
func (h *Hub) PublishToUser(userID string, ev Event) int {
	return h.PublishToUserExcept(userID, ev, "")
}

// PublishToUserExcept is PublishToUser skipping the session with id exceptSessionID.
func (h *Hub) PublishToUserExcept(userID string, ev Event, exceptSessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var skip func(*Session) bool
	if exceptSessionID != "" {
		skip = func(s *Session) bool { return s.ID == exceptSessionID }
	}
	n, slow := h.deliverLocked(h.byUser[userID], ev, skip)
	h.dropSlowLocked(slow)
	return n
}

// PublishToConversation delivers ev to sessions joined to the room, except
// those belonging to exceptUserID.
func (h *Hub) PublishToConversation(conversationID string, ev Event, exceptUserID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var skip func(*Session) bool
	if exceptUserID != "" {
		skip = func(s *Session) bool { return s.UserID == exceptUserID }
	}
	n, slow := h.deliverLocked(h.rooms[conversationID], ev, skip)
	h.dropSlowLocked(slow)
	return n
}

func (h *Hub) PublishToWatchers(userID string, ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, slow := h.deliverLocked(h.watchers[userID], ev, nil)
	h.dropSlowLocked(slow)
	return n
}

// IsViewing reports whether any live session of userID has joined the room.
func (h *Hub) IsViewing(userID, conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.rooms[conversationID] {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) SessionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser[userID])
}

// Close unregisters every session, ending their transports.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.byUser {
		for s := range set {
			h.unregisterLocked(s)
		}
	}
}
