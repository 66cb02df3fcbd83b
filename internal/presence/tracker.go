package presence

import (
	"context"
	"sync"
	"time"

	"storefront-chat/internal/logger"

	"go.uber.org/zap"
)

const DefaultTypingTimeout = 10 * time.Second

const mirrorTimeout = 2 * time.Second

type Record struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
	Sessions int       `json:"sessions"`
}

// Notifier is called after the tracker has released its lock.
type Notifier interface {
	PresenceChanged(rec Record)
	TypingChanged(conversationID, userID string, typing bool)
}

// Mirror keeps a durable copy of last-seen timestamps outside the process.
type Mirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	Lookup(ctx context.Context, userID string) (Record, bool, error)
}

type typingKey struct {
	conversationID string
	userID         string
}

type typingEntry struct {
	timer Timer
	gen   uint64
}

// presenceOutbox serialises presence delivery for one user. Only the newest
// pending record is kept; whoever finds the outbox idle drains it.
type presenceOutbox struct {
	pending  *Record
	draining bool
}

type Options struct {
	TypingTimeout time.Duration
	Scheduler     Scheduler
	Now           func() time.Time
	Mirror        Mirror
}

// Tracker holds online state per user (a user may have several sessions) and
// typing state per conversation and user.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
	lastSeen map[string]time.Time
	typing   map[typingKey]*typingEntry
	gen      uint64
	outbox   map[string]*presenceOutbox

	timeout  time.Duration
	sched    Scheduler
	now      func() time.Time
	mirror   Mirror
	notifier Notifier
	log      *zap.Logger
}

func NewTracker(opts Options) *Tracker {
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		sessions: make(map[string]map[string]struct{}),
		lastSeen: make(map[string]time.Time),
		typing:   make(map[typingKey]*typingEntry),
		outbox:   make(map[string]*presenceOutbox),
		timeout:  opts.TypingTimeout,
		sched:    opts.Scheduler,
		now:      opts.Now,
		mirror:   opts.Mirror,
		log:      logger.L().Named("presence"),
	}
}

// SetNotifier must be called before the tracker is shared between goroutines.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

func (t *Tracker) recordLocked(userID string) Record {
	return Record{
		UserID:   userID,
		Online:   len(t.sessions[userID]) > 0,
		LastSeen: t.lastSeen[userID],
		Sessions: len(t.sessions[userID]),
	}
}

// Connect adds a session for userID and reports whether the user just came
// online.
func (t *Tracker) Connect(userID, sessionID string) (Record, bool) {
	t.mu.Lock()
	set, ok := t.sessions[userID]
	if !ok {
		set = make(map[string]struct{})
		t.sessions[userID] = set
	}
	set[sessionID] = struct{}{}
	cameOnline := len(set) == 1
	rec := t.recordLocked(userID)
	drain := cameOnline && t.queuePresenceLocked(rec)
	t.mu.Unlock()

	if drain {
		t.drainPresence(userID)
	}
	return rec, cameOnline
}

// Disconnect removes a session. The last session going away marks the user
// offline and ends any typing state they hold.
func (t *Tracker) Disconnect(userID, sessionID string) (Record, bool) {
	t.mu.Lock()
	set, ok := t.sessions[userID]
	if !ok {
		rec := t.recordLocked(userID)
		t.mu.Unlock()
		return rec, false
	}
	if _, had := set[sessionID]; !had {
		rec := t.recordLocked(userID)
		t.mu.Unlock()
		return rec, false
	}
	delete(set, sessionID)

	wentOffline := len(set) == 0
	var cleared []typingKey
	if wentOffline {
		delete(t.sessions, userID)
		t.lastSeen[userID] = t.now()
		for key, entry := range t.typing {
			if key.userID != userID {
				continue
			}
			entry.timer.Stop()
			delete(t.typing, key)
			cleared = append(cleared, key)
		}
	}
	rec := t.recordLocked(userID)
	drain := wentOffline && t.queuePresenceLocked(rec)
	t.mu.Unlock()

	for _, key := range cleared {
		t.notifyTyping(key.conversationID, key.userID, false)
	}
	if drain {
		t.drainPresence(userID)
	}
	return rec, wentOffline
}

func (t *Tracker) Status(userID string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordLocked(userID)
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions[userID]) > 0
}

// Lookup is Status with a fallback to the mirror for users this process has
// not seen since it started.
func (t *Tracker) Lookup(ctx context.Context, userID string) Record {
	rec := t.Status(userID)
	if rec.Online || !rec.LastSeen.IsZero() || t.mirror == nil {
		return rec
	}
	mirrored, ok, err := t.mirror.Lookup(ctx, userID)
	if err != nil {
		t.log.Warn("presence mirror lookup failed", zap.String("user_id", userID), zap.Error(err))
		return rec
	}
	if !ok {
		return rec
	}
	// Another instance may report the user online; this process has no
	// session for them, so only last-seen is trusted.
	rec.LastSeen = mirrored.LastSeen
	return rec
}

// StartTyping marks userID as typing in the conversation and (re)arms the
// auto-clear timer. Only the first start of a burst notifies.
func (t *Tracker) StartTyping(conversationID, userID string) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	entry, wasTyping := t.typing[key]
	if wasTyping {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		t.typing[key] = entry
	}
	t.gen++
	gen := t.gen
	entry.gen = gen
	entry.timer = t.sched.AfterFunc(t.timeout, func() { t.expire(key, gen) })
	t.mu.Unlock()

	if !wasTyping {
		t.notifyTyping(conversationID, userID, true)
	}
}

func (t *Tracker) StopTyping(conversationID, userID string) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	entry, ok := t.typing[key]
	if ok {
		entry.timer.Stop()
		delete(t.typing, key)
	}
	t.mu.Unlock()

	if ok {
		t.notifyTyping(conversationID, userID, false)
	}
}

// expire ignores a timer that fired after a newer start replaced it.
func (t *Tracker) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	entry, ok := t.typing[key]
	if !ok || entry.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.typing, key)
	t.mu.Unlock()

	t.notifyTyping(key.conversationID, key.userID, false)
}

func (t *Tracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.typing[typingKey{conversationID: conversationID, userID: userID}]
	return ok
}

// queuePresenceLocked records rec as the user's latest transition and reports
// whether the caller must drain the outbox.
func (t *Tracker) queuePresenceLocked(rec Record) bool {
	ob, ok := t.outbox[rec.UserID]
	if !ok {
		ob = &presenceOutbox{}
		t.outbox[rec.UserID] = ob
	}
	ob.pending = &rec
	if ob.draining {
		return false
	}
	ob.draining = true
	return true
}

// drainPresence delivers queued transitions in order until none are left.
// A transition that lands while one is being delivered is picked up by the
// same loop, so watchers always end on the current state.
func (t *Tracker) drainPresence(userID string) {
	t.mu.Lock()
	ob := t.outbox[userID]
	for ob.pending != nil {
		rec := *ob.pending
		ob.pending = nil
		t.mu.Unlock()

		if rec.Online {
			t.mirrorOnline(userID)
		} else {
			t.mirrorOffline(userID, rec.LastSeen)
		}
		t.notifyPresence(rec)

		t.mu.Lock()
	}
	delete(t.outbox, userID)
	t.mu.Unlock()
}

func (t *Tracker) notifyPresence(rec Record) {
	if t.notifier != nil {
		t.notifier.PresenceChanged(rec)
	}
}

func (t *Tracker) notifyTyping(conversationID, userID string, typing bool) {
	if t.notifier != nil {
		t.notifier.TypingChanged(conversationID, userID, typing)
	}
}

func (t *Tracker) mirrorOnline(userID string) {
	if t.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := t.mirror.SetOnline(ctx, userID); err != nil {
		t.log.Warn("presence mirror update failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (t *Tracker) mirrorOffline(userID string, lastSeen time.Time) {
	if t.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := t.mirror.SetOffline(ctx, userID, lastSeen); err != nil {
		t.log.Warn("presence mirror update failed", zap.String("user_id", userID), zap.Error(err))
	}
}
