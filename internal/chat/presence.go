package chat

import (
	"sync"
	"time"
)

// PresenceTracker holds the process-wide online state per user identity.
// It starts empty on boot and is mutated only through Connect/Disconnect.
// Offline transitions are held back by a grace delay so a disconnect
// followed by a quick reconnect produces no broadcasts at all.
type PresenceTracker struct {
	mu       sync.Mutex
	sessions map[int64]int
	pending  map[int64]*time.Timer
	grace    time.Duration
	notify   func(userID int64, online bool)
}

// NewPresenceTracker builds a tracker with the given grace delay. notify
// is invoked outside the tracker lock on every effective transition.
func NewPresenceTracker(grace time.Duration, notify func(userID int64, online bool)) *PresenceTracker {
	if notify == nil {
		notify = func(int64, bool) {}
	}
	return &PresenceTracker{
		sessions: make(map[int64]int),
		pending:  make(map[int64]*time.Timer),
		grace:    grace,
		notify:   notify,
	}
}

// Connect records a new session for the user. The first session makes the
// user online; a reconnect inside the grace window cancels the pending
// offline broadcast and suppresses the paired online broadcast.
func (t *PresenceTracker) Connect(userID int64) {
	t.mu.Lock()
	if timer, ok := t.pending[userID]; ok {
		timer.Stop()
		delete(t.pending, userID)
		t.sessions[userID]++
		t.mu.Unlock()
		return
	}

	t.sessions[userID]++
	wentOnline := t.sessions[userID] == 1
	t.mu.Unlock()

	if wentOnline {
		t.notify(userID, true)
	}
}

// Disconnect records a session loss. When the last session drops, the
// offline broadcast fires only after the grace delay has passed without a
// reconnect.
func (t *PresenceTracker) Disconnect(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessions[userID] == 0 {
		return
	}
	t.sessions[userID]--
	if t.sessions[userID] > 0 {
		return
	}
	delete(t.sessions, userID)

	t.pending[userID] = time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		_, stillPending := t.pending[userID]
		delete(t.pending, userID)
		t.mu.Unlock()

		if stillPending {
			t.notify(userID, false)
		}
	})
}

// Online reports whether the user currently counts as online. A user in
// the grace window still counts as online.
func (t *PresenceTracker) Online(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[userID] > 0 {
		return true
	}
	_, pending := t.pending[userID]
	return pending
}

// Stop cancels all pending offline timers.
func (t *PresenceTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}
