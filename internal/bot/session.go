package bot

import (
	"sync"

	"github.com/i474232898/weather-bot/internal/conversation"
)

// sessionEntry serializes the updates of one user.
type sessionEntry struct {
	mu   sync.Mutex
	sess conversation.Session
	refs int
}

// Sessions keeps the conversation state of every user with an active
// dialogue. Updates of one user are applied one at a time while different
// users proceed in parallel. Ended sessions are dropped.
type Sessions struct {
	mu      sync.Mutex
	entries map[int64]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[int64]*sessionEntry)}
}

// With runs fn with exclusive access to the session of userID.
func (s *Sessions) With(userID int64, fn func(sess *conversation.Session)) {
	e := s.acquire(userID)
	e.mu.Lock()
	defer s.release(userID, e)
	defer e.mu.Unlock()

	fn(&e.sess)
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) acquire(userID int64) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		e = &sessionEntry{}
		s.entries[userID] = e
	}
	e.refs++
	return e
}

func (s *Sessions) release(userID int64, e *sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	// Nobody else holds e, so reading its session is safe here.
	if !e.sess.Active() {
		delete(s.entries, userID)
	}
}
