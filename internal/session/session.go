package session

import (
	"sync"
	"time"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question  string
	Answer    string
	ChunkIDs  []string
	Timestamp time.Time
}

// QuerySession holds the bounded conversation history for one session.
type QuerySession struct {
	ID       string
	turns    []Turn
	maxTurns int
	lastSeen time.Time
}

// Turns returns the session's turns, oldest first.
func (s *QuerySession) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// append adds a turn, evicting the oldest when the cap is reached.
func (s *QuerySession) append(turn Turn) {
	if len(s.turns) >= s.maxTurns {
		s.turns = s.turns[1:]
	}
	s.turns = append(s.turns, turn)
}

// Store keeps query sessions in memory with TTL-based eviction.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*QuerySession
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store. maxTurns bounds the history kept per
// session; sessions idle longer than ttl are dropped by Sweep.
func NewStore(maxTurns int, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*QuerySession),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// History returns the turns of a session, oldest first. A missing
// session yields an empty history.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return sess.Turns()
}

// Append records a completed turn. The session is created on first use.
// Only call this after the whole turn succeeded; failed or canceled
// requests must leave the history untouched.
func (s *Store) Append(id string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &QuerySession{ID: id, maxTurns: s.maxTurns}
		s.sessions[id] = sess
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	sess.append(turn)
	sess.lastSeen = s.now()
}

// Reset drops a session's history. Resetting an unknown session is a
// no-op.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes sessions idle longer than the TTL and returns how many
// were evicted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
