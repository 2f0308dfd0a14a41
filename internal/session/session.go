// Package session tracks per-user conversation state: bounded turn
// history, last-activity time, and idle expiry. Session state scopes
// answer-cache keys, so two sessions never share cached answers.
//
// The Manager is safe for concurrent use; each session carries its own
// mutex so unrelated sessions never contend.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one completed (query, answer) exchange.
type Turn struct {
	Query  string
	Answer string
	At     time.Time
}

// Session is a single conversation. All fields behind mu; access goes
// through Manager methods.
type Session struct {
	id string

	mu           sync.Mutex
	turns        []Turn
	createdAt    time.Time
	lastActivity time.Time
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// expired reports whether the session's idle timeout has elapsed.
func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > timeout
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// Manager owns all live sessions. It is constructed once and passed
// into the orchestrator; there is no package-level session table.
type Manager struct {
	timeout time.Duration
	turnCap int
	logger  *slog.Logger
	now     func() time.Time // injectable clock for expiry tests

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Sessions idle longer than
// timeout are evicted; history is capped at turnCap turns per session.
func NewManager(timeout time.Duration, turnCap int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		timeout:  timeout,
		turnCap:  turnCap,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open resolves a session by id, refreshing its last-activity time.
// An empty, unknown, or expired id yields a fresh session with a new
// identifier — never an error.
func (m *Manager) Open(id string) *Session {
	now := m.now()

	if id != "" {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()

		if ok {
			if !s.expired(now, m.timeout) {
				s.touch(now)
				return s
			}
			// Lazy expiry on access.
			m.remove(id)
			m.logger.Debug("session expired, starting fresh", "session_id", id)
		}
	}

	s := &Session{
		id:           uuid.NewString(),
		createdAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", s.id)
	return s
}

// AppendTurn records a completed exchange. When history exceeds the
// configured cap the oldest turn is evicted first.
func (m *Manager) AppendTurn(s *Session, query, answer string) {
	now := m.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{Query: query, Answer: answer, At: now})
	if len(s.turns) > m.turnCap {
		s.turns = s.turns[len(s.turns)-m.turnCap:]
	}
	s.lastActivity = now
}

// Recent returns up to n most recent turns, oldest first. The returned
// slice is a copy.
func (m *Manager) Recent(s *Session, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.turns) {
		n = len(s.turns)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// ScopeKey returns the stable string used to scope cache keys to this
// session. Distinct sessions always produce distinct scopes.
func (m *Manager) ScopeKey(s *Session) string {
	return "session:" + s.id
}

// Close removes a session explicitly. Removing an absent session is a
// no-op.
func (m *Manager) Close(id string) {
	m.remove(id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run sweeps expired sessions every interval until ctx is canceled.
// Removal is idempotent, so the sweep is safe alongside lazy expiry in
// Open and explicit Close calls.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := m.now()

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.expired(now, m.timeout) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.remove(id)
	}
	if len(expired) > 0 {
		m.logger.Debug("swept expired sessions", "count", len(expired))
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
