// Package session tracks per-user conversational state for the bot. State
// lives in process memory only: a restart forgets every conversation in
// progress and users fall back to idle.
package session

import (
	"sync"
	"time"
)

// Conversation states.
const (
	StateIdle     = "IDLE"
	StateAwaiting = "AWAITING_APPOINTMENT_DETAILS"
)

// Session is the conversational state for one chat identity.
type Session struct {
	State   string
	Payload string // transient scratch data, dropped on Clear
}

// Store is the session store contract. All operations are total: Get never
// fails, it lazily creates an idle session on first contact.
type Store interface {
	Get(userKey string) Session
	Set(userKey string, s Session)
	Clear(userKey string)
}

// MemoryStore is a concurrency-safe in-memory Store. With a non-zero TTL a
// session untouched for longer than the TTL reads as idle again; the zero
// TTL keeps sessions for the process lifetime.
//
// There is no per-user mutual exclusion across Get/Set: two messages from
// the same user racing each other resolve by last write wins.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	session Session
	touched time.Time
}

// NewMemoryStore creates a MemoryStore. A ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Key builds the store key for a chat identity.
func Key(platform, chatID string) string {
	return platform + ":" + chatID
}

// Get returns the session for userKey, creating an idle one if absent or
// expired.
func (m *MemoryStore) Get(userKey string) Session {
	m.mu.RLock()
	e, ok := m.sessions[userKey]
	m.mu.RUnlock()

	if !ok || m.expired(e) {
		idle := Session{State: StateIdle}
		m.mu.Lock()
		m.sessions[userKey] = entry{session: idle, touched: m.now()}
		m.mu.Unlock()
		return idle
	}
	return e.session
}

// Set stores the session for userKey.
func (m *MemoryStore) Set(userKey string, s Session) {
	m.mu.Lock()
	m.sessions[userKey] = entry{session: s, touched: m.now()}
	m.mu.Unlock()
}

// Clear resets userKey to an idle session, dropping any transient payload.
// Clearing an already idle session is a no-op in effect.
func (m *MemoryStore) Clear(userKey string) {
	m.Set(userKey, Session{State: StateIdle})
}

func (m *MemoryStore) expired(e entry) bool {
	if m.ttl <= 0 {
		return false
	}
	return m.now().Sub(e.touched) > m.ttl
}
