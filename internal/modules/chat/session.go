package chat

import (
	"context"
	"errors"
	"sync"
)

// ErrGenerationInProgress is returned when a conversation already has an
// answer being generated.
var ErrGenerationInProgress = errors.New("a generation is already in progress for this conversation")

// Session tracks one in-flight answer generation. Stop is observable from
// the generation loop both through the context and through the Stopped flag,
// so a chunk already in flight when the stop lands is not persisted.
type Session struct {
	MessageID string
	GroupID   string
	UserID    string

	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// Stop marks the session stopped and cancels its context.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type ownerKey struct {
	groupID string
	userID  string
}

// Manager is the registry of in-flight generations. A (group, user)
// conversation holds at most one active session at a time.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session // message ID -> session
	owners   map[ownerKey]string // conversation -> message ID
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		owners:   make(map[ownerKey]string),
	}
}

// Register adds a session, rejecting it when its conversation already has
// one in flight.
func (m *Manager) Register(session *Session) error {
	key := ownerKey{groupID: session.GroupID, userID: session.UserID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.owners[key]; busy {
		return ErrGenerationInProgress
	}
	m.sessions[session.MessageID] = session
	m.owners[key] = session.MessageID
	return nil
}

// Unregister removes a session by message ID. Unknown IDs are ignored.
func (m *Manager) Unregister(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[messageID]
	if !ok {
		return
	}
	delete(m.sessions, messageID)
	key := ownerKey{groupID: session.GroupID, userID: session.UserID}
	if m.owners[key] == messageID {
		delete(m.owners, key)
	}
}

// Get returns the session for a message ID, or nil.
func (m *Manager) Get(messageID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[messageID]
}

// Busy reports whether a conversation has a generation in flight.
func (m *Manager) Busy(groupID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.owners[ownerKey{groupID: groupID, userID: userID}]
	return busy
}

// StopByOwner signals the conversation's in-flight generation to stop and
// removes it from the registry before returning, so a follow-up ask is
// admitted immediately. The generation loop observes the stop flag and
// finalizes the message itself.
func (m *Manager) StopByOwner(groupID, userID string) (string, bool) {
	key := ownerKey{groupID: groupID, userID: userID}

	m.mu.Lock()
	messageID, ok := m.owners[key]
	if !ok {
		m.mu.Unlock()
		return "", false
	}
	session := m.sessions[messageID]
	delete(m.sessions, messageID)
	delete(m.owners, key)
	m.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	return messageID, true
}

// ActiveIDs lists the message IDs of registered sessions.
func (m *Manager) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count reports how many generations are in flight.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
