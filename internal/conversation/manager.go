package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yojana-backend/internal/services"
)

type ManagerConfig struct {
	Endpoints services.Endpoints
	Client    Requester
	Messages  *MessageFactory
	Publisher Publisher
	// Tokens returns the bearer token source of a user.
	Tokens func(userID uuid.UUID) TokenSource
	Logger *zap.Logger
	Now    Clock
}

// Manager keeps live conversations in memory. Nothing survives a restart.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Messages == nil {
		cfg.Messages = NewMessageFactory(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a conversation for userID. host is the host the client is
// served from and selects the upstream base URL.
func (m *Manager) Create(userID uuid.UUID, firstName, host string) *Session {
	var tokens TokenSource
	if m.cfg.Tokens != nil {
		tokens = m.cfg.Tokens(userID)
	}

	s := NewSession(userID, firstName, Deps{
		Tokens:    tokens,
		Builder:   services.NewRequestBuilder(host, m.cfg.Endpoints),
		Client:    m.cfg.Client,
		Messages:  m.cfg.Messages,
		Publisher: m.cfg.Publisher,
		Logger:    m.cfg.Logger,
		Now:       m.cfg.Now,
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.cfg.Logger.Debug("conversation started",
		zap.Stringer("session_id", s.ID), zap.Stringer("user_id", userID), zap.String("upstream", s.deps.Builder.BaseURL()))
	return s
}

// Get returns the conversation if it exists and belongs to userID.
func (m *Manager) Get(id, userID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(id, userID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	return nil
}

// CloseUser drops every conversation owned by userID and returns how many
// were closed.
func (m *Manager) CloseUser(userID uuid.UUID) int {
	m.mu.Lock()
	var owned []*Session
	for id, s := range m.sessions {
		if s.UserID == userID {
			owned = append(owned, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range owned {
		s.Close()
	}
	return len(owned)
}

// Reap closes every conversation idle for at least ttl with no request in
// flight and returns how many were closed.
func (m *Manager) Reap(ttl time.Duration) int {
	now := m.cfg.Now()

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if expired(s.LastActive(), ttl, now) && s.Snapshot().Idle() {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
