// Package store persists guest sessions. Redis is the production backend
// (sessions are TTL-bounded by nature); the in-memory store serves dev and
// tests. Both enforce the one-way ended transition at the store boundary so
// no caller can append past the end of a session.
package store

import (
	"context"
	"sync"
	"time"

	"certledger/internal/session/models"
	"certledger/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*models.GuestSession
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*models.GuestSession)}
}

func (s *InMemory) Create(_ context.Context, session *models.GuestSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := cloneSession(session)
	s.sessions[session.ID] = stored
	return nil
}

func (s *InMemory) Find(_ context.Context, id string) (*models.GuestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSession(session), nil
}

// AppendAttempt adds a summary to an active session. Ended sessions reject
// the write with ErrInvalidState.
func (s *InMemory) AppendAttempt(_ context.Context, id string, summary models.AttemptSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.Ended {
		return sentinel.ErrInvalidState
	}
	session.Attempts = append(session.Attempts, summary)
	session.UpdatedAt = time.Now()
	return nil
}

// End performs the one-way transition. Ending twice is ErrInvalidState.
func (s *InMemory) End(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.Ended {
		return sentinel.ErrInvalidState
	}
	session.Ended = true
	session.UpdatedAt = time.Now()
	return nil
}

func cloneSession(session *models.GuestSession) *models.GuestSession {
	stored := *session
	stored.Attempts = append([]models.AttemptSummary{}, session.Attempts...)
	return &stored
}
