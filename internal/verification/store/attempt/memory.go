// Package attempt persists verification attempts. The store is append-only:
// attempts are evidence and are never updated or deleted.
package attempt

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

type InMemory struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*models.VerificationAttempt
	bySession map[string][]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[uuid.UUID]*models.VerificationAttempt),
		bySession: make(map[string][]uuid.UUID),
	}
}

func (s *InMemory) Append(_ context.Context, attempt *models.VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[attempt.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := cloneAttempt(attempt)
	s.byID[stored.ID] = stored
	s.bySession[stored.SessionID] = append(s.bySession[stored.SessionID], stored.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.VerificationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAttempt(attempt), nil
}

// ListBySession returns a session's attempts in insertion order.
func (s *InMemory) ListBySession(_ context.Context, sessionID string) ([]*models.VerificationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySession[sessionID]
	out := make([]*models.VerificationAttempt, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneAttempt(s.byID[id]))
	}
	return out, nil
}

func cloneAttempt(attempt *models.VerificationAttempt) *models.VerificationAttempt {
	stored := *attempt
	if attempt.RecordID != nil {
		id := *attempt.RecordID
		stored.RecordID = &id
	}
	if attempt.OCRPayload != nil {
		payload := make(map[string]any, len(attempt.OCRPayload))
		for k, v := range attempt.OCRPayload {
			payload[k] = v
		}
		stored.OCRPayload = payload
	}
	return &stored
}
