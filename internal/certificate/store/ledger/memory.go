// Package ledger persists issued certificates keyed by digest. The digest
// uniqueness invariant is enforced on write by the store itself, never by a
// read-then-write check, so concurrent issuance of the same content cannot
// race past it.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

// InMemory implements the ledger with a map under a mutex. Dev and test
// backend; Postgres is the production store.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.Certificate
	byDigest map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[uuid.UUID]*models.Certificate),
		byDigest: make(map[string]uuid.UUID),
	}
}

// Append stores a new entry; a duplicate digest returns sentinel.ErrConflict
// atomically under the store lock.
func (s *InMemory) Append(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byDigest[cert.Digest]; exists {
		return sentinel.ErrConflict
	}
	stored := *cert
	s.byID[cert.ID] = &stored
	s.byDigest[cert.Digest] = cert.ID
	return nil
}

func (s *InMemory) FindByDigest(_ context.Context, digest string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDigest[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.copyOf(id), nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.copyOf(id), nil
}

// List returns entries newest first, capped at limit.
func (s *InMemory) List(_ context.Context, limit int) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Certificate, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, s.copyOf(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Revoke flips the status flag; the entry itself is never deleted.
func (s *InMemory) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	cert.Revoked = true
	return nil
}

// copyOf must be called with the lock held.
func (s *InMemory) copyOf(id uuid.UUID) *models.Certificate {
	stored := *s.byID[id]
	return &stored
}
