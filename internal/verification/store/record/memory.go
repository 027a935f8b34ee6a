// Package record stores the authoritative certificate records institutes
// upload, keyed for business-key lookup during verification.
package record

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*models.CertificateRecord
	byKey map[string]*models.CertificateRecord
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[uuid.UUID]*models.CertificateRecord),
		byKey: make(map[string]*models.CertificateRecord),
	}
}

func (s *InMemory) Create(_ context.Context, rec *models.CertificateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, key := range businessKeys(rec) {
		if _, exists := s.byKey[key]; exists {
			return sentinel.ErrConflict
		}
	}

	stored := cloneRecord(rec)
	s.byID[stored.ID] = stored
	for _, key := range businessKeys(stored) {
		s.byKey[key] = stored
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// FindByBusinessKey matches an enrollment or statement number,
// case-insensitively.
func (s *InMemory) FindByBusinessKey(_ context.Context, key string) (*models.CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byKey[normalizeKey(key)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *InMemory) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Revoked = true
	return nil
}

func businessKeys(rec *models.CertificateRecord) []string {
	var keys []string
	if rec.EnrollmentNo != "" {
		keys = append(keys, normalizeKey(rec.EnrollmentNo))
	}
	if rec.StatementNo != "" {
		keys = append(keys, normalizeKey(rec.StatementNo))
	}
	return keys
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func cloneRecord(rec *models.CertificateRecord) *models.CertificateRecord {
	stored := *rec
	stored.Subjects = append([]string(nil), rec.Subjects...)
	return &stored
}
