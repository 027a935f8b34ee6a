package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) newCertificate(digest string) *models.Certificate {
	return &models.Certificate{
		ID:            uuid.New(),
		University:    "Gujarat Technological University",
		CanonicalJSON: `{"enrollment_no":"12345"}`,
		Digest:        digest,
		SignatureHex:  "deadbeef",
		PublicKeyPEM:  "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----",
		IssuedAt:      time.Now(),
	}
}

// TestAppendAndLookups verifies the store correctly appends and retrieves entries.
func (s *LedgerStoreSuite) TestAppendAndLookups() {
	s.Run("appends and finds by digest", func() {
		cert := s.newCertificate("digest-a")
		s.Require().NoError(s.store.Append(s.ctx, cert))

		found, err := s.store.FindByDigest(s.ctx, "digest-a")
		s.Require().NoError(err)
		s.Equal(cert.ID, found.ID)
		s.Equal(cert.CanonicalJSON, found.CanonicalJSON)
	})

	s.Run("finds by id", func() {
		cert := s.newCertificate("digest-b")
		s.Require().NoError(s.store.Append(s.ctx, cert))

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal("digest-b", found.Digest)
	})

	s.Run("returns ErrNotFound for unknown digest", func() {
		_, err := s.store.FindByDigest(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestDigestUniqueness verifies duplicate canonical content is rejected, not overwritten.
func (s *LedgerStoreSuite) TestDigestUniqueness() {
	first := s.newCertificate("digest-dup")
	s.Require().NoError(s.store.Append(s.ctx, first))

	second := s.newCertificate("digest-dup")
	err := s.store.Append(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The original entry survives untouched.
	found, err := s.store.FindByDigest(s.ctx, "digest-dup")
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
}

func (s *LedgerStoreSuite) TestListNewestFirst() {
	old := s.newCertificate("digest-old")
	old.IssuedAt = time.Now().Add(-time.Hour)
	s.Require().NoError(s.store.Append(s.ctx, old))

	recent := s.newCertificate("digest-recent")
	s.Require().NoError(s.store.Append(s.ctx, recent))

	list, err := s.store.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("digest-recent", list[0].Digest)

	capped, err := s.store.List(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(capped, 1)
}

func (s *LedgerStoreSuite) TestRevokeFlagsWithoutErasing() {
	cert := s.newCertificate("digest-revoke")
	s.Require().NoError(s.store.Append(s.ctx, cert))

	s.Require().NoError(s.store.Revoke(s.ctx, cert.ID))

	found, err := s.store.FindByDigest(s.ctx, "digest-revoke")
	s.Require().NoError(err)
	s.True(found.Revoked)

	s.Require().ErrorIs(s.store.Revoke(s.ctx, uuid.New()), sentinel.ErrNotFound)
}

func (s *LedgerStoreSuite) TestStoredEntriesAreIsolatedCopies() {
	cert := s.newCertificate("digest-copy")
	s.Require().NoError(s.store.Append(s.ctx, cert))

	found, err := s.store.FindByDigest(s.ctx, "digest-copy")
	s.Require().NoError(err)
	found.SignatureHex = "mutated"

	again, err := s.store.FindByDigest(s.ctx, "digest-copy")
	s.Require().NoError(err)
	s.Equal("deadbeef", again.SignatureHex)
}
