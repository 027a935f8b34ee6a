package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) newAttempt(sessionID string) *models.VerificationAttempt {
	recordID := uuid.New()
	return &models.VerificationAttempt{
		ID:           uuid.New(),
		SessionID:    sessionID,
		RecordID:     &recordID,
		BusinessKey:  "ENR-1001",
		OCRPayload:   map[string]any{"name": "Asha Rao"},
		Verdict:      models.VerdictApproved,
		UploadedFile: "degree.pdf",
		IPAddress:    "203.0.113.9",
		CreatedAt:    time.Now(),
	}
}

func (s *InMemorySuite) TestAppendAndFind() {
	attempt := s.newAttempt(uuid.NewString())
	require.NoError(s.T(), s.store.Append(s.ctx, attempt))

	found, err := s.store.FindByID(s.ctx, attempt.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), attempt.SessionID, found.SessionID)
	require.Equal(s.T(), attempt.Verdict, found.Verdict)

	s.Run("duplicate id conflicts", func() {
		require.ErrorIs(s.T(), s.store.Append(s.ctx, attempt), sentinel.ErrConflict)
	})

	s.Run("unknown id not found", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		require.ErrorIs(s.T(), err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestListBySessionInOrder() {
	sessionID := uuid.NewString()
	first := s.newAttempt(sessionID)
	second := s.newAttempt(sessionID)
	second.Verdict = models.VerdictFraud
	other := s.newAttempt(uuid.NewString())

	require.NoError(s.T(), s.store.Append(s.ctx, first))
	require.NoError(s.T(), s.store.Append(s.ctx, second))
	require.NoError(s.T(), s.store.Append(s.ctx, other))

	attempts, err := s.store.ListBySession(s.ctx, sessionID)
	require.NoError(s.T(), err)
	require.Len(s.T(), attempts, 2)
	require.Equal(s.T(), first.ID, attempts[0].ID)
	require.Equal(s.T(), second.ID, attempts[1].ID)

	s.Run("empty for unknown session", func() {
		attempts, err := s.store.ListBySession(s.ctx, uuid.NewString())
		require.NoError(s.T(), err)
		require.Empty(s.T(), attempts)
	})
}

func (s *InMemorySuite) TestStoredCopiesAreIsolated() {
	attempt := s.newAttempt(uuid.NewString())
	require.NoError(s.T(), s.store.Append(s.ctx, attempt))

	attempt.OCRPayload["name"] = "Changed"
	*attempt.RecordID = uuid.New()

	found, err := s.store.FindByID(s.ctx, attempt.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Asha Rao", found.OCRPayload["name"])
	require.NotEqual(s.T(), *attempt.RecordID, *found.RecordID)
}
