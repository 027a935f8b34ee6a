package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"certledger/internal/platform/audit"
	"certledger/internal/platform/logger"
	"certledger/internal/session/models"
	"certledger/internal/session/store"
	dErrors "certledger/pkg/domain-errors"
)

func newService(t *testing.T) (*Service, *audit.Memory) {
	t.Helper()
	auditor := audit.NewMemory()
	return New(store.NewInMemory(), logger.New(), auditor), auditor
}

func TestStartAndHistory(t *testing.T) {
	svc, auditor := newService(t)
	ctx := context.Background()

	session, err := svc.Start(ctx, "198.51.100.7", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.True(t, session.Active())

	found, err := svc.History(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, found.ID)
	require.Empty(t, found.Attempts)

	events := auditor.Events()
	require.Len(t, events, 1)
	require.Equal(t, audit.ActionSessionStarted, events[0].Action)
}

func TestHistoryUnknownSession(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.History(context.Background(), uuid.NewString())
	require.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestEnsureReusesActiveSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.Start(ctx, "198.51.100.7", "test-agent")
	require.NoError(t, err)

	same, created, err := svc.Ensure(ctx, session.ID, "198.51.100.7", "test-agent")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, session.ID, same.ID)
}

func TestEnsureIssuesFreshSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("no id presented", func(t *testing.T) {
		session, created, err := svc.Ensure(ctx, "", "198.51.100.7", "test-agent")
		require.NoError(t, err)
		require.True(t, created)
		require.NotEmpty(t, session.ID)
	})

	t.Run("unknown id presented", func(t *testing.T) {
		session, created, err := svc.Ensure(ctx, uuid.NewString(), "198.51.100.7", "test-agent")
		require.NoError(t, err)
		require.True(t, created)
		require.NotEmpty(t, session.ID)
	})

	t.Run("ended session presented", func(t *testing.T) {
		ended, err := svc.Start(ctx, "198.51.100.7", "test-agent")
		require.NoError(t, err)
		require.NoError(t, svc.End(ctx, ended.ID))

		session, created, err := svc.Ensure(ctx, ended.ID, "198.51.100.7", "test-agent")
		require.NoError(t, err)
		require.True(t, created)
		require.NotEqual(t, ended.ID, session.ID)
	})
}

func TestRecordAttempt(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.Start(ctx, "198.51.100.7", "test-agent")
	require.NoError(t, err)

	summary := models.AttemptSummary{
		AttemptID:         uuid.NewString(),
		CertificateNumber: "ENR-2042",
		Status:            "Approved",
		UploadedAt:        time.Now(),
	}
	require.NoError(t, svc.RecordAttempt(ctx, session.ID, summary))

	found, err := svc.History(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, found.Attempts, 1)
	require.Equal(t, summary.AttemptID, found.Attempts[0].AttemptID)

	t.Run("unknown session", func(t *testing.T) {
		err := svc.RecordAttempt(ctx, uuid.NewString(), summary)
		require.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestEndSession(t *testing.T) {
	svc, auditor := newService(t)
	ctx := context.Background()

	session, err := svc.Start(ctx, "198.51.100.7", "test-agent")
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, session.ID))

	t.Run("attempts rejected after end", func(t *testing.T) {
		err := svc.RecordAttempt(ctx, session.ID, models.AttemptSummary{
			AttemptID:  uuid.NewString(),
			Status:     "Approved",
			UploadedAt: time.Now(),
		})
		require.True(t, dErrors.Is(err, dErrors.CodeSessionEnded))
	})

	t.Run("ending twice rejected", func(t *testing.T) {
		err := svc.End(ctx, session.ID)
		require.True(t, dErrors.Is(err, dErrors.CodeSessionEnded))
	})

	t.Run("history survives end", func(t *testing.T) {
		found, err := svc.History(ctx, session.ID)
		require.NoError(t, err)
		require.False(t, found.Active())
	})

	events := auditor.Events()
	require.Len(t, events, 2)
	require.Equal(t, audit.ActionSessionEnded, events[1].Action)
}
