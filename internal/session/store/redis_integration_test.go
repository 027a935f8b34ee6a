//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"certledger/internal/session/models"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := NewRedis(rc.Client, time.Hour)
	ctx := context.Background()

	newSession := func() *models.GuestSession {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return &models.GuestSession{
			ID:        uuid.NewString(),
			IPAddress: "203.0.113.9",
			UserAgent: "integration-test",
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("create and find", func(t *testing.T) {
		session := newSession()
		require.NoError(t, store.Create(ctx, session))

		found, err := store.Find(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, session.ID, found.ID)
		require.True(t, found.Active())

		require.ErrorIs(t, store.Create(ctx, session), sentinel.ErrConflict)

		_, err = store.Find(ctx, uuid.NewString())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("append attempt", func(t *testing.T) {
		session := newSession()
		require.NoError(t, store.Create(ctx, session))

		summary := models.AttemptSummary{
			AttemptID:  uuid.NewString(),
			Status:     "Approved",
			UploadedAt: time.Now(),
		}
		require.NoError(t, store.AppendAttempt(ctx, session.ID, summary))

		found, err := store.Find(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, found.Attempts, 1)
		require.Equal(t, summary.AttemptID, found.Attempts[0].AttemptID)
	})

	t.Run("end is one-way", func(t *testing.T) {
		session := newSession()
		require.NoError(t, store.Create(ctx, session))
		require.NoError(t, store.End(ctx, session.ID))

		require.ErrorIs(t, store.End(ctx, session.ID), sentinel.ErrInvalidState)
		err := store.AppendAttempt(ctx, session.ID, models.AttemptSummary{AttemptID: uuid.NewString()})
		require.ErrorIs(t, err, sentinel.ErrInvalidState)

		found, err := store.Find(ctx, session.ID)
		require.NoError(t, err)
		require.False(t, found.Active())
	})

	t.Run("sessions expire", func(t *testing.T) {
		short := NewRedis(rc.Client, time.Second)
		session := newSession()
		require.NoError(t, short.Create(ctx, session))

		require.Eventually(t, func() bool {
			_, err := short.Find(ctx, session.ID)
			return err != nil
		}, 5*time.Second, 200*time.Millisecond)
	})
}
