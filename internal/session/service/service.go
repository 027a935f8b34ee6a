// Package service owns the guest session lifecycle. Sessions are created
// lazily on first contact, accumulate verification attempt summaries, and
// can be ended exactly once. Ended sessions keep their history readable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"certledger/internal/platform/audit"
	"certledger/internal/session/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// Store persists guest sessions.
type Store interface {
	Create(ctx context.Context, session *models.GuestSession) error
	Find(ctx context.Context, id string) (*models.GuestSession, error)
	AppendAttempt(ctx context.Context, id string, summary models.AttemptSummary) error
	End(ctx context.Context, id string) error
}

type Service struct {
	store  Store
	logger *slog.Logger
	audit  audit.Publisher
}

func New(store Store, logger *slog.Logger, auditor audit.Publisher) *Service {
	if auditor == nil {
		auditor = audit.Noop{}
	}
	return &Service{store: store, logger: logger, audit: auditor}
}

// Start creates a fresh session for the given client.
func (s *Service) Start(ctx context.Context, ipAddress, userAgent string) (*models.GuestSession, error) {
	now := time.Now()
	session := &models.GuestSession{
		ID:        uuid.NewString(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Attempts:  []models.AttemptSummary{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to create session", err)
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionStarted,
		Timestamp: session.CreatedAt,
		Subject:   session.ID,
		SessionID: session.ID,
	})
	return session, nil
}

// Ensure resolves the caller's session: an existing active session is reused
// as-is, a missing or unknown id yields a fresh one. Presenting an ended
// session also yields a fresh one so a returning client is never locked out.
// The boolean reports whether the returned session is newly created.
func (s *Service) Ensure(ctx context.Context, id, ipAddress, userAgent string) (*models.GuestSession, bool, error) {
	if id != "" {
		session, err := s.store.Find(ctx, id)
		switch {
		case err == nil && session.Active():
			return session, false, nil
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return nil, false, dErrors.Wrap(dErrors.CodeInternal, "failed to load session", err)
		}
	}
	session, err := s.Start(ctx, ipAddress, userAgent)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// History returns the session with its attempt summaries. Ended sessions
// remain readable.
func (s *Service) History(ctx context.Context, id string) (*models.GuestSession, error) {
	session, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load session", err)
	}
	return session, nil
}

// RecordAttempt appends an attempt summary to an active session.
func (s *Service) RecordAttempt(ctx context.Context, id string, summary models.AttemptSummary) error {
	if err := s.store.AppendAttempt(ctx, id, summary); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeSessionEnded, "session has ended")
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "failed to record attempt", err)
		}
	}
	return nil
}

// End closes the session. Ending an already ended session is rejected with
// CodeSessionEnded; the history stays readable either way.
func (s *Service) End(ctx context.Context, id string) error {
	if err := s.store.End(ctx, id); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeSessionEnded, "session has already ended")
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "failed to end session", err)
		}
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionEnded,
		Timestamp: time.Now(),
		Subject:   id,
		SessionID: id,
	})
	return nil
}
