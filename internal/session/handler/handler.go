// Package handler exposes the guest session endpoints: explicit start,
// attempt history, and the one-way end transition.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"certledger/internal/platform/middleware"
	"certledger/internal/session/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
)

// Service defines the interface for session lifecycle operations.
type Service interface {
	Start(ctx context.Context, ipAddress, userAgent string) (*models.GuestSession, error)
	History(ctx context.Context, id string) (*models.GuestSession, error)
	End(ctx context.Context, id string) error
}

type Handler struct {
	logger   *slog.Logger
	sessions Service
}

func New(sessions Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, sessions: sessions}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.handleStart)
	r.Get("/sessions/{id}/history", h.handleHistory)
	r.Post("/sessions/{id}/end", h.handleEnd)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Start(r.Context(), ClientIP(r), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, r, "start session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "session history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.End(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	if !govalidator.IsUUID(raw) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid session id"))
		return "", false
	}
	return raw, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "session operation failed",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "session operation rejected",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
