package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"certledger/internal/certificate/models"
	"certledger/internal/platform/middleware"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
)

// Service defines the interface for certificate ledger operations.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest, actorID string) (*models.IssueResponse, error)
	VerifyByDigest(ctx context.Context, digest string) (*models.VerifyDigestResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	List(ctx context.Context) ([]*models.Certificate, error)
	Revoke(ctx context.Context, id uuid.UUID, actorID string) error
}

// Handler handles certificate ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	certificates Service
	jwtValidator middleware.JWTValidator
}

func New(certificates Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		certificates: certificates,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the routes. Issuance and administration require an
// institute token; verify-by-digest is public.
func (h *Handler) Register(r chi.Router) {
	r.Post("/certificates/verify", h.handleVerifyByDigest)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/certificates", h.handleIssue)
		r.Get("/certificates", h.handleList)
		r.Get("/certificates/{id}", h.handleGet)
		r.Post("/certificates/{id}/revoke", h.handleRevoke)
	})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.certificates.Issue(ctx, req, middleware.GetInstituteID(ctx))
	if err != nil {
		h.writeServiceError(w, r, "issue certificate", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleVerifyByDigest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Digest == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing digest in request body"))
		return
	}

	resp, err := h.certificates.VerifyByDigest(ctx, req.Digest)
	if err != nil {
		h.writeServiceError(w, r, "verify digest", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cert, err := h.certificates.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	certs, err := h.certificates.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list certificates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"certificates": certs})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.certificates.Revoke(ctx, id, middleware.GetInstituteID(ctx)); err != nil {
		h.writeServiceError(w, r, "revoke certificate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	if !govalidator.IsUUID(raw) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid certificate id"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid certificate id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "certificate operation failed",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "certificate operation rejected",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
