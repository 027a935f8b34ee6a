// Package handler exposes the document verification endpoints. Both run
// under the guest-session middleware, so every attempt lands on a session.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/internal/platform/middleware"
	sessionhandler "certledger/internal/session/handler"
	"certledger/internal/verification/models"
	"certledger/internal/verification/service"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
)

// maxRequestBytes bounds one multipart request body.
const maxRequestBytes = 32 << 20

// Service defines the interface for the verification pipeline.
type Service interface {
	VerifyDocuments(ctx context.Context, meta service.ClientMeta, uploads []service.Upload) ([]models.FileResult, error)
	ManualVerify(ctx context.Context, meta service.ClientMeta, certificateNumber string, fields map[string]any) (*models.FileResult, error)
}

type Handler struct {
	logger       *slog.Logger
	verification Service
}

func New(verification Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, verification: verification}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Post("/verify/manual", h.handleManualVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meta, ok := h.clientMeta(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	uploads, err := h.readUploads(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	results, err := h.verification.VerifyDocuments(ctx, meta, uploads)
	if err != nil {
		h.writeServiceError(w, r, "verify documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": meta.SessionID,
		"results":    results,
	})
}

func (h *Handler) handleManualVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meta, ok := h.clientMeta(w, r)
	if !ok {
		return
	}

	var req struct {
		CertificateNumber string         `json:"certificate_number"`
		Fields            map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.verification.ManualVerify(ctx, meta, req.CertificateNumber, req.Fields)
	if err != nil {
		h.writeServiceError(w, r, "manual verify", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": meta.SessionID,
		"result":     result,
	})
}

// clientMeta pulls the guest session the middleware resolved. The IP and
// user agent come from the current request, not the session record, so a
// session reused from another network still logs where each attempt
// actually originated.
func (h *Handler) clientMeta(w http.ResponseWriter, r *http.Request) (service.ClientMeta, bool) {
	session := sessionhandler.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "no session on request"))
		return service.ClientMeta{}, false
	}
	return service.ClientMeta{
		SessionID: session.ID,
		IPAddress: sessionhandler.ClientIP(r),
		UserAgent: r.UserAgent(),
	}, true
}

func (h *Handler) readUploads(r *http.Request) ([]service.Upload, error) {
	if r.MultipartForm == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no files submitted")
	}

	var uploads []service.Upload
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				return nil, dErrors.Wrap(dErrors.CodeBadRequest, "unreadable file part", err)
			}
			content, err := io.ReadAll(file)
			_ = file.Close()
			if err != nil {
				return nil, dErrors.Wrap(dErrors.CodeBadRequest, "unreadable file part", err)
			}
			uploads = append(uploads, service.Upload{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}
	return uploads, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "verification failed",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "verification rejected",
			"operation", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
