// Package service runs the document verification pipeline: OCR extraction,
// canonicalization, classification against the system of record, and the
// append-only attempt trail. Per-file OCR failures degrade to a recorded
// Doubtful attempt; only a fully unavailable extractor fails the request.
package service

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"certledger/internal/canonical"
	"certledger/internal/ocr"
	"certledger/internal/platform/audit"
	"certledger/internal/platform/metrics"
	sessionmodels "certledger/internal/session/models"
	"certledger/internal/verification/classifier"
	"certledger/internal/verification/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

const (
	// maxFilesPerRequest caps one multipart batch.
	maxFilesPerRequest = 10
	// extractConcurrency bounds parallel OCR round-trips per request.
	extractConcurrency = 4
)

// RecordStore is the system of record lookup.
type RecordStore interface {
	FindByBusinessKey(ctx context.Context, key string) (*models.CertificateRecord, error)
}

// AttemptStore is the append-only attempt trail.
type AttemptStore interface {
	Append(ctx context.Context, attempt *models.VerificationAttempt) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.VerificationAttempt, error)
}

// SessionRecorder appends attempt summaries to the guest session.
type SessionRecorder interface {
	RecordAttempt(ctx context.Context, id string, summary sessionmodels.AttemptSummary) error
}

// KeySource provides the issuer public key for the signature stage.
type KeySource interface {
	PublicKey() *rsa.PublicKey
}

// Upload is one submitted document.
type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ClientMeta is the request-scoped actor metadata recorded on attempts.
type ClientMeta struct {
	SessionID string
	IPAddress string
	UserAgent string
}

type Service struct {
	records   RecordStore
	attempts  AttemptStore
	sessions  SessionRecorder
	extractor ocr.Extractor
	keys      KeySource
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Publisher
}

func New(
	records RecordStore,
	attempts AttemptStore,
	sessions SessionRecorder,
	extractor ocr.Extractor,
	keySource KeySource,
	logger *slog.Logger,
	m *metrics.Metrics,
	auditor audit.Publisher,
) *Service {
	if auditor == nil {
		auditor = audit.Noop{}
	}
	return &Service{
		records:   records,
		attempts:  attempts,
		sessions:  sessions,
		extractor: extractor,
		keys:      keySource,
		logger:    logger,
		metrics:   m,
		audit:     auditor,
	}
}

// VerifyDocuments runs the pipeline for each upload. Extraction fans out
// bounded; classification and recording happen as extractions complete.
// When every file fails extraction the whole request reports unavailable,
// after the Doubtful attempts have been recorded.
func (s *Service) VerifyDocuments(ctx context.Context, meta ClientMeta, uploads []Upload) ([]models.FileResult, error) {
	if len(uploads) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no files submitted")
	}
	if len(uploads) > maxFilesPerRequest {
		return nil, dErrors.New(dErrors.CodeBadRequest, "too many files in one request")
	}

	extracted := make([]ocr.FieldMap, len(uploads))
	extractErrs := make([]error, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, upload := range uploads {
		g.Go(func() error {
			fields, err := s.extractor.Extract(gctx, upload.FileName, upload.ContentType, bytes.NewReader(upload.Content))
			extracted[i] = fields
			extractErrs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	results := make([]models.FileResult, 0, len(uploads))
	failures := 0
	for i, upload := range uploads {
		var result models.FileResult
		var err error
		if extractErrs[i] != nil {
			failures++
			s.logger.WarnContext(ctx, "extraction failed",
				"file", upload.FileName,
				"session_id", meta.SessionID,
				"error", extractErrs[i].Error(),
			)
			result, err = s.recordExtractionFailure(ctx, meta, upload, extractErrs[i])
		} else {
			result, err = s.classifyAndRecord(ctx, meta, upload.FileName, map[string]any(extracted[i]))
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if failures == len(uploads) {
		return nil, dErrors.New(dErrors.CodeUnavailable, "document extraction unavailable")
	}
	return results, nil
}

// ManualVerify classifies manually entered fields against the system of
// record, no OCR involved. The certificate number is the business key.
func (s *Service) ManualVerify(ctx context.Context, meta ClientMeta, certificateNumber string, fields map[string]any) (*models.FileResult, error) {
	if certificateNumber == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing certificate number")
	}

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload[canonical.FieldEnrollmentNo] = certificateNumber

	result, err := s.classifyAndRecord(ctx, meta, "", payload)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAttempts returns the full attempt rows for a session.
func (s *Service) ListAttempts(ctx context.Context, sessionID string) ([]*models.VerificationAttempt, error) {
	attempts, err := s.attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list attempts", err)
	}
	return attempts, nil
}

func (s *Service) classifyAndRecord(ctx context.Context, meta ClientMeta, fileName string, payload map[string]any) (models.FileResult, error) {
	submission := canonical.FromFields(payload)

	var matched *models.CertificateRecord
	businessKey := classifier.BusinessKey(submission)
	if businessKey != "" {
		rec, err := s.records.FindByBusinessKey(ctx, businessKey)
		switch {
		case err == nil:
			matched = rec
		case !errors.Is(err, sentinel.ErrNotFound):
			return models.FileResult{}, dErrors.Wrap(dErrors.CodeInternal, "record lookup failed", err)
		}
	}

	outcome := classifier.Classify(classifier.Input{
		Submission: submission,
		Record:     matched,
		PublicKey:  s.issuerKey(),
	})

	attempt := &models.VerificationAttempt{
		ID:           uuid.New(),
		SessionID:    meta.SessionID,
		BusinessKey:  businessKey,
		OCRPayload:   payload,
		Verdict:      outcome.Verdict,
		Reason:       outcome.Reason,
		UploadedFile: fileName,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    time.Now(),
	}
	if matched != nil {
		id := matched.ID
		attempt.RecordID = &id
	}

	digest := ""
	if !submission.IsEmpty() {
		digest = canonical.DigestRecord(submission)
	}

	if err := s.record(ctx, attempt); err != nil {
		return models.FileResult{}, err
	}
	return models.FileResult{
		FileName:        fileName,
		AttemptID:       attempt.ID,
		ExtractedFields: payload,
		Digest:          digest,
		Verdict:         outcome.Verdict,
		Reason:          outcome.Reason,
	}, nil
}

func (s *Service) recordExtractionFailure(ctx context.Context, meta ClientMeta, upload Upload, cause error) (models.FileResult, error) {
	s.metrics.IncrementOCRFailure()
	attempt := &models.VerificationAttempt{
		ID:           uuid.New(),
		SessionID:    meta.SessionID,
		OCRPayload:   map[string]any{classifier.ReasonOCRError: cause.Error()},
		Verdict:      models.VerdictDoubtful,
		Reason:       classifier.ReasonOCRError,
		UploadedFile: upload.FileName,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    time.Now(),
	}
	if err := s.record(ctx, attempt); err != nil {
		return models.FileResult{}, err
	}
	return models.FileResult{
		FileName:  upload.FileName,
		AttemptID: attempt.ID,
		Verdict:   models.VerdictDoubtful,
		Reason:    classifier.ReasonOCRError,
	}, nil
}

// record appends the attempt row, mirrors the summary onto the session, and
// emits the audit event. A session that ended mid-request surfaces as
// SessionEnded to the caller.
func (s *Service) record(ctx context.Context, attempt *models.VerificationAttempt) error {
	if err := s.attempts.Append(ctx, attempt); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "failed to record attempt", err)
	}

	summary := sessionmodels.AttemptSummary{
		AttemptID:         attempt.ID.String(),
		CertificateNumber: attempt.BusinessKey,
		OCRData:           attempt.OCRPayload,
		Status:            string(attempt.Verdict),
		UploadedAt:        attempt.CreatedAt,
	}
	if err := s.sessions.RecordAttempt(ctx, attempt.SessionID, summary); err != nil {
		return err
	}

	s.metrics.ObserveAttempt(string(attempt.Verdict))
	_ = s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionAttemptRecorded,
		Timestamp: attempt.CreatedAt,
		Subject:   attempt.ID.String(),
		Verdict:   string(attempt.Verdict),
		SessionID: attempt.SessionID,
	})
	return nil
}

func (s *Service) issuerKey() *rsa.PublicKey {
	if s.keys == nil {
		return nil
	}
	return s.keys.PublicKey()
}
