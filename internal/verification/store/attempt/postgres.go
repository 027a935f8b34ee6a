package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

// Postgres persists verification attempts.
//
// Schema:
//
//	CREATE TABLE verification_attempts (
//	    id            UUID PRIMARY KEY,
//	    session_id    TEXT NOT NULL,
//	    record_id     UUID,
//	    business_key  TEXT NOT NULL DEFAULT '',
//	    ocr_payload   JSONB,
//	    verdict       TEXT NOT NULL,
//	    reason        TEXT NOT NULL DEFAULT '',
//	    uploaded_file TEXT NOT NULL DEFAULT '',
//	    ip_address    TEXT NOT NULL DEFAULT '',
//	    user_agent    TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX verification_attempts_session_idx
//	    ON verification_attempts (session_id, created_at);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, attempt *models.VerificationAttempt) error {
	var payload any
	if attempt.OCRPayload != nil {
		raw, err := json.Marshal(attempt.OCRPayload)
		if err != nil {
			return fmt.Errorf("marshal ocr payload: %w", err)
		}
		payload = raw
	}

	query := `
		INSERT INTO verification_attempts (id, session_id, record_id, business_key,
			ocr_payload, verdict, reason, uploaded_file, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.SessionID,
		attempt.RecordID,
		attempt.BusinessKey,
		payload,
		attempt.Verdict,
		attempt.Reason,
		attempt.UploadedFile,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append verification attempt: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationAttempt, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification attempt: %w", err)
	}
	return attempt, nil
}

func (s *Postgres) ListBySession(ctx context.Context, sessionID string) ([]*models.VerificationAttempt, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list verification attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.VerificationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT id, session_id, record_id, business_key, ocr_payload, verdict,
		reason, uploaded_file, ip_address, user_agent, created_at
	FROM verification_attempts
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*models.VerificationAttempt, error) {
	var (
		attempt models.VerificationAttempt
		payload []byte
	)
	err := row.Scan(
		&attempt.ID,
		&attempt.SessionID,
		&attempt.RecordID,
		&attempt.BusinessKey,
		&payload,
		&attempt.Verdict,
		&attempt.Reason,
		&attempt.UploadedFile,
		&attempt.IPAddress,
		&attempt.UserAgent,
		&attempt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &attempt.OCRPayload); err != nil {
			return nil, fmt.Errorf("unmarshal ocr payload: %w", err)
		}
	}
	return &attempt, nil
}
