package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres is the production system of record.
//
// Schema:
//
//	CREATE TABLE certificate_records (
//	    id              UUID PRIMARY KEY,
//	    institute_id    UUID NOT NULL,
//	    enrollment_no   TEXT NOT NULL,
//	    statement_no    TEXT NOT NULL DEFAULT '',
//	    student_name    TEXT NOT NULL,
//	    course          TEXT NOT NULL,
//	    branch          TEXT NOT NULL DEFAULT '',
//	    semester        TEXT NOT NULL DEFAULT '',
//	    university      TEXT NOT NULL DEFAULT '',
//	    subjects        TEXT[] NOT NULL DEFAULT '{}',
//	    issue_date      TEXT NOT NULL DEFAULT '',
//	    digest          TEXT NOT NULL DEFAULT '',
//	    signature_hex   TEXT NOT NULL DEFAULT '',
//	    key_fingerprint TEXT NOT NULL DEFAULT '',
//	    revoked         BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    UNIQUE (institute_id, enrollment_no, statement_no)
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, rec *models.CertificateRecord) error {
	query := `
		INSERT INTO certificate_records (id, institute_id, enrollment_no, statement_no,
			student_name, course, branch, semester, university, subjects, issue_date,
			digest, signature_hex, key_fingerprint, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.InstituteID,
		rec.EnrollmentNo,
		rec.StatementNo,
		rec.StudentName,
		rec.Course,
		rec.Branch,
		rec.Semester,
		rec.University,
		pq.Array(rec.Subjects),
		rec.IssueDate,
		rec.Digest,
		rec.SignatureHex,
		rec.KeyFingerprint,
		rec.Revoked,
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create certificate record: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.CertificateRecord, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *Postgres) FindByBusinessKey(ctx context.Context, key string) (*models.CertificateRecord, error) {
	return s.findOne(ctx,
		`WHERE UPPER(enrollment_no) = UPPER(TRIM($1)) OR (statement_no <> '' AND UPPER(statement_no) = UPPER(TRIM($1)))`,
		key,
	)
}

func (s *Postgres) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificate_records SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke certificate record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke certificate record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, institute_id, enrollment_no, statement_no, student_name, course,
		branch, semester, university, subjects, issue_date, digest, signature_hex,
		key_fingerprint, revoked, created_at
	FROM certificate_records
`

func (s *Postgres) findOne(ctx context.Context, where string, arg any) (*models.CertificateRecord, error) {
	var rec models.CertificateRecord
	err := s.db.QueryRowContext(ctx, selectColumns+where+` LIMIT 1`, arg).Scan(
		&rec.ID,
		&rec.InstituteID,
		&rec.EnrollmentNo,
		&rec.StatementNo,
		&rec.StudentName,
		&rec.Course,
		&rec.Branch,
		&rec.Semester,
		&rec.University,
		pq.Array(&rec.Subjects),
		&rec.IssueDate,
		&rec.Digest,
		&rec.SignatureHex,
		&rec.KeyFingerprint,
		&rec.Revoked,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate record: %w", err)
	}
	return &rec, nil
}
