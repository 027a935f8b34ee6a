package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Postgres persists certificates in PostgreSQL. The UNIQUE constraint on
// digest is the transactional guarantee behind duplicate-issuance rejection.
//
// Schema:
//
//	CREATE TABLE certificates (
//	    id              UUID PRIMARY KEY,
//	    university      TEXT NOT NULL DEFAULT '',
//	    canonical_json  TEXT NOT NULL,
//	    digest          TEXT NOT NULL UNIQUE,
//	    signature_hex   TEXT NOT NULL,
//	    public_key_pem  TEXT NOT NULL DEFAULT '',
//	    public_key_jwk  JSONB,
//	    key_fingerprint TEXT NOT NULL DEFAULT '',
//	    metadata        JSONB NOT NULL DEFAULT '{}',
//	    revoked         BOOLEAN NOT NULL DEFAULT FALSE,
//	    issued_at       TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, cert *models.Certificate) error {
	metadata, err := json.Marshal(cert.Metadata)
	if err != nil {
		return fmt.Errorf("marshal certificate metadata: %w", err)
	}

	query := `
		INSERT INTO certificates (id, university, canonical_json, digest, signature_hex,
			public_key_pem, public_key_jwk, key_fingerprint, metadata, revoked, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		cert.ID,
		cert.University,
		cert.CanonicalJSON,
		cert.Digest,
		cert.SignatureHex,
		cert.PublicKeyPEM,
		nullableJSON(cert.PublicKeyJWK),
		cert.KeyFingerprint,
		metadata,
		cert.Revoked,
		cert.IssuedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append certificate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByDigest(ctx context.Context, digest string) (*models.Certificate, error) {
	return s.findOne(ctx, `WHERE digest = $1`, digest)
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *Postgres) List(ctx context.Context, limit int) ([]*models.Certificate, error) {
	query := selectColumns + ` ORDER BY issued_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func (s *Postgres) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificates SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, university, canonical_json, digest, signature_hex,
		public_key_pem, public_key_jwk, key_fingerprint, metadata, revoked, issued_at
	FROM certificates
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) findOne(ctx context.Context, where string, arg any) (*models.Certificate, error) {
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, selectColumns+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return cert, nil
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert     models.Certificate
		jwkRaw   sql.NullString
		metadata []byte
	)
	err := row.Scan(
		&cert.ID,
		&cert.University,
		&cert.CanonicalJSON,
		&cert.Digest,
		&cert.SignatureHex,
		&cert.PublicKeyPEM,
		&jwkRaw,
		&cert.KeyFingerprint,
		&metadata,
		&cert.Revoked,
		&cert.IssuedAt,
	)
	if err != nil {
		return nil, err
	}
	if jwkRaw.Valid {
		cert.PublicKeyJWK = json.RawMessage(jwkRaw.String)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cert.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal certificate metadata: %w", err)
		}
	}
	return &cert, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
