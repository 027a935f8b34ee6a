// Package service owns certificate issuance and digest verification against
// the signed ledger. Cryptographic failures during verification are business
// outcomes expressed as verdicts; only infrastructure failures surface as
// errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"certledger/internal/canonical"
	"certledger/internal/certificate/models"
	"certledger/internal/keys"
	"certledger/internal/platform/audit"
	"certledger/internal/platform/metrics"
	"certledger/internal/signature"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// Ledger is the append-only store of issued certificates.
type Ledger interface {
	Append(ctx context.Context, cert *models.Certificate) error
	FindByDigest(ctx context.Context, digest string) (*models.Certificate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	List(ctx context.Context, limit int) ([]*models.Certificate, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// listLimit caps the certificate listing endpoint.
const listLimit = 200

type Service struct {
	ledger  Ledger
	keys    *keys.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

func New(ledger Ledger, keyStore *keys.Store, logger *slog.Logger, m *metrics.Metrics, auditor audit.Publisher) *Service {
	if auditor == nil {
		auditor = audit.Noop{}
	}
	return &Service{
		ledger:  ledger,
		keys:    keyStore,
		logger:  logger,
		metrics: m,
		audit:   auditor,
	}
}

// Issue appends a new certificate to the ledger. Two shapes are accepted:
// raw fields the service canonicalizes and signs with the issuer key, or a
// pre-signed triple from an external issuer. Duplicate canonical content is
// rejected with CodeDuplicateDigest.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest, actorID string) (*models.IssueResponse, error) {
	var cert *models.Certificate
	var err error
	if req.PreSigned() {
		cert, err = s.buildPreSigned(req)
	} else {
		cert, err = s.buildSigned(req)
	}
	if err != nil {
		return nil, err
	}

	cert.ID = uuid.New()
	cert.IssuedAt = time.Now()

	if err := s.ledger.Append(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementDuplicate()
			_ = s.audit.Emit(ctx, audit.Event{
				Action:  audit.ActionDuplicateRejected,
				Subject: cert.ID.String(),
				Digest:  cert.Digest,
				ActorID: actorID,
			})
			return nil, dErrors.New(dErrors.CodeDuplicateDigest, "certificate with this digest already exists")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "store certificate", err)
	}

	s.metrics.IncrementIssued()
	_ = s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionCertificateIssued,
		Subject: cert.ID.String(),
		Digest:  cert.Digest,
		ActorID: actorID,
	})

	return &models.IssueResponse{CertificateID: cert.ID.String(), Digest: cert.Digest}, nil
}

// buildSigned canonicalizes the submitted fields and signs the digest with
// the issuer key.
func (s *Service) buildSigned(req models.IssueRequest) (*models.Certificate, error) {
	rec := canonical.FromFields(req.Fields)
	if rec.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no recognized certificate fields")
	}

	serialized := rec.Serialize()
	digest := canonical.Digest(serialized)

	sigHex, err := signature.Sign(digest, s.keys.PrivateKey())
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "sign digest", err)
	}

	pubPEM, err := s.keys.PublicKeyPEM()
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "encode issuer public key", err)
	}

	university := req.University
	if university == "" {
		university = rec.University
	}

	return &models.Certificate{
		University:     university,
		CanonicalJSON:  string(serialized),
		Digest:         digest,
		SignatureHex:   sigHex,
		PublicKeyPEM:   string(pubPEM),
		KeyFingerprint: keys.Fingerprint(s.keys.PublicKey()),
		Metadata:       req.Metadata,
	}, nil
}

// buildPreSigned validates an externally signed triple before it enters the
// ledger: the digest must match the canonical JSON and, when key material is
// supplied, the signature must verify under it. A triple without key
// material is still accepted; its signature cannot be checked, and
// VerifyByDigest reports Unknown for such entries until the issuer
// registers a key.
func (s *Service) buildPreSigned(req models.IssueRequest) (*models.Certificate, error) {
	if req.CanonicalJSON == "" || req.Digest == "" || req.SignatureHex == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing required fields: canonical_json, digest, signature_hex")
	}
	if !canonical.IsDigest(req.Digest) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "digest must be 64 hex characters")
	}
	if canonical.Digest([]byte(req.CanonicalJSON)) != req.Digest {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "digest does not match canonical_json")
	}

	cert := &models.Certificate{
		University:    req.University,
		CanonicalJSON: req.CanonicalJSON,
		Digest:        req.Digest,
		SignatureHex:  req.SignatureHex,
		PublicKeyJWK:  req.PublicKeyJWK,
		Metadata:      req.Metadata,
	}
	if cert.University == "" {
		if u, ok := req.Metadata["university"].(string); ok {
			cert.University = u
		}
	}

	keyMaterial := []byte(req.PublicKeyPEM)
	if len(keyMaterial) == 0 && len(req.PublicKeyJWK) > 0 {
		keyMaterial = req.PublicKeyJWK
	}
	if len(keyMaterial) > 0 {
		pemBytes, err := keys.NormalizePublicKey(keyMaterial)
		if err != nil {
			return nil, err
		}
		pub, err := keys.ParsePublicKeyPEM(pemBytes)
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInvalidKeyMaterial, "invalid public key", err)
		}
		if res := signature.Verify(req.Digest, req.SignatureHex, pub); !res.Valid {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "signature does not verify under the supplied public key")
		}
		cert.PublicKeyPEM = string(pemBytes)
		cert.KeyFingerprint = keys.Fingerprint(pub)
	}

	return cert, nil
}

// VerifyByDigest classifies a digest against the ledger. Stage order is
// fixed and short-circuits: lookup, then revocation, then signature.
func (s *Service) VerifyByDigest(ctx context.Context, digest string) (*models.VerifyDigestResponse, error) {
	if !canonical.IsDigest(digest) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "digest must be 64 hex characters")
	}

	cert, err := s.ledger.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Absence of trust, classified, not errored.
			return &models.VerifyDigestResponse{
				Verdict: models.VerdictTampered,
				Reason:  "digest not found in ledger",
			}, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "ledger lookup", err)
	}

	if cert.Revoked {
		return &models.VerifyDigestResponse{
			Verdict:     models.VerdictTampered,
			Reason:      "certificate revoked",
			Certificate: cert.Summarize(),
		}, nil
	}

	if cert.PublicKeyPEM == "" {
		return &models.VerifyDigestResponse{
			Verdict:     models.VerdictUnknown,
			Reason:      "no public key stored for this certificate",
			Certificate: cert.Summarize(),
		}, nil
	}

	pub, err := keys.ParsePublicKeyPEM([]byte(cert.PublicKeyPEM))
	if err != nil {
		s.logger.ErrorContext(ctx, "stored public key unreadable",
			"certificate_id", cert.ID,
			"error", err,
		)
		return &models.VerifyDigestResponse{
			Verdict:     models.VerdictUnknown,
			Reason:      "stored public key unreadable",
			Certificate: cert.Summarize(),
		}, nil
	}

	res := signature.VerifyWithFingerprint(digest, cert.SignatureHex, pub, cert.KeyFingerprint)
	if !res.Valid {
		return &models.VerifyDigestResponse{
			Verdict:     models.VerdictTampered,
			Reason:      string(res.Reason),
			Certificate: cert.Summarize(),
		}, nil
	}

	return &models.VerifyDigestResponse{
		Verdict:     models.VerdictVerified,
		Certificate: cert.Summarize(),
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	cert, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "ledger lookup", err)
	}
	return cert, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Certificate, error) {
	certs, err := s.ledger.List(ctx, listLimit)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list certificates", err)
	}
	return certs, nil
}

// Revoke flags a certificate; subsequent digest verifications classify it as
// Tampered. Explicit administrative action, never erasure.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, actorID string) error {
	if err := s.ledger.Revoke(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "revoke certificate", err)
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionCertificateRevoked,
		Subject: id.String(),
		ActorID: actorID,
	})
	return nil
}
