// Package classifier decides the verdict for one submitted document against
// the system of record. The pipeline is a fixed short-circuit: business-key
// lookup outcome, field equality, then the signature stage when the matched
// record carries a signed digest. Classification is pure: same record and
// same submission always produce the same verdict.
package classifier

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"certledger/internal/canonical"
	"certledger/internal/signature"
	"certledger/internal/verification/models"
)

// Reasons attached to non-approved verdicts.
const (
	ReasonNoBusinessKey   = "no_business_key"
	ReasonRecordNotFound  = "record_not_found"
	ReasonRecordRevoked   = "record_revoked"
	ReasonFieldsMissing   = "comparison_fields_missing"
	ReasonNoPublicKey     = "no_public_key"
	ReasonSignatureFailed = "signature_invalid"
	ReasonOCRError        = "ocr_error"
)

// Input is everything classification needs. Record is nil when the
// business-key lookup found nothing. PublicKey is the issuer key used for
// the signature stage; nil means no key material is available.
type Input struct {
	Submission canonical.Record
	Record     *models.CertificateRecord
	PublicKey  *rsa.PublicKey
}

// Outcome carries the verdict and, for non-approved verdicts, why.
type Outcome struct {
	Verdict models.Verdict
	Reason  string
}

// BusinessKey picks the lookup key from a submission: enrollment number
// first, statement number as fallback. Empty means no key was extracted.
func BusinessKey(rec canonical.Record) string {
	if rec.EnrollmentNo != "" {
		return rec.EnrollmentNo
	}
	return rec.StatementNo
}

// Classify runs the pipeline. A missing or revoked record is Fraud, never
// Doubtful: absence of trust is treated as fraud. Doubtful is reserved for
// submissions too incomplete to compare.
func Classify(in Input) Outcome {
	if BusinessKey(in.Submission) == "" {
		return Outcome{Verdict: models.VerdictDoubtful, Reason: ReasonNoBusinessKey}
	}
	if in.Record == nil {
		return Outcome{Verdict: models.VerdictFraud, Reason: ReasonRecordNotFound}
	}
	if in.Record.Revoked {
		return Outcome{Verdict: models.VerdictFraud, Reason: ReasonRecordRevoked}
	}

	if outcome, decided := compareFields(in.Submission, in.Record); decided {
		return outcome
	}

	if in.Record.Digest != "" && in.Record.SignatureHex != "" {
		if in.PublicKey == nil {
			return Outcome{Verdict: models.VerdictDoubtful, Reason: ReasonNoPublicKey}
		}
		result := signature.VerifyWithFingerprint(in.Record.Digest, in.Record.SignatureHex, in.PublicKey, in.Record.KeyFingerprint)
		if !result.Valid {
			return Outcome{Verdict: models.VerdictFraud, Reason: ReasonSignatureFailed}
		}
	}

	return Outcome{Verdict: models.VerdictApproved}
}

// compareFields checks the extracted fields against the record. Name and
// course are required on the submission; branch and date compare only when
// both sides carry them. Returns decided=false when every check passed.
func compareFields(sub canonical.Record, rec *models.CertificateRecord) (Outcome, bool) {
	if sub.Name == "" || sub.Course == "" {
		return Outcome{Verdict: models.VerdictDoubtful, Reason: ReasonFieldsMissing}, true
	}
	if !equalTrimmed(sub.Name, rec.StudentName) {
		return mismatch(canonical.FieldName), true
	}
	if !equalTrimmed(sub.Course, rec.Course) {
		return mismatch(canonical.FieldCourse), true
	}
	if sub.Branch != "" && rec.Branch != "" && !equalTrimmed(sub.Branch, rec.Branch) {
		return mismatch(canonical.FieldBranch), true
	}
	if sub.Date != "" && rec.IssueDate != "" && canonical.NormalizeDate(sub.Date) != canonical.NormalizeDate(rec.IssueDate) {
		return mismatch(canonical.FieldDate), true
	}
	return Outcome{}, false
}

func mismatch(field string) Outcome {
	return Outcome{
		Verdict: models.VerdictFraud,
		Reason:  fmt.Sprintf("field_mismatch:%s", field),
	}
}

// equalTrimmed compares after trimming the edges. Interior content,
// including casing, must match the record byte for byte.
func equalTrimmed(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
