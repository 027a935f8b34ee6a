package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"certledger/internal/certificate/service"
	"certledger/internal/certificate/store/ledger"
	"certledger/internal/jwtauth"
	"certledger/internal/keys"
)

func newRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	keyStore, err := keys.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load key store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := service.New(ledger.NewInMemory(), keyStore, logger, nil, nil)

	jwtService := jwtauth.New("test-signing-key", "test-issuer", "test-audience")
	token, err := jwtService.GenerateAccessToken(uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	h := New(svc, logger, jwtService)
	r := chi.NewRouter()
	h.Register(r)
	return r, token
}

func issueBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"fields": map[string]any{
			"Enrollment No": "12345",
			"Student Name":  "Asha Rao",
			"Course":        "B.Tech",
		},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestIssueRequiresToken(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/certificates", bytes.NewReader(issueBody(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestIssueVerifyFlowViaHandlers(t *testing.T) {
	router, token := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/certificates", bytes.NewReader(issueBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing certificate, got %d: %s", rec.Code, rec.Body.String())
	}

	var issued struct {
		CertificateID string `json:"certificate_id"`
		Digest        string `json:"digest"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if issued.CertificateID == "" || issued.Digest == "" {
		t.Fatalf("expected certificate_id and digest in response")
	}

	// Verify-by-digest is public, no token needed.
	verifyBody, _ := json.Marshal(map[string]string{"digest": issued.Digest})
	verifyReq := httptest.NewRequest(http.MethodPost, "/certificates/verify", bytes.NewReader(verifyBody))
	verifyRec := httptest.NewRecorder()
	router.ServeHTTP(verifyRec, verifyReq)
	if verifyRec.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying digest, got %d", verifyRec.Code)
	}

	var verdict struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(verifyRec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if verdict.Verdict != "Verified" {
		t.Fatalf("expected Verified verdict, got %q", verdict.Verdict)
	}
}

func TestIssueDuplicateReturns409(t *testing.T) {
	router, token := newRouter(t)

	for i, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/certificates", bytes.NewReader(issueBody(t)))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != wantStatus {
			t.Fatalf("attempt %d: expected %d, got %d", i, wantStatus, rec.Code)
		}
	}
}

func TestVerifyUnknownDigestIsTampered(t *testing.T) {
	router, _ := newRouter(t)

	body, _ := json.Marshal(map[string]string{
		"digest": "ba205902f3499500dc2e666d240aabd230a913afcd60a795f3af61eb25e7b05c",
	})
	req := httptest.NewRequest(http.MethodPost, "/certificates/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var verdict struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if verdict.Verdict != "Tampered" {
		t.Fatalf("expected Tampered for unknown digest, got %q", verdict.Verdict)
	}
}

func TestVerifyMalformedDigestIsBadRequest(t *testing.T) {
	router, _ := newRouter(t)

	body, _ := json.Marshal(map[string]string{"digest": "not-a-digest"})
	req := httptest.NewRequest(http.MethodPost, "/certificates/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed digest, got %d", rec.Code)
	}
}

func TestRevokeFlowViaHandlers(t *testing.T) {
	router, token := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/certificates", bytes.NewReader(issueBody(t)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var issued struct {
		CertificateID string `json:"certificate_id"`
		Digest        string `json:"digest"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}

	revokeReq := httptest.NewRequest(http.MethodPost, "/certificates/"+issued.CertificateID+"/revoke", nil)
	revokeReq.Header.Set("Authorization", "Bearer "+token)
	revokeRec := httptest.NewRecorder()
	router.ServeHTTP(revokeRec, revokeReq)
	if revokeRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 revoking, got %d", revokeRec.Code)
	}

	verifyBody, _ := json.Marshal(map[string]string{"digest": issued.Digest})
	verifyReq := httptest.NewRequest(http.MethodPost, "/certificates/verify", bytes.NewReader(verifyBody))
	verifyRec := httptest.NewRecorder()
	router.ServeHTTP(verifyRec, verifyReq)

	var verdict struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(verifyRec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if verdict.Verdict != "Tampered" {
		t.Fatalf("expected Tampered after revocation, got %q", verdict.Verdict)
	}
}
