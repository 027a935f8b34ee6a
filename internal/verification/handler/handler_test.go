package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"certledger/internal/keys"
	"certledger/internal/ocr"
	"certledger/internal/platform/logger"
	sessionhandler "certledger/internal/session/handler"
	sessionservice "certledger/internal/session/service"
	sessionstore "certledger/internal/session/store"
	"certledger/internal/verification/models"
	"certledger/internal/verification/service"
	attemptstore "certledger/internal/verification/store/attempt"
	recordstore "certledger/internal/verification/store/record"
	dErrors "certledger/pkg/domain-errors"
)

func ocrUnavailable() error {
	return dErrors.New(dErrors.CodeUnavailable, "ocr backend unreachable")
}

type stubExtractor struct {
	fields ocr.FieldMap
	err    error
}

func (s *stubExtractor) Extract(context.Context, string, string, io.Reader) (ocr.FieldMap, error) {
	return s.fields, s.err
}

type testEnv struct {
	router   chi.Router
	attempts *attemptstore.InMemory
}

func newTestEnv(t *testing.T, extractor ocr.Extractor) *testEnv {
	t.Helper()

	records := recordstore.NewInMemory()
	recordstore.SeedSampleRecords(records)
	attempts := attemptstore.NewInMemory()
	sessions := sessionservice.New(sessionstore.NewInMemory(), logger.New(), nil)
	keyStore, err := keys.Load(t.TempDir())
	require.NoError(t, err)

	svc := service.New(records, attempts, sessions, extractor, keyStore, logger.New(), nil, nil)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(sessionhandler.EnsureSession(sessions, logger.New()))
		New(svc, logger.New()).Register(r)
	})
	return &testEnv{router: router, attempts: attempts}
}

func newTestServer(t *testing.T, extractor ocr.Extractor) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(newTestEnv(t, extractor).router)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range filenames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("pdf-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{fields: ocr.FieldMap{
		"enrollment_no": "ENR-1001",
		"name":          "Asha Rao",
		"course":        "B.Tech",
	}})

	body, contentType := multipartBody(t, "degree.pdf")
	resp, err := http.Post(srv.URL+"/verify", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		SessionID string              `json:"session_id"`
		Results   []models.FileResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	require.Len(t, out.Results, 1)
	require.Equal(t, models.VerdictApproved, out.Results[0].Verdict)
	require.Equal(t, "degree.pdf", out.Results[0].FileName)

	t.Run("session cookie issued", func(t *testing.T) {
		var found bool
		for _, c := range resp.Cookies() {
			if c.Name == sessionhandler.SessionCookie {
				found = true
				require.Equal(t, out.SessionID, c.Value)
			}
		}
		require.True(t, found)
	})
}

func TestVerifyEndpointRejectsEmptyBatch(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	body, contentType := multipartBody(t)
	resp, err := http.Post(srv.URL+"/verify", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyEndpointExtractorDown(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{err: ocrUnavailable()})

	body, contentType := multipartBody(t, "degree.pdf")
	resp, err := http.Post(srv.URL+"/verify", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVerifyRecordsRequestRemoteAddress(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{fields: ocr.FieldMap{
		"enrollment_no": "ENR-1001",
		"name":          "Asha Rao",
		"course":        "B.Tech",
	}})

	post := func(remoteAddr, sessionID string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, "degree.pdf")
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = remoteAddr
		if sessionID != "" {
			req.Header.Set(sessionhandler.SessionHeader, sessionID)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return rec
	}

	first := post("203.0.113.9:51234", "")
	sessionID := first.Header().Get(sessionhandler.SessionHeader)
	require.NotEmpty(t, sessionID)

	// Same session, different network: each attempt keeps its own origin.
	post("198.51.100.4:7070", sessionID)

	attempts, err := env.attempts.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, "203.0.113.9", attempts[0].IPAddress)
	require.Equal(t, "198.51.100.4", attempts[1].IPAddress)
}

func TestManualVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	payload := map[string]any{
		"certificate_number": "ENR-1001",
		"fields": map[string]any{
			"name":   "Asha Rao",
			"course": "B.Tech",
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/verify/manual", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		SessionID string            `json:"session_id"`
		Result    models.FileResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, models.VerdictApproved, out.Result.Verdict)

	t.Run("missing number is 400", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/verify/manual", "application/json", bytes.NewReader([]byte(`{}`)))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
