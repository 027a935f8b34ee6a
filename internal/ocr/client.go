// Package ocr wraps the external OCR extraction service. The service is a
// black box that accepts a document and returns a flat field map with keys
// such as "Enrollment No" and "Student Name"; a missing key means the field
// was not recognized, not an error.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"certledger/internal/platform/metrics"
	dErrors "certledger/pkg/domain-errors"
)

var tracer = otel.Tracer("certledger/ocr")

// FieldMap is the raw extraction result. Values are strings except
// "Subjects", which may be a list.
type FieldMap map[string]any

// Extractor is the seam the verification service depends on; the HTTP
// client below is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, filename, contentType string, content io.Reader) (FieldMap, error)
}

// Client calls the OCR HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient builds a client with a bounded round-trip: timeouts surface as
// CodeUnavailable so callers can tell "could not check" from "checked and
// failed".
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// Extract uploads one document and decodes the extracted field map.
func (c *Client) Extract(ctx context.Context, filename, contentType string, content io.Reader) (FieldMap, error) {
	ctx, span := tracer.Start(ctx, "ocr.extract")
	defer span.End()
	span.SetAttributes(attribute.String("ocr.filename", filename))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveOCRLatency(time.Since(start))
	if err != nil {
		c.metrics.IncrementOCRFailure()
		span.SetStatus(codes.Error, "ocr round-trip failed")
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "OCR service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.IncrementOCRFailure()
		span.SetStatus(codes.Error, fmt.Sprintf("ocr status %d", resp.StatusCode))
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("OCR service returned status %d", resp.StatusCode))
	}

	var fields FieldMap
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		c.metrics.IncrementOCRFailure()
		span.SetStatus(codes.Error, "ocr payload decode failed")
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "OCR service returned an unreadable payload", err)
	}
	span.SetAttributes(attribute.Int("ocr.fields", len(fields)))
	return fields, nil
}
