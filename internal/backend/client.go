// Package backend is the HTTP client for the external answering service.
// The service exposes exactly two operations: upload/ and query/.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eduquery/eduquery/internal/config"
	"github.com/eduquery/eduquery/internal/domain"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	uploadPath = "upload/"
	queryPath  = "query/"

	// maxResponseBytes caps how much of a backend response is read
	maxResponseBytes = 8 << 20
)

// Client talks to the answering service
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client from configuration
func NewClient(cfg config.BackendConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	// Relative paths must resolve under the base, not replace its last segment.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// BaseURL returns the resolved base API URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Upload sends the file as multipart form field "file" to upload/
func (c *Client) Upload(ctx context.Context, file *domain.PendingFile) (*domain.UploadAck, error) {
	const op = "upload"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	status, respBody, err := c.post(ctx, op, uploadPath, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Document uploaded",
		zap.String("filename", file.Name),
		zap.Int64("size", file.Size),
		zap.Int("status", status),
	)
	return &domain.UploadAck{Status: status, Body: respBody}, nil
}

// Query posts {"question": question} to query/ and decodes the answer
func (c *Client) Query(ctx context.Context, question string) (*domain.AnswerResult, error) {
	const op = "query"

	payload, err := json.Marshal(domain.QueryRequest{Question: question})
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	status, respBody, err := c.post(ctx, op, queryPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var result domain.AnswerResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}

	c.logger.Info("Question answered",
		zap.Int("status", status),
		zap.Int("answer_len", len(result.Answer)),
	)
	return &result, nil
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader) (int, []byte, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("op", op),
			zap.String("url", endpoint.String()),
			zap.Error(err),
		)
		return 0, nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Backend response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, respBody, &domain.BackendError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}
	return resp.StatusCode, respBody, nil
}

// errorMessage extracts a string "error" field from a possibly non-JSON body.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	field := gjson.GetBytes(body, "error")
	if field.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(field.String())
}
