// Package client talks to the turnos backend REST API. Each call makes
// exactly one HTTP attempt; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/session"
)

const maxResponseBytes = 4 << 20

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Session   *session.Session
	Logger    *zap.Logger
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	session *session.Session
	logger  *zap.Logger
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", base.Scheme)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		session: opts.Session,
		logger:  logger,
	}, nil
}

func (c *Client) Session() *session.Session { return c.session }

func (c *Client) do(ctx context.Context, method string, query url.Values, body, out any, segments ...string) error {
	endpoint := c.baseURL.JoinPath(append([]string{"api"}, segments...)...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", endpoint.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return &APIError{Kind: ErrNetwork, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Kind: ErrNetwork, Status: resp.StatusCode, RequestID: requestID, Err: err}
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", endpoint.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
		c.session.Clear(session.ReasonUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, message := parseErrorBody(raw)
		apiErr := &APIError{
			Kind:      kindForStatus(resp.StatusCode),
			Status:    resp.StatusCode,
			Code:      code,
			Message:   message,
			RequestID: requestID,
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			c.logger.Warn("api server error", zap.Int("status", resp.StatusCode), zap.String("path", endpoint.Path), zap.String("request_id", requestID))
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Kind: ErrServer, Status: resp.StatusCode, Message: "invalid response body", RequestID: requestID, Err: err}
	}
	return nil
}
