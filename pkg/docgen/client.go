// Package docgen is a client for the document compilation service that
// renders scorecard and deep-dive PDFs from a template name and a payload.
package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rx-intel/internal/resilience"
)

// maxDocumentBytes bounds a compiled document.
const maxDocumentBytes = 20 << 20

// Client compiles documents.
type Client interface {
	// Compile renders template with payload and returns the PDF bytes.
	Compile(ctx context.Context, template string, payload any) ([]byte, error)
	// Ping reports whether the service is reachable.
	Ping(ctx context.Context) error
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		policy:  resilience.Policy{Attempts: 2, Base: 500 * time.Millisecond, OnRetry: resilience.LogRetries("docgen")},
		breaker: resilience.NewBreaker("docgen", 3, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type compileRequest struct {
	Template string `json:"template"`
	Data     any    `json:"data"`
}

func (c *httpClient) Compile(ctx context.Context, template string, payload any) ([]byte, error) {
	body, err := json.Marshal(compileRequest{Template: template, Data: payload})
	if err != nil {
		return nil, eris.Wrap(err, "docgen: marshal payload")
	}
	return resilience.DoVal(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.compileOnce(ctx, template, body)
		})
	})
}

func (c *httpClient) compileOnce(ctx context.Context, template string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compile", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "docgen: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrapf(err, "docgen: compile %s", template), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "docgen: read response body"), 0)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("docgen: compile %s: status %d: %s", template, resp.StatusCode, firstLine(doc))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}
	if len(doc) > maxDocumentBytes {
		return nil, eris.Errorf("docgen: compile %s: document exceeds %d bytes", template, maxDocumentBytes)
	}
	return doc, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "docgen: create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "docgen: ping")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("docgen: ping: status %d", resp.StatusCode)
	}
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
