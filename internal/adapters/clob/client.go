// Package clob implements ports.ClobClient against the Polymarket CLOB
// REST API, generalizing the teacher's rate-limited, retrying HTTP client
// (internal/adapters/polymarket/client.go) from market discovery to order
// placement and position monitoring.
package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://clob.polymarket.com"

	// CLOB general endpoints: 9000/10s documented → run at 60% → 540/s.
	generalRatePerSec = 540
	// /order and /order/{id}: tighter, order-management-specific bucket.
	orderRatePerSec = 50

	maxRetries    = 3
	baseRetryWait = 1 * time.Second
)

// Credentials are the pre-derived L2 API credentials for HMAC request
// signing. Deriving them from a wallet (L1 EIP-712) happens outside this
// process — see DESIGN.md for why go-ethereum and go-order-utils are not
// wired into this adapter.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Client is the HTTP client backing ports.ClobClient.
type Client struct {
	http         *http.Client
	base         string
	creds        Credentials
	generalLimit *rate.Limiter
	orderLimit   *rate.Limiter
}

// New creates a Client against base (or the production CLOB if empty).
func New(base string, creds Credentials) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:         &http.Client{Timeout: 5 * time.Second},
		base:         base,
		creds:        creds,
		generalLimit: rate.NewLimiter(generalRatePerSec, 50),
		orderLimit:   rate.NewLimiter(orderRatePerSec, 10),
	}
}

func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, out any) error {
	return c.doWithRetry(ctx, limiter, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	return c.doWithRetry(ctx, limiter, http.MethodPost, path, body, out)
}

func (c *Client) del(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	return c.doWithRetry(ctx, limiter, http.MethodDelete, path, body, out)
}

// doWithRetry signs every attempt fresh (the L2 timestamp must stay within
// the API's clock-skew tolerance) and retries up to maxRetries times with a
// linear backoff of baseRetryWait × attempt (no jitter), following the
// teacher's doWithRetry/sleep idiom.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, method, path string, reqBody, out any) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("clob.doWithRetry: marshal body: %w", err)
		}
		bodyStr = string(b)
	}

	url := c.base + path

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("clob.doWithRetry: rate limiter: %w", err)
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = bytes.NewReader([]byte(bodyStr))
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("clob.doWithRetry: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		headers, err := l2Headers(c.creds, method, path, bodyStr)
		if err != nil {
			return fmt.Errorf("clob.doWithRetry: sign: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("clob.doWithRetry: request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("clob rate limited", "attempt", attempt+1, "path", path)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("clob.doWithRetry: server error %d after %d retries: %s", resp.StatusCode, maxRetries, respBody)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("clob.doWithRetry: client error %d: %s", resp.StatusCode, respBody)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("clob.doWithRetry: decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("clob.doWithRetry: exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(attempt+1) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
