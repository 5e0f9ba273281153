// Package payee implements the fee-payee client: an HMAC-authenticated HTTP
// call that forwards platform and staking fee shares to an external
// distribution service.
package payee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/crypto"
	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

const receivePath = "/api/v1/receive"

// Client implements domain.FeePayee over HTTP. Transfers are fire-and-forget
// from the settlement core's perspective: the caller diverts the amount to
// the accumulated-fee ledger when Receive returns an error.
type Client struct {
	baseURL string
	auth    *crypto.HMACAuth
	http    *http.Client
	logger  *slog.Logger
}

// New creates a payee Client for the given base URL and credential.
func New(baseURL string, auth *crypto.HMACAuth, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("payee: invalid base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type receiveRequest struct {
	MarketID string `json:"market_id"`
	Amount   int64  `json:"amount"`
}

// Receive forwards a fee amount for a market to the distribution service.
// Any non-2xx response is an error; the settlement core treats it as a
// refusal and accumulates the amount instead.
func (c *Client) Receive(ctx context.Context, marketID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("payee: non-positive amount %d", amount)
	}

	body, err := json.Marshal(receiveRequest{MarketID: marketID, Amount: amount})
	if err != nil {
		return fmt.Errorf("payee: marshal receive request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+receivePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payee: build receive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(http.MethodPost, receivePath, string(body)) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payee: receive %s: %w", marketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payee: receive %s: status %d: %s", marketID, resp.StatusCode, snippet)
	}

	c.logger.DebugContext(ctx, "fee forwarded to payee",
		slog.String("market_id", marketID),
		slog.Int64("amount", amount),
	)
	return nil
}

// Compile-time interface check.
var _ domain.FeePayee = (*Client)(nil)
