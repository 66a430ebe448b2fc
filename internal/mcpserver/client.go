package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/remitwise/internal/fraud"
	"github.com/mbd888/remitwise/internal/rates"
	"github.com/mbd888/remitwise/internal/transfer"
)

// Config holds the configuration for connecting to the remitwise API.
type Config struct {
	APIURL   string // Base URL, e.g. "http://localhost:8080"
	SenderID string // Default sender for fraud and history tools; also sent as X-Sender-ID
}

// Client is a pure HTTP client for the remitwise API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request and decodes a successful response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.cfg.SenderID != "" {
		req.Header.Set("X-Sender-ID", c.cfg.SenderID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// A blocked transfer is a 403 that still carries the transfer.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusForbidden {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetRate returns the market, house and competitor rates for a pair.
func (c *Client) GetRate(ctx context.Context, from, to string) (*rates.Quote, error) {
	var q rates.Quote
	path := "/v1/rates/" + url.PathEscape(from) + "/" + url.PathEscape(to)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// CompareChannels prices every channel for amount on a corridor.
func (c *Client) CompareChannels(ctx context.Context, from, to string, amount float64) (*transfer.Comparison, error) {
	q := url.Values{}
	if amount > 0 {
		q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	}
	var cmp transfer.Comparison
	path := "/v1/rates/compare/" + url.PathEscape(from) + "/" + url.PathEscape(to)
	if err := c.doRequest(ctx, http.MethodGet, path, q, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// OptimizeChannels ranks the channels a sender can reach.
func (c *Client) OptimizeChannels(ctx context.Context, req transfer.OptimizeRequest) (*transfer.OptimizeResult, error) {
	var res transfer.OptimizeResult
	if err := c.doRequest(ctx, http.MethodPost, "/v1/channels/optimize", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AssessFraud scores an attempted transfer without sending it.
func (c *Client) AssessFraud(ctx context.Context, req transfer.AssessRequest) (*fraud.AuditRecord, error) {
	var rec fraud.AuditRecord
	if err := c.doRequest(ctx, http.MethodPost, "/v1/fraud/assess", nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns a sender's recent transfers, newest first.
func (c *Client) History(ctx context.Context, senderID string) ([]transfer.Transfer, error) {
	var resp struct {
		Transfers []transfer.Transfer `json:"transfers"`
	}
	q := url.Values{"senderId": {senderID}}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/transfers/history", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}
