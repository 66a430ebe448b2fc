package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mbd888/remitwise/internal/circuitbreaker"
	"github.com/mbd888/remitwise/internal/metrics"
	"github.com/mbd888/remitwise/internal/retry"
)

// DefaultBaseURL is the public exchangerate-api endpoint. Rates for a base
// currency live at {base}/{FROM}.
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// HTTPProvider fetches live rates from an exchangerate-api compatible feed.
// Each base currency has its own circuit.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	retry   retry.Policy
	breaker *circuitbreaker.Breaker
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

// WithRetry replaces the retry policy.
func WithRetry(policy retry.Policy) HTTPOption {
	return func(p *HTTPProvider) { p.retry = policy }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) HTTPOption {
	return func(p *HTTPProvider) { p.breaker = b }
}

// NewHTTPProvider creates a provider for baseURL (DefaultBaseURL if empty).
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   retry.DefaultPolicy(),
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenCircuits lists the base currencies whose feed circuit is open.
func (p *HTTPProvider) OpenCircuits() []string {
	return p.breaker.Open()
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// MarketRate implements Provider.
func (p *HTTPProvider) MarketRate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}

	if !p.breaker.Allow(from) {
		return 0, ErrCircuitOpen
	}

	var rate float64
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		r, err := p.fetch(ctx, from, to)
		if err != nil {
			return err
		}
		rate = r
		return nil
	})

	// A feed that answers, even with "no such currency", is healthy.
	var se *statusError
	if err == nil || errors.Is(err, ErrNoRate) || (errors.As(err, &se) && se.clientSide()) {
		p.breaker.RecordSuccess(from)
	} else {
		p.breaker.RecordFailure(from)
	}
	if err != nil {
		return 0, err
	}
	return rate, nil
}

type statusError struct {
	code int
	base string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rate feed returned %d for %s", e.code, e.base)
}

func (e *statusError) clientSide() bool {
	return e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests
}

func (p *HTTPProvider) fetch(ctx context.Context, from, to string) (rate float64, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.RateFetchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+url.PathEscape(from), nil)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("build rate request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rates for %s: %w", from, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		se := &statusError{code: resp.StatusCode, base: from}
		if se.clientSide() {
			return 0, retry.Permanent(se)
		}
		return 0, se
	}

	var body latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rate feed: %w", err)
	}
	r, ok := body.Rates[to]
	if !ok || r <= 0 {
		return 0, retry.Permanent(fmt.Errorf("%s→%s: %w", from, to, ErrNoRate))
	}
	return r, nil
}

var _ Provider = (*HTTPProvider)(nil)
