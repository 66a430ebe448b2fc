package rates

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mbd888/remitwise/internal/logging"
	"github.com/mbd888/remitwise/internal/metrics"
	"github.com/mbd888/remitwise/internal/traces"
)

// Resolver turns a fallible Provider into a total rate lookup.
type Resolver struct {
	provider Provider
	cache    Cache
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResolver creates a resolver over provider with an in-memory cache and
// a 5 second fetch timeout.
func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    NewMemoryCache(24 * time.Hour),
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// WithCache replaces the last-known rate cache.
func (r *Resolver) WithCache(c Cache) *Resolver {
	r.cache = c
	return r
}

// WithTimeout bounds each upstream fetch.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Resolve returns a market rate for from→to. It never fails: a live rate
// is preferred, then the last cached one, then the static table, then 1.0.
func (r *Resolver) Resolve(ctx context.Context, from, to string) Resolved {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	ctx, span := traces.StartSpan(ctx, "rates.Resolve", traces.Corridor(from, to))
	defer span.End()

	res := r.resolve(ctx, from, to)
	span.SetAttributes(traces.RateSource(string(res.Source)))
	metrics.RateLookupsTotal.WithLabelValues(string(res.Source)).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, from, to string) Resolved {
	if from == to {
		return Resolved{Rate: 1, Source: SourceLive}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	rate, err := r.provider.MarketRate(fetchCtx, from, to)
	cancel()
	if err == nil {
		if cerr := r.cache.Set(ctx, from, to, rate); cerr != nil {
			logging.L(ctx).Warn("failed to cache rate", "from", from, "to", to, "error", cerr)
		}
		return Resolved{Rate: rate, Source: SourceLive}
	}

	log := r.logger
	if log == nil {
		log = logging.L(ctx)
	}
	log.Warn("live rate unavailable, falling back", "from", from, "to", to, "error", err)

	if cached, ok, cerr := r.cache.Get(ctx, from, to); cerr != nil {
		log.Warn("rate cache read failed", "from", from, "to", to, "error", cerr)
	} else if ok {
		return Resolved{Rate: cached, Source: SourceCached}
	}

	if static, ok := StaticRate(from, to); ok {
		return Resolved{Rate: static, Source: SourceStatic}
	}
	return Resolved{Rate: 1, Source: SourceStatic}
}
