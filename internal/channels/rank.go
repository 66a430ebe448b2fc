package channels

import (
	"math"
	"sort"
)

// Engine ranks channels. It holds only immutable configuration.
type Engine struct {
	policy    Policy
	overrides []OverrideRule
}

// NewEngine creates a ranking engine with the given policy. Zero-valued
// policy fields fall back to DefaultPolicy.
func NewEngine(policy Policy) *Engine {
	def := DefaultPolicy()
	if policy.LossWeight == 0 && policy.DistanceWeight == 0 {
		policy.LossWeight, policy.DistanceWeight = def.LossWeight, def.DistanceWeight
	}
	if policy.DistanceCapKm <= 0 {
		policy.DistanceCapKm = def.DistanceCapKm
	}
	if policy.TravelSpeedKmh <= 0 {
		policy.TravelSpeedKmh = def.TravelSpeedKmh
	}
	if policy.MissingDistanceNorm == 0 {
		policy.MissingDistanceNorm = def.MissingDistanceNorm
	}
	return &Engine{policy: policy}
}

// WithOverrides sets the override rules applied to every quote.
func (e *Engine) WithOverrides(rules []OverrideRule) *Engine {
	e.overrides = append([]OverrideRule(nil), rules...)
	return e
}

// Policy returns the engine's effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Quote prices a single channel using the engine's overrides.
func (e *Engine) Quote(amount, marketRate float64, p Params, qc QuoteContext) Quote {
	return Price(amount, marketRate, p, e.overrides, qc)
}

// Rank prices every candidate and orders the quotes best first.
//
// Without distances the best quote is the highest payout. When any candidate
// carries a distance, each quote is scored as
//
//	loss_weight*(top - gets)/top + distance_weight*min(d/cap, 1)
//
// and the lowest score wins. Candidates without a distance are scored at the
// policy's missing-distance norm. Ties keep input order.
func (e *Engine) Rank(req RankRequest) Ranking {
	if len(req.Candidates) == 0 {
		return Ranking{Quotes: []Quote{}, Strategy: StrategyPayout}
	}

	qc := QuoteContext{SourceCurrency: req.SourceCurrency, TargetCurrency: req.TargetCurrency}
	quotes := make([]Quote, 0, len(req.Candidates))
	anyDistance := false
	for _, c := range req.Candidates {
		q := e.Quote(req.Amount, req.MarketRate, c.Params, qc)
		if c.DistanceKm != nil {
			anyDistance = true
			d := round(*c.DistanceKm, 2)
			t := round(*c.DistanceKm/e.policy.TravelSpeedKmh*60, 1)
			q.DistanceKm = &d
			q.TimeMin = &t
		}
		quotes = append(quotes, q)
	}

	strategy := StrategyPayout
	if anyDistance {
		strategy = StrategyPayoutProximity
		top := math.Inf(-1)
		for _, q := range quotes {
			top = math.Max(top, q.RecipientGets)
		}
		for i := range quotes {
			s := e.score(quotes[i], top)
			quotes[i].Score = &s
		}
		sort.SliceStable(quotes, func(i, j int) bool {
			return *quotes[i].Score < *quotes[j].Score
		})
	} else {
		sort.SliceStable(quotes, func(i, j int) bool {
			return quotes[i].RecipientGets > quotes[j].RecipientGets
		})
	}

	best := quotes[0]
	return Ranking{Quotes: quotes, Best: &best, Strategy: strategy}
}

func (e *Engine) score(q Quote, top float64) float64 {
	loss := 0.0
	if top > 0 {
		loss = (top - q.RecipientGets) / top
	}
	dnorm := e.policy.MissingDistanceNorm
	if q.DistanceKm != nil {
		dnorm = math.Min(math.Max(*q.DistanceKm, 0)/e.policy.DistanceCapKm, 1)
	}
	return e.policy.LossWeight*loss + e.policy.DistanceWeight*dnorm
}
