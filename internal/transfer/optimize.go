package transfer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mbd888/remitwise/internal/channels"
	"github.com/mbd888/remitwise/internal/metrics"
	"github.com/mbd888/remitwise/internal/rates"
	"github.com/mbd888/remitwise/internal/traces"
)

// OptimizeRequest asks for the best channel for a transfer. AvailableBrands
// and the keys of BrandDistancesKm are free text resolved against the
// catalog; entries that resolve to no brand are ignored.
type OptimizeRequest struct {
	Amount           float64            `json:"amount" binding:"gt=0"`
	SourceCurrency   string             `json:"fromCurrency" binding:"required,currency"`
	TargetCurrency   string             `json:"toCurrency" binding:"required,currency"`
	AvailableBrands  []string           `json:"availableBrands" binding:"omitempty,max=50,dive,max=256"`
	BrandDistancesKm map[string]float64 `json:"brandDistancesKm" binding:"omitempty,max=50,dive,gte=0"`
}

// OptimizeResult is the ranked set of channels plus a recommendation.
type OptimizeResult struct {
	Recommendation   string            `json:"recommendation"`
	Strategy         channels.Strategy `json:"strategy"`
	MarketRate       float64           `json:"marketRate"`
	OurRate          float64           `json:"ourRate"`
	RateSource       rates.Source      `json:"rateSource"`
	Currency         string            `json:"currency"`
	Options          []channels.Quote  `json:"options"`
	Best             channels.Quote    `json:"best"`
	UnresolvedBrands []string          `json:"unresolvedBrands,omitempty"`
}

// Optimize ranks the channels available for a transfer.
//
// Without an availability list every catalog brand competes and the house
// channel is added. With one, only the brands it resolves to compete.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	from, to, err := pair(req.SourceCurrency, req.TargetCurrency)
	if err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "transfer.Optimize", traces.Corridor(from, to), traces.Amount(req.Amount))
	defer span.End()

	r := s.rates.Resolve(ctx, from, to)
	house := s.catalog.HouseParams()

	pool, unresolved := s.pool(req.AvailableBrands)
	distances := s.distances(req.BrandDistancesKm)

	candidates := make([]channels.Candidate, 0, len(pool)+1)
	for _, p := range pool {
		c := channels.Candidate{Params: p}
		if d, ok := distances[p.Name]; ok {
			c.DistanceKm = &d
		}
		candidates = append(candidates, c)
	}
	if len(req.AvailableBrands) == 0 {
		candidates = append(candidates, channels.Candidate{Params: house})
	}

	ranking := s.engine.Rank(channels.RankRequest{
		Amount:         req.Amount,
		MarketRate:     r.Rate,
		SourceCurrency: from,
		TargetCurrency: to,
		Candidates:     candidates,
	})
	metrics.ChannelRankingsTotal.WithLabelValues(string(ranking.Strategy)).Inc()

	ourRate := s.engine.Quote(req.Amount, r.Rate, house,
		channels.QuoteContext{SourceCurrency: from, TargetCurrency: to}).ExchangeRate

	res := &OptimizeResult{
		Recommendation:   recommendation(ranking.Best, to),
		Strategy:         ranking.Strategy,
		MarketRate:       r.Rate,
		OurRate:          ourRate,
		RateSource:       r.Source,
		Currency:         to,
		Options:          ranking.Quotes,
		UnresolvedBrands: unresolved,
	}
	if ranking.Best != nil {
		res.Best = *ranking.Best
	} else {
		res.Best = channels.Quote{Name: "N/A", FeePercent: "0%", ExchangeRate: ourRate}
	}
	return res, nil
}

// pool returns the catalog brands named by available, in catalog order. An
// empty list means every brand.
func (s *Service) pool(available []string) ([]channels.Params, []string) {
	all := s.catalog.Params()
	if len(available) == 0 {
		return all, nil
	}

	allowed := make(map[string]bool)
	var unresolved []string
	for _, in := range available {
		if strings.TrimSpace(in) == "" {
			continue
		}
		if brand, ok := s.brands.Resolve(in); ok {
			allowed[brand] = true
		} else {
			unresolved = append(unresolved, in)
		}
	}

	out := make([]channels.Params, 0, len(allowed))
	for _, p := range all {
		if allowed[p.Name] {
			out = append(out, p)
		}
	}
	return out, unresolved
}

// distances keys travel distances by canonical brand. Inputs are visited in
// sorted order so that two spellings of one brand resolve the same way on
// every call; the first wins.
func (s *Service) distances(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(in))
	for _, k := range keys {
		brand, ok := s.brands.Resolve(k)
		if !ok {
			continue
		}
		if _, seen := out[brand]; !seen {
			out[brand] = in[k]
		}
	}
	return out
}

func recommendation(best *channels.Quote, currency string) string {
	if best == nil {
		return "No options available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Best: %s with recipient_gets %s %s", best.Name, num(best.RecipientGets), currency)
	if best.DistanceKm != nil && best.TimeMin != nil {
		fmt.Fprintf(&b, ", distance %s km (~%s min)", num(*best.DistanceKm), num(*best.TimeMin))
	}
	b.WriteString(".")
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
