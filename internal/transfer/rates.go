package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mbd888/remitwise/internal/channels"
	"github.com/mbd888/remitwise/internal/rates"
)

// ExampleAmount is the principal used for worked examples.
const ExampleAmount = 1000.0

// Quote returns the market, house and competitor rates for a pair.
func (s *Service) Quote(ctx context.Context, from, to string) (rates.Quote, error) {
	from, to, err := pair(from, to)
	if err != nil {
		return rates.Quote{}, err
	}
	r := s.rates.Resolve(ctx, from, to)
	return rates.NewQuote(from, to, r, s.catalog.House.Markup, s.catalog.CompetitorReferenceMarkup), nil
}

// LiveRate is one target in a LiveRates table.
type LiveRate struct {
	Name       string       `json:"name"`
	MarketRate float64      `json:"marketRate"`
	OurRate    float64      `json:"ourRate"`
	Source     rates.Source `json:"rateSource"`
}

// LiveRates is every supported target priced from one base currency.
type LiveRates struct {
	Base        string              `json:"baseCurrency"`
	BaseName    string              `json:"baseCurrencyName"`
	Rates       map[string]LiveRate `json:"rates"`
	LastUpdated time.Time           `json:"lastUpdated"`
}

// LiveRates prices base against every other supported currency. Lookups run
// concurrently; each one falls back independently.
func (s *Service) LiveRates(ctx context.Context, base string) (*LiveRates, error) {
	base, _, err := pair(base, base)
	if err != nil {
		return nil, err
	}

	out := &LiveRates{Base: base, Rates: make(map[string]LiveRate), LastUpdated: s.now().UTC()}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range rates.Currencies() {
		if c.Code == base {
			out.BaseName = c.Name
			continue
		}
		g.Go(func() error {
			q := rates.NewQuote(base, c.Code, s.rates.Resolve(gctx, base, c.Code), s.catalog.House.Markup, s.catalog.CompetitorReferenceMarkup)
			mu.Lock()
			out.Rates[c.Code] = LiveRate{Name: c.Name, MarketRate: q.MarketRate, OurRate: q.HouseRate, Source: q.Source}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Example is a worked transfer for a fixed principal.
type Example struct {
	Send          float64 `json:"send"`
	Fee           float64 `json:"fee"`
	RecipientGets float64 `json:"recipientGets"`
	Currency      string  `json:"currency"`
}

// PopularCorridor is a featured route with the house rate and an example.
type PopularCorridor struct {
	Route        string       `json:"route"`
	Description  string       `json:"description"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	ExchangeRate float64      `json:"exchangeRate"`
	RateSource   rates.Source `json:"rateSource"`
	Example      Example      `json:"example"`
}

// Popular prices the featured corridors through the house channel, in
// display order.
func (s *Service) Popular(ctx context.Context) []PopularCorridor {
	routes := rates.PopularCorridors()
	out := make([]PopularCorridor, len(routes))
	house := s.catalog.HouseParams()

	g, gctx := errgroup.WithContext(ctx)
	for i, rc := range routes {
		g.Go(func() error {
			r := s.rates.Resolve(gctx, rc.From, rc.To)
			q := s.engine.Quote(ExampleAmount, r.Rate, house,
				channels.QuoteContext{SourceCurrency: rc.From, TargetCurrency: rc.To})
			out[i] = PopularCorridor{
				Route:        rc.From + " → " + rc.To,
				Description:  rc.Description,
				From:         rc.From,
				To:           rc.To,
				ExchangeRate: q.ExchangeRate,
				RateSource:   r.Source,
				Example:      Example{Send: ExampleAmount, Fee: q.Fee, RecipientGets: q.RecipientGets, Currency: rc.To},
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Savings compares the house channel with the best competitor.
type Savings struct {
	Amount       float64 `json:"amount"`
	Percent      string  `json:"percent"`
	VsCompetitor string  `json:"vsCompetitor"`
}

// Comparison quotes the house channel against every catalog brand.
type Comparison struct {
	Amount         float64          `json:"amount"`
	SourceCurrency string           `json:"fromCurrency"`
	TargetCurrency string           `json:"toCurrency"`
	MarketRate     float64          `json:"marketRate"`
	RateSource     rates.Source     `json:"rateSource"`
	OurService     channels.Quote   `json:"ourService"`
	Competitors    []channels.Quote `json:"competitors"`
	Savings        *Savings         `json:"savings,omitempty"`
}

// Compare quotes amount through the house channel and every brand.
// Competitors are ordered by payout, best first.
func (s *Service) Compare(ctx context.Context, from, to string, amount float64) (*Comparison, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	from, to, err := pair(from, to)
	if err != nil {
		return nil, err
	}

	r := s.rates.Resolve(ctx, from, to)
	qc := channels.QuoteContext{SourceCurrency: from, TargetCurrency: to}

	house := s.engine.Quote(amount, r.Rate, s.catalog.HouseParams(), qc)
	params := s.catalog.Params()
	comps := make([]channels.Quote, 0, len(params))
	for _, p := range params {
		comps = append(comps, s.engine.Quote(amount, r.Rate, p, qc))
	}
	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].RecipientGets > comps[j].RecipientGets
	})

	cmp := &Comparison{
		Amount:         amount,
		SourceCurrency: from,
		TargetCurrency: to,
		MarketRate:     r.Rate,
		RateSource:     r.Source,
		OurService:     house,
		Competitors:    comps,
	}
	if len(comps) > 0 {
		cmp.Savings = savingsOver(house, comps[0])
	}
	return cmp, nil
}

func savingsOver(house, best channels.Quote) *Savings {
	diff := decimal.NewFromFloat(house.RecipientGets).Sub(decimal.NewFromFloat(best.RecipientGets))
	pct := "0.0%"
	if best.RecipientGets > 0 {
		pct = diff.Div(decimal.NewFromFloat(best.RecipientGets)).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
	}
	return &Savings{
		Amount:       diff.Round(2).InexactFloat64(),
		Percent:      pct,
		VsCompetitor: best.Name,
	}
}

// TransferQuote prices a transfer through the house channel.
type TransferQuote struct {
	Amount            float64     `json:"amount"`
	Fees              float64     `json:"fees"`
	RecipientReceives float64     `json:"recipientReceives"`
	ExchangeRate      float64     `json:"exchangeRate"`
	RateInfo          rates.Quote `json:"rateInfo"`
}

// QuoteTransfer prices amount through the house channel without scoring or
// saving anything.
func (s *Service) QuoteTransfer(ctx context.Context, from, to string, amount float64) (*TransferQuote, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	from, to, err := pair(from, to)
	if err != nil {
		return nil, err
	}
	r := s.rates.Resolve(ctx, from, to)
	q := s.engine.Quote(amount, r.Rate, s.catalog.HouseParams(),
		channels.QuoteContext{SourceCurrency: from, TargetCurrency: to})
	return &TransferQuote{
		Amount:            amount,
		Fees:              q.Fee,
		RecipientReceives: q.RecipientGets,
		ExchangeRate:      q.ExchangeRate,
		RateInfo:          rates.NewQuote(from, to, r, s.catalog.House.Markup, s.catalog.CompetitorReferenceMarkup),
	}, nil
}
