// Package rates resolves market exchange rates for the pricing core.
//
// A Provider fetches live rates. The Resolver wraps a Provider so that
// callers always get a number: on failure it falls back to the last rate
// seen for the pair, then to a static table, then to 1.0. The source of
// each resolved rate is reported alongside it.
package rates

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRate is returned when the upstream does not quote the target currency.
	ErrNoRate = errors.New("rate not available")

	// ErrCircuitOpen is returned while the upstream is considered down.
	ErrCircuitOpen = errors.New("rate feed circuit open")
)

// Provider returns the market rate for one unit of from in to.
// Implementations return 1.0 when from and to are equal.
type Provider interface {
	MarketRate(ctx context.Context, from, to string) (float64, error)
}

// Source says where a resolved rate came from.
type Source string

const (
	SourceLive   Source = "live"
	SourceCached Source = "cached"
	SourceStatic Source = "static"
)

// Resolved is a market rate plus its provenance.
type Resolved struct {
	Rate   float64 `json:"rate"`
	Source Source  `json:"source"`
}

// Quote compares the house rate with a typical competitor's for a pair.
type Quote struct {
	From             string  `json:"fromCurrency"`
	To               string  `json:"toCurrency"`
	MarketRate       float64 `json:"marketRate"`
	HouseRate        float64 `json:"ourRate"`
	CompetitorRate   float64 `json:"competitorRate"`
	HouseMarkup      string  `json:"ourMarkup"`
	CompetitorMarkup string  `json:"competitorMarkup"`
	SavingsPercent   string  `json:"savingsPercent"`
	Source           Source  `json:"rateSource"`
}

// NewQuote derives house and competitor rates from a resolved market rate.
// Savings is how much more the recipient gets at the house rate, relative
// to the competitor rate. Rates are rounded to six places; percentages to one.
func NewQuote(from, to string, r Resolved, houseMarkup, competitorMarkup float64) Quote {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)

	market := decimal.NewFromFloat(r.Rate)
	house := market.Mul(one.Sub(decimal.NewFromFloat(houseMarkup)))
	comp := market.Mul(one.Sub(decimal.NewFromFloat(competitorMarkup)))

	savings := "0.0%"
	if comp.IsPositive() {
		savings = house.Sub(comp).Div(comp).Mul(hundred).StringFixed(1) + "%"
	}

	return Quote{
		From:             from,
		To:               to,
		MarketRate:       market.Round(6).InexactFloat64(),
		HouseRate:        house.Round(6).InexactFloat64(),
		CompetitorRate:   comp.Round(6).InexactFloat64(),
		HouseMarkup:      decimal.NewFromFloat(houseMarkup).Mul(hundred).StringFixed(1) + "%",
		CompetitorMarkup: decimal.NewFromFloat(competitorMarkup).Mul(hundred).StringFixed(1) + "%",
		SavingsPercent:   savings,
		Source:           r.Source,
	}
}

// Currency describes a supported currency.
type Currency struct {
	Code                string   `json:"code"`
	Name                string   `json:"name"`
	PopularDestinations []string `json:"popularDestinations"`
}

var currencies = []Currency{
	{"USD", "US Dollar", []string{"PH", "MX", "IN", "NG"}},
	{"EUR", "Euro", []string{"PH", "IN", "NG", "US"}},
	{"GBP", "British Pound", []string{"PH", "IN", "NG", "US"}},
	{"CAD", "Canadian Dollar", []string{"PH", "IN", "US"}},
	{"AUD", "Australian Dollar", []string{"PH", "IN", "US"}},
	{"PHP", "Philippine Peso", []string{"US", "EU", "GB"}},
	{"MXN", "Mexican Peso", []string{"US", "EU", "GB"}},
	{"INR", "Indian Rupee", []string{"US", "EU", "GB"}},
	{"NGN", "Nigerian Naira", []string{"US", "EU", "GB"}},
}

// Currencies lists the supported currencies in display order.
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

// Supported reports whether code (any case) is a supported currency.
func Supported(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Corridor is a popular sending route.
type Corridor struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

// PopularCorridors lists the routes featured on the landing page.
func PopularCorridors() []Corridor {
	return []Corridor{
		{"USD", "PHP", "US to Philippines"},
		{"USD", "MXN", "US to Mexico"},
		{"USD", "INR", "US to India"},
		{"EUR", "NGN", "Europe to Nigeria"},
		{"GBP", "INR", "UK to India"},
		{"CAD", "PHP", "Canada to Philippines"},
	}
}
