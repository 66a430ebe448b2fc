package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestPrice_Formula(t *testing.T) {
	q := Price(1000, 56.5, Params{Name: "Western Union", Markup: 0.055, FixedFee: 5.99}, nil,
		QuoteContext{SourceCurrency: "USD", TargetCurrency: "PHP"})

	assert.Equal(t, "Western Union", q.Name)
	assert.Equal(t, 60.99, q.Fee)
	assert.Equal(t, "6.10%", q.FeePercent)
	assert.Equal(t, 53.3925, q.ExchangeRate)
	assert.Equal(t, 50136.09, q.RecipientGets)
	assert.Nil(t, q.DistanceKm)
	assert.Nil(t, q.TimeMin)
}

func TestPrice_HouseChannel(t *testing.T) {
	house := Params{Name: "house", Markup: 0.015, FixedFee: 2}

	q := Price(1000, 56.5, house, nil, QuoteContext{})
	assert.Equal(t, 17.0, q.Fee)
	assert.Equal(t, "1.70%", q.FeePercent)
	assert.Equal(t, 55.6525, q.ExchangeRate)
	assert.Equal(t, 54706.41, q.RecipientGets)

	q = Price(100, 56.5, house, nil, QuoteContext{})
	assert.Equal(t, 3.5, q.Fee)
	assert.Equal(t, 5370.47, q.RecipientGets)
	assert.Equal(t, 3.5, HouseFee(100, house))
}

func TestPrice_ZeroAmountDoesNotPanic(t *testing.T) {
	q := Price(0, 1, Params{Name: "x", Markup: 0.01, FixedFee: 1}, nil, QuoteContext{})
	assert.Equal(t, "0.00%", q.FeePercent)
	assert.Equal(t, 1.0, q.Fee)
}

func TestPrice_MonotoneInMarkupAndFee(t *testing.T) {
	prev := Price(500, 17.25, Params{Markup: 0}, nil, QuoteContext{}).RecipientGets
	for _, m := range []float64{0.01, 0.02, 0.035, 0.05, 0.1} {
		got := Price(500, 17.25, Params{Markup: m}, nil, QuoteContext{}).RecipientGets
		assert.LessOrEqual(t, got, prev, "markup %v", m)
		prev = got
	}

	prev = Price(500, 17.25, Params{Markup: 0.02}, nil, QuoteContext{}).RecipientGets
	for _, f := range []float64{0.5, 1, 2.99, 5.99, 20} {
		got := Price(500, 17.25, Params{Markup: 0.02, FixedFee: f}, nil, QuoteContext{}).RecipientGets
		assert.LessOrEqual(t, got, prev, "fee %v", f)
		prev = got
	}
}

func TestResolveParams_AmountBandOverride(t *testing.T) {
	wise := Params{Name: "Wise", Markup: 0.025, FixedFee: 1.5}
	rules := []OverrideRule{{Brand: "wise", AmountMin: ptr(1000), FixedFee: ptr(0)}}

	got := ResolveParams(wise, rules, QuoteContext{Amount: 1000})
	assert.Equal(t, 0.0, got.FixedFee)
	assert.Equal(t, 0.025, got.Markup)

	got = ResolveParams(wise, rules, QuoteContext{Amount: 999.99})
	assert.Equal(t, 1.5, got.FixedFee)

	q := Price(1000, 1, wise, rules, QuoteContext{})
	assert.Equal(t, 25.0, q.Fee)
	assert.Equal(t, 950.63, q.RecipientGets)
}

func TestResolveParams_LaterRulesWin(t *testing.T) {
	base := Params{Name: "Remitly", Markup: 0.035, FixedFee: 2.99}
	rules := []OverrideRule{
		{Brand: "Remitly", Markup: ptr(0.03), FixedFee: ptr(1.99)},
		{TargetCurrency: "php", Markup: ptr(0.02)},
		{Brand: "Wise", Markup: ptr(0.5)},
		{SourceCurrency: "EUR", FixedFee: ptr(9)},
	}

	got := ResolveParams(base, rules, QuoteContext{SourceCurrency: "USD", TargetCurrency: "PHP", Amount: 10})
	assert.Equal(t, 0.02, got.Markup)
	assert.Equal(t, 1.99, got.FixedFee)
	assert.Equal(t, "Remitly", got.Name)
}

func TestResolveParams_AmountMaxInclusive(t *testing.T) {
	rules := []OverrideRule{{AmountMin: ptr(100), AmountMax: ptr(200), FixedFee: ptr(0)}}
	base := Params{Name: "MoneyGram", FixedFee: 4.99}

	assert.Equal(t, 0.0, ResolveParams(base, rules, QuoteContext{Amount: 100}).FixedFee)
	assert.Equal(t, 0.0, ResolveParams(base, rules, QuoteContext{Amount: 200}).FixedFee)
	assert.Equal(t, 4.99, ResolveParams(base, rules, QuoteContext{Amount: 200.01}).FixedFee)
}

func TestRank_PayoutOnly(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := e.Rank(RankRequest{
		Amount:     200,
		MarketRate: 1,
		Candidates: []Candidate{
			{Params: Params{Name: "A", FixedFee: 100}},
			{Params: Params{Name: "B", FixedFee: 80}},
		},
	})

	require.NotNil(t, r.Best)
	assert.Equal(t, StrategyPayout, r.Strategy)
	assert.Equal(t, "B", r.Best.Name)
	assert.Equal(t, 120.0, r.Best.RecipientGets)
	require.Len(t, r.Quotes, 2)
	assert.Equal(t, "B", r.Quotes[0].Name)
	assert.Equal(t, "A", r.Quotes[1].Name)
	assert.Nil(t, r.Best.Score)
}

func TestRank_ProximityBeatsSmallPayoutGap(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := e.Rank(RankRequest{
		Amount:     200,
		MarketRate: 1,
		Candidates: []Candidate{
			{Params: Params{Name: "A", FixedFee: 100}, DistanceKm: ptr(1)},
			{Params: Params{Name: "B", FixedFee: 99}, DistanceKm: ptr(9)},
		},
	})

	require.NotNil(t, r.Best)
	assert.Equal(t, StrategyPayoutProximity, r.Strategy)
	assert.Equal(t, "A", r.Best.Name)
	require.NotNil(t, r.Best.Score)
	assert.InDelta(t, 0.45*(1.0/101)+0.55*0.1, *r.Best.Score, 1e-9)
	require.NotNil(t, r.Best.TimeMin)
	assert.Equal(t, 1.5, *r.Best.TimeMin)
}

func TestRank_MissingDistanceScoredAsMedium(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := e.Rank(RankRequest{
		Amount:     200,
		MarketRate: 1,
		Candidates: []Candidate{
			{Params: Params{Name: "far", FixedFee: 100}, DistanceKm: ptr(25)},
			{Params: Params{Name: "unknown", FixedFee: 100}},
		},
	})

	require.NotNil(t, r.Best)
	assert.Equal(t, "unknown", r.Best.Name)
	assert.InDelta(t, 0.55*0.6, *r.Best.Score, 1e-9)
	assert.Nil(t, r.Best.DistanceKm)
	assert.InDelta(t, 0.55, *r.Quotes[1].Score, 1e-9)
}

func TestRank_DistanceRoundedAndTravelTime(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := e.Rank(RankRequest{
		Amount:     100,
		MarketRate: 1,
		Candidates: []Candidate{{Params: Params{Name: "A"}, DistanceKm: ptr(3.14159)}},
	})

	require.NotNil(t, r.Best)
	assert.Equal(t, 3.14, *r.Best.DistanceKm)
	assert.Equal(t, 4.7, *r.Best.TimeMin)
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := e.Rank(RankRequest{
		Amount:     100,
		MarketRate: 2,
		Candidates: []Candidate{
			{Params: Params{Name: "first", FixedFee: 1}},
			{Params: Params{Name: "second", FixedFee: 1}},
		},
	})
	assert.Equal(t, "first", r.Best.Name)

	r = e.Rank(RankRequest{
		Amount:     100,
		MarketRate: 2,
		Candidates: []Candidate{
			{Params: Params{Name: "first", FixedFee: 1}, DistanceKm: ptr(2)},
			{Params: Params{Name: "second", FixedFee: 1}, DistanceKm: ptr(2)},
		},
	})
	assert.Equal(t, "first", r.Best.Name)
}

func TestRank_Empty(t *testing.T) {
	r := NewEngine(DefaultPolicy()).Rank(RankRequest{Amount: 100, MarketRate: 1})
	assert.Nil(t, r.Best)
	assert.Empty(t, r.Quotes)
}

func TestRank_AppliesEngineOverrides(t *testing.T) {
	e := NewEngine(DefaultPolicy()).WithOverrides([]OverrideRule{
		{Brand: "Wise", TargetCurrency: "INR", FixedFee: ptr(0)},
	})
	r := e.Rank(RankRequest{
		Amount:         100,
		MarketRate:     1,
		SourceCurrency: "USD",
		TargetCurrency: "INR",
		Candidates: []Candidate{
			{Params: Params{Name: "Wise", FixedFee: 1.5}},
			{Params: Params{Name: "Remitly", FixedFee: 1}},
		},
	})
	assert.Equal(t, "Wise", r.Best.Name)
	assert.Equal(t, 0.0, r.Best.Fee)
}

func TestNewEngine_PolicyDefaults(t *testing.T) {
	e := NewEngine(Policy{})
	assert.Equal(t, DefaultPolicy(), e.Policy())

	custom := Policy{LossWeight: 1, DistanceWeight: 0, DistanceCapKm: 5, MissingDistanceNorm: 1, TravelSpeedKmh: 30}
	assert.Equal(t, custom, NewEngine(custom).Policy())
}

func TestResolver(t *testing.T) {
	r := NewResolver(
		[]string{"Western Union", "MoneyGram", "Wise"},
		[]Alias{
			{Alias: "WU", Brand: "Western Union"},
			{Alias: "transferwise", Brand: "Wise"},
			{Alias: "western union", Brand: "Western Union"},
			{Alias: "moneygram", Brand: "MoneyGram"},
		},
	)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Western Union", "Western Union", true},
		{"  wise ", "Wise", true},
		{"wu", "Western Union", true},
		{"TransferWise", "Wise", true},
		{"Western Union @ Walgreens 5th Ave", "Western Union", true},
		{"CVS MoneyGram counter", "MoneyGram", true},
		{"Ria", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolver_SubstringFollowsAliasOrder(t *testing.T) {
	r := NewResolver(nil, []Alias{
		{Alias: "union", Brand: "Western Union"},
		{Alias: "gram", Brand: "MoneyGram"},
	})
	got, ok := r.Resolve("gram union kiosk")
	require.True(t, ok)
	assert.Equal(t, "Western Union", got)
}

func TestResolver_ResolveAll(t *testing.T) {
	r := NewResolver([]string{"Wise", "Remitly"}, []Alias{{Alias: "transferwise", Brand: "Wise"}})
	got := r.ResolveAll([]string{"transferwise", "Nope", "REMITLY", "wise"})
	assert.Equal(t, []string{"Wise", "Remitly"}, got)
}
