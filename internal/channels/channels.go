// Package channels prices money-transfer channels and ranks them for a
// corridor.
//
// A channel is identified by its brand name and priced by two numbers: a
// percentage markup taken off the market rate (and charged on the principal)
// and a fixed fee. Override rules adjust those numbers per brand, corridor
// and amount band. The ranking engine picks the channel with the best payout,
// or, when travel distances are known, the best blend of payout and proximity.
//
// Everything in this package is pure. Nothing here performs I/O or holds
// mutable state, so an Engine may be shared freely between goroutines.
package channels

// Params is a channel's base pricing.
type Params struct {
	Name     string  `json:"name"`
	Markup   float64 `json:"markup"`
	FixedFee float64 `json:"fixedFee"`
}

// OverrideRule adjusts pricing for matching quotes. Nil or empty predicate
// fields match anything; nil adjustment fields leave the value alone.
type OverrideRule struct {
	Brand          string   `json:"brand,omitempty"`
	SourceCurrency string   `json:"sourceCurrency,omitempty"`
	TargetCurrency string   `json:"targetCurrency,omitempty"`
	AmountMin      *float64 `json:"amountMin,omitempty"`
	AmountMax      *float64 `json:"amountMax,omitempty"`
	Markup         *float64 `json:"markup,omitempty"`
	FixedFee       *float64 `json:"fixedFee,omitempty"`
}

// QuoteContext is what override predicates are evaluated against.
type QuoteContext struct {
	SourceCurrency string
	TargetCurrency string
	Amount         float64
}

// Quote is a priced channel. Distance, time and score are only set by the
// ranking engine when distances were supplied.
type Quote struct {
	Name          string   `json:"name"`
	Fee           float64  `json:"fee"`
	FeePercent    string   `json:"feePercent"`
	ExchangeRate  float64  `json:"exchangeRate"`
	RecipientGets float64  `json:"recipientGets"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	TimeMin       *float64 `json:"timeMin,omitempty"`
	Score         *float64 `json:"score,omitempty"`
}

// Strategy names how a ranking chose its best quote.
type Strategy string

const (
	// StrategyPayout ranks by recipient payout alone.
	StrategyPayout Strategy = "payout"
	// StrategyPayoutProximity ranks by weighted payout loss and distance.
	StrategyPayoutProximity Strategy = "payout_proximity"
)

// Policy tunes the payout/proximity blend.
type Policy struct {
	LossWeight          float64 `json:"lossWeight"`
	DistanceWeight      float64 `json:"distanceWeight"`
	DistanceCapKm       float64 `json:"distanceCapKm"`
	MissingDistanceNorm float64 `json:"missingDistanceNorm"`
	TravelSpeedKmh      float64 `json:"travelSpeedKmh"`
}

// DefaultPolicy returns the stock ranking policy.
func DefaultPolicy() Policy {
	return Policy{
		LossWeight:          0.45,
		DistanceWeight:      0.55,
		DistanceCapKm:       10,
		MissingDistanceNorm: 0.6,
		TravelSpeedKmh:      40,
	}
}

// Candidate is a channel offered to the ranking engine.
type Candidate struct {
	Params
	DistanceKm *float64
}

// RankRequest is the input to Engine.Rank.
type RankRequest struct {
	Amount         float64
	MarketRate     float64
	SourceCurrency string
	TargetCurrency string
	Candidates     []Candidate
}

// Ranking is the output of Engine.Rank. Quotes are ordered best first.
type Ranking struct {
	Quotes   []Quote  `json:"quotes"`
	Best     *Quote   `json:"best"`
	Strategy Strategy `json:"strategy"`
}
