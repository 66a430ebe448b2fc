// Package fraud implements transfer fraud risk scoring.
//
// Every transfer attempt is evaluated against seven additive rules: amount,
// 24h velocity, recipient novelty, IP country mismatch, device change,
// night-time activity, and risky corridor. Scores are integers in [0, 100].
// Attempts at or above the block threshold are rejected before money moves;
// attempts at or above the review threshold are held for a human.
package fraud

import (
	"context"
	"strings"
	"time"

	"github.com/mbd888/remitwise/internal/history"
	"github.com/mbd888/remitwise/internal/pagination"
)

// Decision represents the scorer's verdict on an attempt.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// Flag names a triggered rule.
type Flag string

const (
	FlagHighAmount        Flag = "high_amount"
	FlagHighVelocity      Flag = "high_velocity_24h"
	FlagNewRecipient      Flag = "new_recipient"
	FlagIPCountryMismatch Flag = "ip_country_mismatch"
	FlagNewDevice         Flag = "new_device"
	FlagNighttime         Flag = "nighttime_activity"
	FlagRiskyCorridor     Flag = "risky_corridor"
)

// Flags lists every rule in evaluation order.
var Flags = []Flag{
	FlagHighAmount,
	FlagHighVelocity,
	FlagNewRecipient,
	FlagIPCountryMismatch,
	FlagNewDevice,
	FlagNighttime,
	FlagRiskyCorridor,
}

// Default tuning.
const (
	DefaultReviewThreshold  = 40
	DefaultBlockThreshold   = 70
	DefaultHighAmount       = 1500.0
	DefaultAmountMultiplier = 2.5
	DefaultVelocityCount    = 3
	DefaultNightStartHour   = 23
	DefaultNightEndHour     = 6
)

// DefaultWeights returns the stock rule weights.
func DefaultWeights() map[Flag]int {
	return map[Flag]int{
		FlagHighAmount:        30,
		FlagHighVelocity:      25,
		FlagNewRecipient:      15,
		FlagIPCountryMismatch: 10,
		FlagNewDevice:         10,
		FlagNighttime:         10,
		FlagRiskyCorridor:     10,
	}
}

// Corridor is an ordered (source, target) currency pair.
type Corridor struct {
	Source string
	Target string
}

// String renders the corridor as "USD-NGN".
func (c Corridor) String() string {
	return c.Source + "-" + c.Target
}

// ParseCorridor parses "USD-NGN" or "USD:NGN".
func ParseCorridor(s string) (Corridor, bool) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "-:>")
	if sep <= 0 || sep == len(s)-1 {
		return Corridor{}, false
	}
	return Corridor{
		Source: strings.ToUpper(strings.TrimSpace(s[:sep])),
		Target: strings.ToUpper(strings.TrimSpace(s[sep+1:])),
	}, true
}

// DefaultRiskyCorridors returns the stock risky corridor set.
func DefaultRiskyCorridors() []Corridor {
	return []Corridor{{"USD", "NGN"}, {"USD", "INR"}}
}

// Config holds every tunable of the scorer. Operators retune through the
// environment; see internal/config.
type Config struct {
	Weights          map[Flag]int
	ReviewThreshold  int
	BlockThreshold   int
	HighAmount       float64
	AmountMultiplier float64
	VelocityCount    int
	NightStartHour   int // inclusive
	NightEndHour     int // exclusive
	RiskyCorridors   []Corridor
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Weights:          DefaultWeights(),
		ReviewThreshold:  DefaultReviewThreshold,
		BlockThreshold:   DefaultBlockThreshold,
		HighAmount:       DefaultHighAmount,
		AmountMultiplier: DefaultAmountMultiplier,
		VelocityCount:    DefaultVelocityCount,
		NightStartHour:   DefaultNightStartHour,
		NightEndHour:     DefaultNightEndHour,
		RiskyCorridors:   DefaultRiskyCorridors(),
	}
}

// Attempt carries the attributes of the transfer being scored.
type Attempt struct {
	Amount            float64 `json:"amount"`
	SourceCurrency    string  `json:"sourceCurrency"`
	TargetCurrency    string  `json:"targetCurrency"`
	NewRecipient      bool    `json:"isNewRecipient"`
	IPCountryMismatch bool    `json:"ipCountryMismatch"`
	DeviceChanged     bool    `json:"deviceChanged"`
	LocalHour         int     `json:"localHour"`
}

// Assessment is the result of scoring a single attempt.
type Assessment struct {
	Score    int             `json:"score"`
	Decision Decision        `json:"decision"`
	Flags    []Flag          `json:"flags"`
	History  history.Summary `json:"history"`
}

// HasFlag reports whether f was triggered.
func (a Assessment) HasFlag(f Flag) bool {
	for _, got := range a.Flags {
		if got == f {
			return true
		}
	}
	return false
}

// AuditRecord is a persisted assessment.
type AuditRecord struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	Amount      float64    `json:"amount"`
	Corridor    string     `json:"corridor"`
	Assessment  Assessment `json:"assessment"`
	EvaluatedAt time.Time  `json:"evaluatedAt"`
}

// Store persists assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, rec *AuditRecord) error
	// ListBySender returns up to limit records newest first, starting after
	// the cursor (nil for the first page).
	ListBySender(ctx context.Context, senderID string, limit int, after *pagination.Cursor) ([]*AuditRecord, error)
}
