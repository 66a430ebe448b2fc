package fraud

import (
	"math"
	"strings"
	"time"

	"github.com/mbd888/remitwise/internal/history"
)

// Scorer evaluates transfer attempts. It holds only immutable tuning and
// is safe for concurrent use.
type Scorer struct {
	weights          map[Flag]int
	reviewThreshold  int
	blockThreshold   int
	highAmount       float64
	amountMultiplier float64
	velocityCount    int
	nightStart       int
	nightEnd         int
	risky            map[Corridor]struct{}
	now              func() time.Time
}

// NewScorer creates a scorer from cfg. Missing weights fall back to the
// stock values; zero thresholds fall back to the defaults. A nil
// RiskyCorridors uses DefaultRiskyCorridors; an empty non-nil slice marks
// no corridor as risky.
func NewScorer(cfg Config) *Scorer {
	corridors := cfg.RiskyCorridors
	if corridors == nil {
		corridors = DefaultRiskyCorridors()
	}

	weights := DefaultWeights()
	for f, w := range cfg.Weights {
		weights[f] = w
	}

	s := &Scorer{
		weights:          weights,
		reviewThreshold:  orInt(cfg.ReviewThreshold, DefaultReviewThreshold),
		blockThreshold:   orInt(cfg.BlockThreshold, DefaultBlockThreshold),
		highAmount:       orFloat(cfg.HighAmount, DefaultHighAmount),
		amountMultiplier: orFloat(cfg.AmountMultiplier, DefaultAmountMultiplier),
		velocityCount:    orInt(cfg.VelocityCount, DefaultVelocityCount),
		nightStart:       cfg.NightStartHour,
		nightEnd:         cfg.NightEndHour,
		risky:            make(map[Corridor]struct{}, len(corridors)),
		now:              time.Now,
	}
	if s.nightStart == 0 && s.nightEnd == 0 {
		s.nightStart, s.nightEnd = DefaultNightStartHour, DefaultNightEndHour
	}
	for _, c := range corridors {
		s.risky[Corridor{strings.ToUpper(c.Source), strings.ToUpper(c.Target)}] = struct{}{}
	}
	return s
}

// WithBlockThreshold overrides the block threshold.
func (s *Scorer) WithBlockThreshold(t int) *Scorer {
	s.blockThreshold = t
	return s
}

// WithReviewThreshold overrides the review threshold.
func (s *Scorer) WithReviewThreshold(t int) *Scorer {
	s.reviewThreshold = t
	return s
}

// WithClock replaces the clock used by Assess.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Assess scores an attempt against the sender's history as of now.
// A nil history is treated as empty.
func (s *Scorer) Assess(a Attempt, hist []history.Record) Assessment {
	return s.AssessAt(a, hist, s.now())
}

// AssessAt scores an attempt as of the given instant.
func (s *Scorer) AssessAt(a Attempt, hist []history.Record, now time.Time) Assessment {
	sum := history.Summarize(hist, now)

	score := 0
	flags := make([]Flag, 0, len(Flags))
	hit := func(f Flag) {
		score += s.weights[f]
		flags = append(flags, f)
	}

	// avg_7d == 0 means no history: only the absolute limit applies.
	if a.Amount >= s.highAmount || (sum.Avg7d > 0 && a.Amount > sum.Avg7d*s.amountMultiplier) {
		hit(FlagHighAmount)
	}
	if sum.Count24h >= s.velocityCount {
		hit(FlagHighVelocity)
	}
	if a.NewRecipient {
		hit(FlagNewRecipient)
	}
	if a.IPCountryMismatch {
		hit(FlagIPCountryMismatch)
	}
	if a.DeviceChanged {
		hit(FlagNewDevice)
	}
	if s.isNight(a.LocalHour) {
		hit(FlagNighttime)
	}
	if s.isRiskyCorridor(a.SourceCurrency, a.TargetCurrency) {
		hit(FlagRiskyCorridor)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Assessment{
		Score:    score,
		Decision: s.Decide(score),
		Flags:    flags,
		History: history.Summary{
			Count24h: sum.Count24h,
			Avg7d:    math.Round(sum.Avg7d*100) / 100,
		},
	}
}

// Decide maps a score onto a decision using the configured thresholds.
func (s *Scorer) Decide(score int) Decision {
	switch {
	case score >= s.blockThreshold:
		return DecisionBlock
	case score >= s.reviewThreshold:
		return DecisionReview
	default:
		return DecisionAllow
	}
}

// isNight handles windows that wrap midnight (23 → 6) and ones that do not.
func (s *Scorer) isNight(hour int) bool {
	if s.nightStart > s.nightEnd {
		return hour >= s.nightStart || hour < s.nightEnd
	}
	return hour >= s.nightStart && hour < s.nightEnd
}

func (s *Scorer) isRiskyCorridor(source, target string) bool {
	_, ok := s.risky[Corridor{strings.ToUpper(source), strings.ToUpper(target)}]
	return ok
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
