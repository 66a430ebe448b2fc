// Package catalog loads the channel catalog: the brands the service can
// quote, their base pricing and aliases, corridor overrides, the ranking
// policy, and the operator's own house channel.
//
// The catalog is read once at startup from a YAML file. When the file is
// missing or invalid the built-in set is used and the service runs degraded.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mbd888/remitwise/internal/channels"
)

// Source reports where a catalog came from.
type Source string

const (
	SourceFile    Source = "file"
	SourceBuiltin Source = "builtin"
)

// Brand is a quotable channel.
type Brand struct {
	Name     string   `yaml:"name" validate:"required"`
	Markup   float64  `yaml:"markup" validate:"gte=0,lt=1"`
	FixedFee float64  `yaml:"fixed_fee" validate:"gte=0"`
	Aliases  []string `yaml:"aliases"`
}

// House is the operator's own channel.
type House struct {
	Name     string  `yaml:"name" default:"Finance Connect (Our Service)" validate:"required"`
	Markup   float64 `yaml:"markup" default:"0.015" validate:"gte=0,lt=1"`
	FixedFee float64 `yaml:"fixed_fee" default:"2" validate:"gte=0"`
}

// Override mirrors channels.OverrideRule in file form.
type Override struct {
	Brand          string   `yaml:"brand"`
	SourceCurrency string   `yaml:"source_currency" validate:"omitempty,len=3"`
	TargetCurrency string   `yaml:"target_currency" validate:"omitempty,len=3"`
	AmountMin      *float64 `yaml:"amount_min" validate:"omitempty,gte=0"`
	AmountMax      *float64 `yaml:"amount_max" validate:"omitempty,gte=0"`
	Markup         *float64 `yaml:"markup" validate:"omitempty,gte=0,lt=1"`
	FixedFee       *float64 `yaml:"fixed_fee" validate:"omitempty,gte=0"`
}

// Ranking is the payout/proximity policy in file form.
type Ranking struct {
	LossWeight          float64 `yaml:"loss_weight" default:"0.45" validate:"gte=0"`
	DistanceWeight      float64 `yaml:"distance_weight" default:"0.55" validate:"gte=0"`
	DistanceCapKm       float64 `yaml:"distance_cap_km" default:"10" validate:"gt=0"`
	MissingDistanceNorm float64 `yaml:"missing_distance_norm" default:"0.6" validate:"gt=0,lte=1"`
	TravelSpeedKmh      float64 `yaml:"travel_speed_kmh" default:"40" validate:"gt=0"`
}

// Catalog is the parsed channel configuration.
type Catalog struct {
	House                     House      `yaml:"house"`
	CompetitorReferenceMarkup float64    `yaml:"competitor_reference_markup" default:"0.05" validate:"gte=0,lt=1"`
	Brands                    []Brand    `yaml:"brands" validate:"required,min=1,dive"`
	Overrides                 []Override `yaml:"overrides" validate:"dive"`
	Ranking                   Ranking    `yaml:"ranking"`

	source Source
}

var validate = validator.New()

// Parse decodes and validates a YAML catalog. Unset scalar fields take their
// defaults before the document is applied.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply catalog defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	c.source = SourceFile
	return c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// LoadOrDefault loads path, falling back to the built-in catalog when path
// is empty, unreadable or invalid. The fallback is logged as degraded.
func LoadOrDefault(path string, logger *slog.Logger) *Catalog {
	if path == "" {
		logger.Info("no channel catalog configured, using built-in brands")
		return Builtin()
	}
	c, err := Load(path)
	if err != nil {
		logger.Warn("channel catalog unavailable, running with built-in brands",
			"path", path, "error", err)
		return Builtin()
	}
	logger.Info("channel catalog loaded", "path", path, "brands", len(c.Brands))
	return c
}

// Validate checks field constraints and brand name uniqueness.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Brands))
	for _, b := range c.Brands {
		key := strings.ToLower(strings.TrimSpace(b.Name))
		if seen[key] {
			return fmt.Errorf("duplicate brand %q", b.Name)
		}
		seen[key] = true
	}
	for i, o := range c.Overrides {
		if o.AmountMin != nil && o.AmountMax != nil && *o.AmountMin > *o.AmountMax {
			return fmt.Errorf("override %d: amount_min exceeds amount_max", i)
		}
		if o.Markup == nil && o.FixedFee == nil {
			return fmt.Errorf("override %d: %w", i, ErrEmptyOverride)
		}
	}
	return nil
}

// ErrEmptyOverride is returned for an override rule that changes nothing.
var ErrEmptyOverride = errors.New("override sets neither markup nor fixed_fee")

// Source reports whether the catalog came from a file or the built-in set.
func (c *Catalog) Source() Source {
	return c.source
}

// HouseParams returns the operator's channel pricing.
func (c *Catalog) HouseParams() channels.Params {
	return channels.Params{Name: c.House.Name, Markup: c.House.Markup, FixedFee: c.House.FixedFee}
}

// Params returns every brand's base pricing, in catalog order.
func (c *Catalog) Params() []channels.Params {
	out := make([]channels.Params, len(c.Brands))
	for i, b := range c.Brands {
		out[i] = channels.Params{Name: b.Name, Markup: b.Markup, FixedFee: b.FixedFee}
	}
	return out
}

// Lookup returns a brand's pricing by exact canonical name.
func (c *Catalog) Lookup(name string) (channels.Params, bool) {
	for _, b := range c.Brands {
		if b.Name == name {
			return channels.Params{Name: b.Name, Markup: b.Markup, FixedFee: b.FixedFee}, true
		}
	}
	return channels.Params{}, false
}

// OverrideRules converts the file overrides into engine rules.
func (c *Catalog) OverrideRules() []channels.OverrideRule {
	out := make([]channels.OverrideRule, len(c.Overrides))
	for i, o := range c.Overrides {
		out[i] = channels.OverrideRule{
			Brand:          o.Brand,
			SourceCurrency: o.SourceCurrency,
			TargetCurrency: o.TargetCurrency,
			AmountMin:      o.AmountMin,
			AmountMax:      o.AmountMax,
			Markup:         o.Markup,
			FixedFee:       o.FixedFee,
		}
	}
	return out
}

// Policy returns the ranking policy.
func (c *Catalog) Policy() channels.Policy {
	return channels.Policy{
		LossWeight:          c.Ranking.LossWeight,
		DistanceWeight:      c.Ranking.DistanceWeight,
		DistanceCapKm:       c.Ranking.DistanceCapKm,
		MissingDistanceNorm: c.Ranking.MissingDistanceNorm,
		TravelSpeedKmh:      c.Ranking.TravelSpeedKmh,
	}
}

// Aliases flattens per-brand aliases into the resolver's alias table. Brand
// order and then alias order are preserved.
func (c *Catalog) Aliases() []channels.Alias {
	var out []channels.Alias
	for _, b := range c.Brands {
		for _, a := range b.Aliases {
			out = append(out, channels.Alias{Alias: a, Brand: b.Name})
		}
	}
	return out
}

// Resolver builds a brand resolver over the catalog.
func (c *Catalog) Resolver() *channels.Resolver {
	names := make([]string, len(c.Brands))
	for i, b := range c.Brands {
		names[i] = b.Name
	}
	return channels.NewResolver(names, c.Aliases())
}

// Engine builds a ranking engine with the catalog's policy and overrides.
func (c *Catalog) Engine() *channels.Engine {
	return channels.NewEngine(c.Policy()).WithOverrides(c.OverrideRules())
}
