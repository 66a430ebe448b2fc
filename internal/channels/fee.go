package channels

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ResolveParams folds every matching override over base, in declaration
// order. Later rules win field by field.
func ResolveParams(base Params, overrides []OverrideRule, qc QuoteContext) Params {
	p := base
	for _, rule := range overrides {
		if !rule.matches(base.Name, qc) {
			continue
		}
		if rule.Markup != nil {
			p.Markup = *rule.Markup
		}
		if rule.FixedFee != nil {
			p.FixedFee = *rule.FixedFee
		}
	}
	return p
}

func (r OverrideRule) matches(brand string, qc QuoteContext) bool {
	if r.Brand != "" && !strings.EqualFold(strings.TrimSpace(r.Brand), strings.TrimSpace(brand)) {
		return false
	}
	if r.SourceCurrency != "" && !strings.EqualFold(r.SourceCurrency, qc.SourceCurrency) {
		return false
	}
	if r.TargetCurrency != "" && !strings.EqualFold(r.TargetCurrency, qc.TargetCurrency) {
		return false
	}
	if r.AmountMin != nil && qc.Amount < *r.AmountMin {
		return false
	}
	if r.AmountMax != nil && qc.Amount > *r.AmountMax {
		return false
	}
	return true
}

// Price quotes a single channel for amount at marketRate.
//
//	fee            = amount*markup + fixed_fee
//	rate           = marketRate*(1 - markup)
//	recipient_gets = (amount - fee)*rate
//
// Money is rounded to cents and rates to six places only after the whole
// computation, so the rounded outputs do not compound. Callers reject
// amount <= 0; Price still returns a zero fee percent rather than dividing
// by zero.
func Price(amount, marketRate float64, p Params, overrides []OverrideRule, qc QuoteContext) Quote {
	qc.Amount = amount
	eff := ResolveParams(p, overrides, qc)

	amt := decimal.NewFromFloat(amount)
	markup := decimal.NewFromFloat(eff.Markup)

	fee := amt.Mul(markup).Add(decimal.NewFromFloat(eff.FixedFee))
	rate := decimal.NewFromFloat(marketRate).Mul(one.Sub(markup))
	gets := amt.Sub(fee).Mul(rate)

	feePercent := "0.00%"
	if amt.IsPositive() {
		feePercent = fee.Div(amt).Mul(hundred).StringFixed(2) + "%"
	}

	return Quote{
		Name:          p.Name,
		Fee:           fee.Round(2).InexactFloat64(),
		FeePercent:    feePercent,
		ExchangeRate:  rate.Round(6).InexactFloat64(),
		RecipientGets: gets.Round(2).InexactFloat64(),
	}
}

// HouseFee is the fee the operator charges for its own channel.
func HouseFee(amount float64, house Params) float64 {
	fee := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(house.Markup)).
		Add(decimal.NewFromFloat(house.FixedFee))
	return fee.Round(2).InexactFloat64()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
