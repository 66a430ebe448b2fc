package catalog

// Builtin returns the catalog used when no file is configured or the file
// cannot be loaded.
func Builtin() *Catalog {
	return &Catalog{
		House: House{
			Name:     "Finance Connect (Our Service)",
			Markup:   0.015,
			FixedFee: 2.0,
		},
		CompetitorReferenceMarkup: 0.05,
		Brands: []Brand{
			{Name: "Western Union", Markup: 0.055, FixedFee: 5.99, Aliases: []string{"western union", "westernunion", "wu"}},
			{Name: "MoneyGram", Markup: 0.048, FixedFee: 4.99, Aliases: []string{"moneygram", "money gram"}},
			{Name: "Remitly", Markup: 0.035, FixedFee: 2.99, Aliases: []string{"remitly"}},
			{Name: "Wise", Markup: 0.025, FixedFee: 1.50, Aliases: []string{"wise (transferwise)", "transferwise", "wise"}},
			{Name: "WorldRemit", Markup: 0.045, FixedFee: 3.99, Aliases: []string{"worldremit", "world remit"}},
			{Name: "Xoom", Markup: 0.04, FixedFee: 4.99, Aliases: []string{"xoom", "paypal xoom"}},
		},
		Ranking: Ranking{
			LossWeight:          0.45,
			DistanceWeight:      0.55,
			DistanceCapKm:       10,
			MissingDistanceNorm: 0.6,
			TravelSpeedKmh:      40,
		},
		source: SourceBuiltin,
	}
}
