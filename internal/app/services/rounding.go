package services

import "github.com/shopspring/decimal"

// Minutes converts seconds to minutes rounded half-even to one decimal place.
func Minutes(seconds int64) float64 {
	return ratio(seconds, 60)
}

// Hours converts seconds to hours rounded half-even to one decimal place.
func Hours(seconds int64) float64 {
	return ratio(seconds, 3600)
}

func ratio(value, unit int64) float64 {
	return decimal.NewFromInt(value).
		Div(decimal.NewFromInt(unit)).
		RoundBank(1).
		InexactFloat64()
}
