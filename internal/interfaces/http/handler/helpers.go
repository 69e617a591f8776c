package handler

import "github.com/shopspring/decimal"

// Request DTOs carry money as float64 for JSON friendliness; the domain
// works in decimals only.

func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func toDecimalPtr(f float64) *decimal.Decimal {
	d := toDecimal(f)
	return &d
}
