package position

import "github.com/shopspring/decimal"

// Threshold prices are rounded to this many decimal places.
const pricePlaces = 4

var one = decimal.NewFromInt(1)

// levelAbove returns price * (1 + pct) rounded to pricePlaces.
func levelAbove(price, pct float64) float64 {
	return decimal.NewFromFloat(price).
		Mul(one.Add(decimal.NewFromFloat(pct))).
		Round(pricePlaces).
		InexactFloat64()
}

// levelBelow returns price * (1 - pct) rounded to pricePlaces.
func levelBelow(price, pct float64) float64 {
	return decimal.NewFromFloat(price).
		Mul(one.Sub(decimal.NewFromFloat(pct))).
		Round(pricePlaces).
		InexactFloat64()
}

// sizeShares returns floor(notional / price).
func sizeShares(notional, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return decimal.NewFromFloat(notional).
		Div(decimal.NewFromFloat(price)).
		Floor().
		IntPart()
}

// scaleQuantity returns floor(shares * fraction).
func scaleQuantity(shares int64, fraction float64) int64 {
	return decimal.NewFromInt(shares).
		Mul(decimal.NewFromFloat(fraction)).
		Floor().
		IntPart()
}

// pnl returns absolute and percent profit of a round trip, rounded to pricePlaces.
func pnl(entry, exit float64, shares int64) (abs, pct float64) {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	abs = x.Sub(e).Mul(decimal.NewFromInt(shares)).Round(pricePlaces).InexactFloat64()
	if e.IsZero() {
		return abs, 0
	}
	pct = x.Div(e).Sub(one).Mul(decimal.NewFromInt(100)).Round(pricePlaces).InexactFloat64()
	return abs, pct
}
