package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value. Amounts are exact decimals; rounding to
// cents only happens for presentation via Round.
type Money = decimal.Decimal

const (
	// MaxSalePercent is the largest per-item sale percentage accepted at data entry.
	MaxSalePercent = 90
	// MaxCheckoutDiscount is the largest checkout-level discount percentage.
	MaxCheckoutDiscount = 50
)

var hundred = decimal.NewFromInt(100)

// Line describes a cart line used for pricing calculation.
type Line struct {
	UnitPrice   Money
	Qty         int
	SalePercent int
	BOGO        bool
}

// Totals aggregates computed cart pricing components.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Total    Money `json:"total"`
}

// EffectivePrice applies a percentage sale to a unit price. The percentage is
// expected to be clamped at the data-entry boundary.
func EffectivePrice(price Money, salePercent int) Money {
	if salePercent <= 0 {
		return price
	}
	return price.Mul(decimal.NewFromInt(int64(100 - salePercent))).Shift(-2)
}

// PayableQuantity returns the number of units charged for a line. Under BOGO
// every second unit is free and an unpaired last unit is paid.
func PayableQuantity(qty int, bogo bool) int {
	if !bogo || qty < 2 {
		return qty
	}
	return (qty + 1) / 2
}

// LineTotal computes the amount charged for a single line.
func LineTotal(line Line) Money {
	payable := PayableQuantity(line.Qty, line.BOGO)
	return EffectivePrice(line.UnitPrice, line.SalePercent).Mul(decimal.NewFromInt(int64(payable)))
}

// CartTotals calculates the subtotal, checkout discount and final total for
// the provided lines. The discount percentage is clamped by the caller.
func CartTotals(lines []Line, checkoutDiscountPct int) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(LineTotal(line))
	}
	discount := decimal.Zero
	if checkoutDiscountPct > 0 {
		discount = subtotal.Mul(decimal.NewFromInt(int64(checkoutDiscountPct))).Div(hundred)
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// ClampSalePercent bounds a sale percentage to [0, MaxSalePercent].
func ClampSalePercent(pct int) int {
	return clamp(pct, 0, MaxSalePercent)
}

// ClampCheckoutDiscount bounds a checkout discount to [0, MaxCheckoutDiscount].
func ClampCheckoutDiscount(pct int) int {
	return clamp(pct, 0, MaxCheckoutDiscount)
}

// Round rounds an amount to cents for display.
func Round(m Money) Money {
	return m.Round(2)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
