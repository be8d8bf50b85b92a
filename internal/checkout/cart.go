// Package checkout holds the cart value object and applies carts to stock as
// one receipt.
package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Line is one cart row. Price and promotions are copied from the item when the
// line is created, so later item edits do not reprice an open cart.
type Line struct {
	ItemID      int64           `json:"itemId" validate:"required,gt=0"`
	Name        string          `json:"name" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Qty         int             `json:"qty" validate:"gt=0"`
	Note        string          `json:"note,omitempty"`
	SalePercent int             `json:"salePercent" validate:"gte=0,lte=90"`
	BOGO        bool            `json:"bogo"`
}

// NewLine snapshots item into a cart line.
func NewLine(item inventory.Item, qty int, note string) Line {
	return Line{
		ItemID:      item.ID,
		Name:        item.Name,
		UnitPrice:   item.Price,
		Qty:         qty,
		Note:        strings.TrimSpace(note),
		SalePercent: pricing.ClampSalePercent(item.SalePercent),
		BOGO:        item.BOGO,
	}
}

func (l Line) pricingLine() pricing.Line {
	return pricing.Line{UnitPrice: l.UnitPrice, Qty: l.Qty, SalePercent: l.SalePercent, BOGO: l.BOGO}
}

// Total is the line amount after promotions.
func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.pricingLine())
}

// Cart is an ordered set of lines plus a checkout discount. Methods return a
// new Cart and never modify the receiver.
type Cart struct {
	Lines           []Line `json:"lines" validate:"dive"`
	DiscountPercent int    `json:"discountPercent" validate:"gte=0,lte=50"`
}

func (c Cart) clone() Cart {
	out := Cart{DiscountPercent: c.DiscountPercent}
	if len(c.Lines) > 0 {
		out.Lines = append([]Line(nil), c.Lines...)
	}
	return out
}

func (c Cart) index(itemID int64) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Add appends line, or adds its quantity to an existing line for the same
// item. The existing line keeps its original price snapshot.
func (c Cart) Add(line Line) Cart {
	if line.Qty <= 0 {
		return c
	}
	out := c.clone()
	if i := out.index(line.ItemID); i >= 0 {
		out.Lines[i].Qty += line.Qty
		if line.Note != "" {
			out.Lines[i].Note = line.Note
		}
		return out
	}
	out.Lines = append(out.Lines, line)
	return out
}

// SetQuantity changes the quantity of the item's line; zero or less removes it.
func (c Cart) SetQuantity(itemID int64, qty int) Cart {
	if qty <= 0 {
		return c.Remove(itemID)
	}
	out := c.clone()
	if i := out.index(itemID); i >= 0 {
		out.Lines[i].Qty = qty
	}
	return out
}

// Remove drops the item's line.
func (c Cart) Remove(itemID int64) Cart {
	out := Cart{DiscountPercent: c.DiscountPercent}
	for _, l := range c.Lines {
		if l.ItemID != itemID {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

// WithDiscount sets the checkout discount, clamped to [0, 50].
func (c Cart) WithDiscount(pct int) Cart {
	out := c.clone()
	out.DiscountPercent = pricing.ClampCheckoutDiscount(pct)
	return out
}

// Totals prices the cart.
func (c Cart) Totals() pricing.Totals {
	lines := make([]pricing.Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, l.pricingLine())
	}
	return pricing.CartTotals(lines, pricing.ClampCheckoutDiscount(c.DiscountPercent))
}

// Clear returns an empty cart.
func (c Cart) Clear() Cart {
	return Cart{}
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}
