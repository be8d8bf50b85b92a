// Package livecart mirrors the cashier's cart to a customer-facing display
// through a shared key-value store. Displays poll Fetch; there is no push.
package livecart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/settings"
)

// DefaultKey is the settings key holding the snapshot.
const DefaultKey = "live_cart_data"

// ErrCorruptSnapshot is returned when the stored value is not a snapshot.
var ErrCorruptSnapshot = errors.New("livecart: stored snapshot is not valid JSON")

// SnapshotLine is one priced row on the display.
type SnapshotLine struct {
	ItemID         int64           `json:"itemId"`
	Name           string          `json:"name"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	SalePercent    int             `json:"salePercent,omitempty"`
	BOGO           bool            `json:"bogo,omitempty"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
}

// Snapshot is the published cart state.
type Snapshot struct {
	Lines           []SnapshotLine  `json:"lines"`
	DiscountPercent int             `json:"discountPercent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// SnapshotFromCart prices cart for display, rounding amounts to cents.
func SnapshotFromCart(cart checkout.Cart, now time.Time) Snapshot {
	lines := make([]SnapshotLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, SnapshotLine{
			ItemID:         l.ItemID,
			Name:           l.Name,
			Qty:            l.Qty,
			UnitPrice:      pricing.Round(l.UnitPrice),
			EffectivePrice: pricing.Round(pricing.EffectivePrice(l.UnitPrice, l.SalePercent)),
			SalePercent:    l.SalePercent,
			BOGO:           l.BOGO,
			LineTotal:      pricing.Round(l.Total()),
		})
	}
	totals := cart.Totals()
	return Snapshot{
		Lines:           lines,
		DiscountPercent: pricing.ClampCheckoutDiscount(cart.DiscountPercent),
		Subtotal:        pricing.Round(totals.Subtotal),
		Discount:        pricing.Round(totals.Discount),
		Total:           pricing.Round(totals.Total),
		UpdatedAt:       now,
	}
}

// Publisher writes and reads the live cart snapshot.
type Publisher struct {
	Store settings.Store
	Key   string
	Now   func() time.Time
}

func (p *Publisher) key() string {
	if p.Key == "" {
		return DefaultKey
	}
	return p.Key
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Publish overwrites the stored snapshot. Last write wins.
func (p *Publisher) Publish(ctx context.Context, snap Snapshot) error {
	if p == nil || p.Store == nil {
		return errors.New("livecart: store not configured")
	}
	if snap.Lines == nil {
		snap.Lines = []SnapshotLine{}
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = p.now()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("livecart: encode snapshot: %w", err)
	}
	err = p.Store.Set(ctx, p.key(), string(raw))
	recordPublish(err)
	if err != nil {
		return fmt.Errorf("livecart: publish: %w", err)
	}
	return nil
}

// PublishCart prices cart and publishes it.
func (p *Publisher) PublishCart(ctx context.Context, cart checkout.Cart) (Snapshot, error) {
	snap := SnapshotFromCart(cart, p.now())
	return snap, p.Publish(ctx, snap)
}

// Fetch returns the latest snapshot. found is false when nothing was ever
// published, which is distinct from a published cart with zero lines.
func (p *Publisher) Fetch(ctx context.Context) (snap Snapshot, found bool, err error) {
	if p == nil || p.Store == nil {
		return Snapshot{}, false, errors.New("livecart: store not configured")
	}
	raw, ok, err := p.Store.Get(ctx, p.key())
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("livecart: fetch: %w", err)
	}
	if !ok || raw == "" {
		return Snapshot{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Lines == nil {
		snap.Lines = []SnapshotLine{}
	}
	return snap, true, nil
}

// Clear publishes an empty cart.
func (p *Publisher) Clear(ctx context.Context) error {
	return p.Publish(ctx, Snapshot{
		Lines:    []SnapshotLine{},
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	})
}

func recordPublish(err error) {
	if obs.LiveCartPublishTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.LiveCartPublishTotal.WithLabelValues(result).Inc()
}
