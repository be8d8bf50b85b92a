package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var processorNopLogger = zerolog.Nop()

// ErrPartialBatch matches any *BatchError.
var ErrPartialBatch = errors.New("PARTIAL_BATCH")

// Adjuster applies one stock change. *inventory.Ledger implements it.
type Adjuster interface {
	AdjustStock(ctx context.Context, req inventory.AdjustRequest) (inventory.Adjustment, error)
}

// LineResult is the outcome of one batch line.
type LineResult struct {
	ItemID      int64  `json:"itemId"`
	ItemName    string `json:"itemName"`
	Qty         int    `json:"qty"`
	OK          bool   `json:"ok"`
	NewQuantity int    `json:"newQuantity,omitempty"`
	Warning     string `json:"warning,omitempty"`
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}

// Receipt groups the lines applied under one receipt identifier.
type Receipt struct {
	ID            string                  `json:"receiptId"`
	Type          inventory.TxType        `json:"type"`
	PaymentMethod inventory.PaymentMethod `json:"paymentMethod"`
	Lines         []LineResult            `json:"lines"`
}

// Applied returns the lines whose stock change was committed.
func (r Receipt) Applied() []LineResult {
	out := make([]LineResult, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.OK {
			out = append(out, l)
		}
	}
	return out
}

// Warnings lists history-log warnings of committed lines.
func (r Receipt) Warnings() []string {
	var out []string
	for _, l := range r.Lines {
		if l.Warning != "" {
			out = append(out, l.ItemName+": "+l.Warning)
		}
	}
	return out
}

// LineFailure names a line that was not applied.
type LineFailure struct {
	ItemID   int64  `json:"itemId"`
	ItemName string `json:"itemName"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// BatchError reports a batch where at least one line failed. Lines that
// succeeded stay applied under ReceiptID.
type BatchError struct {
	ReceiptID string
	Failures  []LineFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("Failed %s: %s", f.ItemName, f.Reason))
	}
	return "Some items failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every line error.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}

// Is matches ErrPartialBatch.
func (e *BatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

// Processor applies carts to stock line by line.
type Processor struct {
	Ledger       Adjuster
	Logger       *zerolog.Logger
	NewReceiptID func() string
}

func (p *Processor) logger() *zerolog.Logger {
	if p.Logger == nil {
		return &processorNopLogger
	}
	return p.Logger
}

func (p *Processor) receiptID() string {
	if p.NewReceiptID != nil {
		return p.NewReceiptID()
	}
	return uuid.NewString()
}

// ProcessBatch applies every line in order under one fresh receipt id. SALE
// lines remove stock and RESTOCK lines add it. A failing line is recorded and
// the batch moves on; nothing already applied is rolled back. When any line
// failed the Receipt is returned together with a *BatchError.
func (p *Processor) ProcessBatch(ctx context.Context, lines []Line, txType inventory.TxType, payment inventory.PaymentMethod) (Receipt, error) {
	if p == nil || p.Ledger == nil {
		return Receipt{}, errors.New("checkout processor not configured")
	}
	if txType != inventory.TxSale && txType != inventory.TxRestock {
		return Receipt{}, &inventory.Error{Kind: inventory.KindInvalidInput, Message: fmt.Sprintf("batch type must be SALE or RESTOCK, got %q", txType)}
	}
	if len(lines) == 0 {
		return Receipt{}, &inventory.Error{Kind: inventory.KindInvalidInput, Message: "cart is empty"}
	}
	if payment == "" {
		payment = inventory.PaymentCash
	}

	receipt := Receipt{ID: p.receiptID(), Type: txType, PaymentMethod: payment, Lines: make([]LineResult, 0, len(lines))}
	ctx, span := otel.Tracer("checkout.processor").Start(ctx, "checkout.process_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("receipt.id", receipt.ID),
		attribute.String("batch.type", string(txType)),
		attribute.Int("batch.lines", len(lines)),
	)

	var failures []LineFailure
	for _, line := range lines {
		res := LineResult{ItemID: line.ItemID, ItemName: line.Name, Qty: line.Qty}
		adj, err := p.applyLine(ctx, receipt, line)
		if err != nil {
			res.Err = err
			res.Error = inventory.Reason(err)
			failures = append(failures, LineFailure{ItemID: line.ItemID, ItemName: line.Name, Reason: res.Error, Err: err})
			p.logger().Warn().Err(err).Str("receipt_id", receipt.ID).Int64("item_id", line.ItemID).Msg("batch_line_failed")
		} else {
			res.OK = true
			res.NewQuantity = adj.NewQuantity
			res.Warning = adj.Warning
		}
		receipt.Lines = append(receipt.Lines, res)
	}

	result := "ok"
	switch {
	case len(failures) == len(lines):
		result = "failed"
	case len(failures) > 0:
		result = "partial"
	}
	if obs.BatchCheckoutsTotal != nil {
		obs.BatchCheckoutsTotal.WithLabelValues(string(txType), result).Inc()
	}
	span.SetAttributes(attribute.String("batch.result", result))
	p.logger().Info().
		Str("receipt_id", receipt.ID).
		Str("type", string(txType)).
		Int("lines", len(lines)).
		Int("failed", len(failures)).
		Msg("batch_processed")

	if len(failures) > 0 {
		return receipt, &BatchError{ReceiptID: receipt.ID, Failures: failures}
	}
	return receipt, nil
}

func (p *Processor) applyLine(ctx context.Context, receipt Receipt, line Line) (inventory.Adjustment, error) {
	if line.Qty <= 0 {
		return inventory.Adjustment{}, &inventory.Error{Kind: inventory.KindInvalidInput, Message: fmt.Sprintf("quantity for %s must be positive", line.Name)}
	}
	delta := line.Qty
	if receipt.Type == inventory.TxSale {
		delta = -line.Qty
	}
	receiptID := receipt.ID
	start := time.Now()
	adj, err := p.Ledger.AdjustStock(ctx, inventory.AdjustRequest{
		ItemID:        line.ItemID,
		Delta:         delta,
		Type:          receipt.Type,
		Note:          line.Note,
		ReceiptID:     &receiptID,
		PaymentMethod: receipt.PaymentMethod,
	})
	if obs.BatchLineLatency != nil {
		obs.BatchLineLatency.WithLabelValues(string(receipt.Type)).Observe(obs.DurationMillis(time.Since(start)))
	}
	return adj, err
}

// CheckoutResult is a completed sale. Totals price the cart as submitted;
// Charged prices only the lines that were sold.
type CheckoutResult struct {
	Receipt Receipt        `json:"receipt"`
	Totals  pricing.Totals `json:"totals"`
	Charged pricing.Totals `json:"charged"`
}

// Checkout prices the cart and sells every line under one receipt. When some
// lines failed Charged is less than Totals and the *BatchError says which.
func (p *Processor) Checkout(ctx context.Context, cart Cart, payment inventory.PaymentMethod) (CheckoutResult, error) {
	if cart.Empty() {
		return CheckoutResult{}, &inventory.Error{Kind: inventory.KindInvalidInput, Message: "cart is empty"}
	}
	totals := cart.Totals()
	receipt, err := p.ProcessBatch(ctx, cart.Lines, inventory.TxSale, payment)
	if receipt.ID == "" {
		return CheckoutResult{}, err
	}
	return CheckoutResult{
		Receipt: receipt,
		Totals:  roundTotals(totals),
		Charged: roundTotals(chargedCart(cart, receipt).Totals()),
	}, err
}

// chargedCart keeps the cart lines whose sale was applied. Receipt lines
// follow cart order one to one.
func chargedCart(cart Cart, receipt Receipt) Cart {
	out := Cart{DiscountPercent: cart.DiscountPercent}
	for i, l := range cart.Lines {
		if i < len(receipt.Lines) && receipt.Lines[i].OK {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

func roundTotals(t pricing.Totals) pricing.Totals {
	return pricing.Totals{
		Subtotal: pricing.Round(t.Subtotal),
		Discount: pricing.Round(t.Discount),
		Total:    pricing.Round(t.Total),
	}
}

// Restock adds stock for every line under one receipt, tagging each row with
// note when the line has none.
func (p *Processor) Restock(ctx context.Context, lines []Line, note string) (Receipt, error) {
	note = strings.TrimSpace(note)
	applied := make([]Line, len(lines))
	for i, l := range lines {
		if l.Note == "" {
			l.Note = note
		}
		applied[i] = l
	}
	return p.ProcessBatch(ctx, applied, inventory.TxRestock, inventory.PaymentCash)
}
