package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/store"
)

var ledgerNopLogger = zerolog.Nop()

// AdjustRequest describes a signed stock change.
type AdjustRequest struct {
	ItemID        int64
	Delta         int
	Type          TxType
	Note          string
	ReceiptID     *string
	PaymentMethod PaymentMethod
}

// Adjustment is the outcome of a committed stock change. When the history
// append failed the stock change still stands; LogErr and Warning describe the
// lost audit row.
type Adjustment struct {
	Item        Item        `json:"item"`
	Previous    int         `json:"previousQuantity"`
	NewQuantity int         `json:"newQuantity"`
	Transaction Transaction `json:"transaction"`
	Warning     string      `json:"warning,omitempty"`
	LogErr      error       `json:"-"`
}

// Message renders a short cashier-facing summary.
func (a Adjustment) Message() string {
	msg := fmt.Sprintf("Stock updated. New Quantity: %d", a.NewQuantity)
	if a.Warning != "" {
		msg += " (" + a.Warning + ")"
	}
	return msg
}

// Ledger applies stock deltas with a non-negative invariant and records a
// transaction for every change.
type Ledger struct {
	Items              ItemStore
	Txs                TransactionStore
	Observer           StockObserver
	Logger             *zerolog.Logger
	MaxConflictRetries int
	Location           *time.Location
	Now                func() time.Time
}

func (l *Ledger) maxConflictRetries() int {
	if l.MaxConflictRetries <= 0 {
		return 5
	}
	return l.MaxConflictRetries
}

func (l *Ledger) now() time.Time {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Location != nil {
		now = now.In(l.Location)
	}
	return now
}

func (l *Ledger) logger() *zerolog.Logger {
	if l.Logger == nil {
		return &ledgerNopLogger
	}
	return l.Logger
}

// AdjustStock applies req.Delta to the item's quantity. The quantity write is a
// compare-and-swap against the value read, retried on conflict, so concurrent
// adjustments to one item never lose updates.
func (l *Ledger) AdjustStock(ctx context.Context, req AdjustRequest) (Adjustment, error) {
	if l == nil || l.Items == nil || l.Txs == nil {
		return Adjustment{}, errors.New("ledger not configured")
	}
	if req.Delta == 0 {
		return Adjustment{}, newError(KindInvalidInput, nil, "quantity change must not be zero")
	}
	if !req.Type.Valid() {
		return Adjustment{}, newError(KindInvalidInput, nil, "unknown transaction type %q", req.Type)
	}
	if req.Type == TxSale && req.Delta > 0 {
		return Adjustment{}, newError(KindInvalidInput, nil, "a sale must reduce stock, got %+d", req.Delta)
	}
	if req.Type != TxSale && req.Delta < 0 {
		return Adjustment{}, newError(KindInvalidInput, nil, "%s must add stock, got %+d", strings.ToLower(string(req.Type)), req.Delta)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentCash
	}

	ctx, span := otel.Tracer("inventory.ledger").Start(ctx, "ledger.adjust_stock")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("item.id", req.ItemID),
		attribute.Int("stock.delta", req.Delta),
		attribute.String("stock.type", string(req.Type)),
	)

	item, err := l.swapQuantity(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Reason(err))
		recordAdjustment(req.Type, KindOf(err))
		return Adjustment{}, err
	}

	adj := Adjustment{
		Item:        item,
		Previous:    item.Quantity - req.Delta,
		NewQuantity: item.Quantity,
	}
	logged, err := l.Txs.Append(ctx, Transaction{
		ItemID:        item.ID,
		ItemName:      item.Name,
		Type:          req.Type,
		Quantity:      abs(req.Delta),
		Note:          req.Note,
		Timestamp:     l.now(),
		ReceiptID:     req.ReceiptID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		adj.LogErr = newError(KindLogAppendFailed, err, "history log failed for %s: %s", item.Name, Reason(fromStore(err, "append transaction")))
		adj.Warning = adj.LogErr.Error()
		span.AddEvent("transaction_log_failed")
		if obs.TransactionLogFailures != nil {
			obs.TransactionLogFailures.Inc()
		}
		l.logger().Warn().Err(err).
			Int64("item_id", item.ID).
			Str("item_name", item.Name).
			Str("type", string(req.Type)).
			Int("delta", req.Delta).
			Msg("transaction_log_failed")
	} else {
		adj.Transaction = logged
	}
	recordAdjustment(req.Type, "")

	l.logger().Info().
		Int64("item_id", item.ID).
		Str("type", string(req.Type)).
		Int("delta", req.Delta).
		Int("quantity", item.Quantity).
		Msg("stock_adjusted")

	if l.Observer != nil {
		if err := l.Observer.StockChanged(ctx, item, req.Type); err != nil {
			l.logger().Warn().Err(err).Int64("item_id", item.ID).Msg("stock_observer_failed")
		}
	}
	return adj, nil
}

// swapQuantity reads the item, validates the new quantity and writes it
// conditionally. It returns the item carrying the committed quantity.
func (l *Ledger) swapQuantity(ctx context.Context, req AdjustRequest) (Item, error) {
	limit := l.maxConflictRetries()
	for attempt := 1; ; attempt++ {
		item, err := l.Items.Get(ctx, req.ItemID)
		if err != nil {
			return Item{}, fromStore(err, fmt.Sprintf("item %d", req.ItemID))
		}
		next := item.Quantity + req.Delta
		if next < 0 {
			return Item{}, newError(KindInsufficientStock, nil,
				"Insufficient stock for %s: %d available, %d requested", item.Name, item.Quantity, -req.Delta)
		}
		err = l.Items.UpdateQuantity(ctx, item.ID, item.Quantity, next)
		if err == nil {
			item.Quantity = next
			return item, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt < limit {
			l.logger().Debug().Int64("item_id", item.ID).Int("attempt", attempt).Msg("stock_update_conflict")
			continue
		}
		return Item{}, fromStore(err, "update stock for "+item.Name)
	}
}

func recordAdjustment(txType TxType, kind Kind) {
	if obs.StockAdjustmentsTotal == nil {
		return
	}
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	obs.StockAdjustmentsTotal.WithLabelValues(string(txType), result).Inc()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
