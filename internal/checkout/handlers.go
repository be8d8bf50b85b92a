package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Catalog resolves items for new cart lines. *inventory.Service implements it.
type Catalog interface {
	Get(ctx context.Context, id int64) (inventory.Item, error)
	Lookup(ctx context.Context, query string) (inventory.Item, error)
}

// Locker serialises checkouts per register. lock.Locker implements it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// DisplayClearer resets the customer display after a sale.
type DisplayClearer interface {
	Clear(ctx context.Context) error
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Processor *Processor
	Catalog   Catalog
	Locker    Locker
	LockTTL   time.Duration
	Display   DisplayClearer
	Logger    *zerolog.Logger
}

// Handler exposes cart pricing, checkout and restock endpoints.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = &processorNopLogger
	}
	return &Handler{cfg: cfg}
}

// Routes mounts the cart endpoints. Checkout is wrapped by checkoutMW, e.g.
// the idempotency middleware.
func (h *Handler) Routes(r chi.Router, checkoutMW ...func(http.Handler) http.Handler) {
	r.Post("/cart/lines", h.AddLine)
	r.Post("/cart/quote", h.Quote)
	r.With(checkoutMW...).Post("/checkout", h.Checkout)
	r.Post("/restock", h.Restock)
}

type addLineRequest struct {
	Cart    Cart   `json:"cart"`
	ItemID  int64  `json:"itemId" validate:"required_without=Barcode"`
	Barcode string `json:"barcode"`
	Qty     int    `json:"qty" validate:"gt=0"`
	Note    string `json:"note"`
}

type checkoutRequest struct {
	Cart          Cart   `json:"cart"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=CASH CARD OTHER cash card other"`
}

type restockLine struct {
	ItemID int64  `json:"itemId" validate:"required,gt=0"`
	Qty    int    `json:"qty" validate:"gt=0"`
	Note   string `json:"note"`
}

type restockRequest struct {
	Lines []restockLine `json:"lines" validate:"required,min=1,dive"`
	Note  string        `json:"note"`
}

type quotedLine struct {
	Line
	EffectivePrice  decimal.Decimal `json:"effectivePrice"`
	PayableQuantity int             `json:"payableQuantity"`
	LineTotal       decimal.Decimal `json:"lineTotal"`
}

type quote struct {
	Lines           []quotedLine   `json:"lines"`
	DiscountPercent int            `json:"discountPercent"`
	Totals          pricing.Totals `json:"totals"`
}

func quoteCart(c Cart) quote {
	lines := make([]quotedLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, quotedLine{
			Line:            l,
			EffectivePrice:  pricing.Round(pricing.EffectivePrice(l.UnitPrice, l.SalePercent)),
			PayableQuantity: pricing.PayableQuantity(l.Qty, l.BOGO),
			LineTotal:       pricing.Round(l.Total()),
		})
	}
	totals := c.Totals()
	return quote{
		Lines:           lines,
		DiscountPercent: pricing.ClampCheckoutDiscount(c.DiscountPercent),
		Totals: pricing.Totals{
			Subtotal: pricing.Round(totals.Subtotal),
			Discount: pricing.Round(totals.Discount),
			Total:    pricing.Round(totals.Total),
		},
	}
}

// AddLine handles POST /cart/lines: it snapshots the item into the posted cart
// and returns the new cart with its quote.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	var (
		item inventory.Item
		err  error
	)
	if req.ItemID > 0 {
		item, err = h.cfg.Catalog.Get(r.Context(), req.ItemID)
	} else {
		item, err = h.cfg.Catalog.Lookup(r.Context(), req.Barcode)
	}
	if err != nil {
		inventory.WriteError(w, err)
		return
	}
	cart := req.Cart.Add(NewLine(item, req.Qty, req.Note))
	common.JSON(w, http.StatusOK, map[string]any{"data": cart, "quote": quoteCart(cart)})
}

// Quote handles POST /cart/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var cart Cart
	if err := common.DecodeJSON(r, &cart); err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quoteCart(cart))
}

// Checkout handles POST /checkout. Concurrent checkouts from one register are
// serialised with a lock keyed by X-Register-ID.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	var (
		result CheckoutResult
		err    error
	)
	run := func(ctx context.Context) error {
		result, err = h.cfg.Processor.Checkout(ctx, req.Cart, inventory.NormalizePaymentMethod(req.PaymentMethod))
		return nil
	}
	if h.cfg.Locker != nil {
		if lockErr := h.cfg.Locker.WithLock(r.Context(), registerLockKey(r), h.cfg.LockTTL, run); lockErr != nil {
			// run never started, so the idempotency key must stay usable.
			common.NotApplied(w)
			if errors.Is(lockErr, lock.ErrNotAcquired) {
				common.JSONError(w, http.StatusConflict, "REGISTER_BUSY", "another checkout is running on this register", nil)
				return
			}
			h.cfg.Logger.Warn().Err(lockErr).Msg("register_lock_failed")
			common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "register lock unavailable", nil)
			return
		}
	} else {
		_ = run(r.Context())
	}
	// A partial sale keeps the customer display so the failed lines stay visible.
	if err == nil && result.Receipt.ID != "" && h.cfg.Display != nil {
		if clearErr := h.cfg.Display.Clear(r.Context()); clearErr != nil {
			h.cfg.Logger.Warn().Err(clearErr).Str("receipt_id", result.Receipt.ID).Msg("live_cart_clear_failed")
		}
	}
	h.writeBatch(w, result, result.Receipt.ID, err)
}

// Restock handles POST /restock.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		item, err := h.cfg.Catalog.Get(r.Context(), l.ItemID)
		if err != nil {
			inventory.WriteError(w, err)
			return
		}
		lines = append(lines, NewLine(item, l.Qty, l.Note))
	}
	receipt, err := h.cfg.Processor.Restock(r.Context(), lines, req.Note)
	h.writeBatch(w, receipt, receipt.ID, err)
}

func (h *Handler) writeBatch(w http.ResponseWriter, data any, receiptID string, err error) {
	if err == nil {
		common.Data(w, http.StatusCreated, data)
		return
	}
	var batchErr *BatchError
	if errors.As(err, &batchErr) && receiptID != "" {
		common.JSON(w, http.StatusMultiStatus, map[string]any{
			"data": data,
			"error": common.ErrorBody{
				Code:    "PARTIAL_BATCH",
				Message: batchErr.Error(),
				Details: batchErr.Failures,
			},
		})
		return
	}
	inventory.WriteError(w, err)
}

func registerLockKey(r *http.Request) string {
	register := common.RegisterID(r)
	if register == "" {
		register = "default"
	}
	return "pos:lock:checkout:" + register
}
