package inventory

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/common"
)

// Handler exposes item, transaction and report endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

// Routes mounts the handler under the caller's router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/lookup", h.Lookup)
	r.Get("/items/{id}", h.GetItem)
	r.Patch("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.DeleteItem)
	r.Post("/items/{id}/adjust", h.Adjust)
	r.Get("/transactions", h.Transactions)
	r.Get("/reports/top-selling", h.TopSelling)
}

type itemPayload struct {
	Name         string          `json:"name" validate:"required"`
	Category     string          `json:"category"`
	Maker        string          `json:"maker"`
	Supplier     string          `json:"supplier"`
	Color        string          `json:"color"`
	Barcode      *string         `json:"barcode"`
	Price        decimal.Decimal `json:"price"`
	MinThreshold *int            `json:"minThreshold" validate:"omitempty,gte=0"`
	SalePercent  int             `json:"salePercent"`
	BOGO         bool            `json:"bogo"`
}

func (p itemPayload) details() ItemDetails {
	threshold := 5
	if p.MinThreshold != nil {
		threshold = *p.MinThreshold
	}
	return ItemDetails{
		Name:         p.Name,
		Category:     p.Category,
		Maker:        p.Maker,
		Supplier:     p.Supplier,
		Color:        p.Color,
		Barcode:      p.Barcode,
		Price:        p.Price,
		MinThreshold: threshold,
		SalePercent:  p.SalePercent,
		BOGO:         p.BOGO,
	}
}

type createItemRequest struct {
	itemPayload
	Quantity int `json:"quantity" validate:"gte=0"`
}

type adjustRequest struct {
	Delta         int     `json:"delta" validate:"ne=0"`
	Type          string  `json:"type" validate:"required,oneof=SALE RESTOCK"`
	Note          string  `json:"note"`
	ReceiptID     *string `json:"receiptId"`
	PaymentMethod string  `json:"paymentMethod"`
}

// ListItems handles GET /items; ?low_stock=true narrows to reorder candidates.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []Item
		err   error
	)
	if low, _ := strconv.ParseBool(r.URL.Query().Get("low_stock")); low {
		items, err = h.service.LowStock(r.Context())
	} else {
		items, err = h.service.List(r.Context())
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// CreateItem handles POST /items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	adj, err := h.service.AddItem(r.Context(), NewItem{ItemDetails: req.details(), Quantity: req.Quantity})
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": adj.Item, "warning": adj.Warning})
}

// Lookup handles GET /items/lookup?barcode= or ?name=, the scanner path.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		item Item
		err  error
	)
	switch {
	case strings.TrimSpace(q.Get("barcode")) != "":
		item, err = h.service.Lookup(r.Context(), q.Get("barcode"))
	case strings.TrimSpace(q.Get("name")) != "":
		item, err = h.service.FindByName(r.Context(), q.Get("name"))
	default:
		err = newError(KindInvalidInput, nil, "barcode or name is required")
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// UpdateItem handles PATCH /items/{id}. Quantity is not editable here.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req itemPayload
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.service.UpdateDetails(r.Context(), id, req.details())
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Adjust handles POST /items/{id}/adjust for single-item sales and restocks.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req adjustRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	adj, err := h.service.AdjustStock(r.Context(), AdjustRequest{
		ItemID:        id,
		Delta:         req.Delta,
		Type:          TxType(req.Type),
		Note:          strings.TrimSpace(req.Note),
		ReceiptID:     req.ReceiptID,
		PaymentMethod: NormalizePaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": adj, "message": adj.Message()})
}

// Transactions handles GET /transactions?type=&since=&item_id=&receipt_id=&limit=.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := TxQuery{
		Type:      TxType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		ReceiptID: strings.TrimSpace(q.Get("receipt_id")),
		Limit:     common.QueryInt(r, "limit", defaultTxLimit),
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, newError(KindInvalidInput, err, "since must be an RFC 3339 timestamp"))
			return
		}
		query.Since = since
	}
	if raw := strings.TrimSpace(q.Get("item_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteError(w, newError(KindInvalidInput, err, "item_id must be a positive integer"))
			return
		}
		query.ItemID = id
	}
	txs, err := h.service.Transactions(r.Context(), query)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, txs)
}

// TopSelling handles GET /reports/top-selling?period=week|month|all&limit=.
func (h *Handler) TopSelling(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := ParsePeriod(q.Get("period"))
	rows, err := h.service.TopSelling(r.Context(), period, common.QueryInt(r, "limit", 10))
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "period": period})
}

func itemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, newError(KindNotFound, err, "item %q not found", raw)
	}
	return id, nil
}

// HTTPStatus maps an inventory kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate, KindConflict:
		return http.StatusConflict
	case KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToAppError converts err into a common.AppError carrying the inventory kind
// as its code. Internal failures keep their cause out of the message.
func ToAppError(err error) *common.AppError {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	kind := KindOf(err)
	msg := Reason(err)
	if kind == KindInternal || kind == KindSchemaMismatch {
		msg = "internal error"
	}
	return common.NewAppError(string(kind), msg, HTTPStatus(kind), err)
}

// WriteError renders an inventory error.
func WriteError(w http.ResponseWriter, err error) {
	common.WriteError(w, ToAppError(err))
}
