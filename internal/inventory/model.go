package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

// TxType classifies a stock transaction.
type TxType string

const (
	TxInitialStock TxType = "INITIAL_STOCK"
	TxSale         TxType = "SALE"
	TxRestock      TxType = "RESTOCK"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxInitialStock, TxSale, TxRestock:
		return true
	default:
		return false
	}
}

// PaymentMethod records how a sale was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "CASH"
	PaymentCard  PaymentMethod = "CARD"
	PaymentOther PaymentMethod = "OTHER"
)

// NormalizePaymentMethod upper-cases the method and defaults to cash.
func NormalizePaymentMethod(v string) PaymentMethod {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(v))) {
	case PaymentCard:
		return PaymentCard
	case PaymentOther:
		return PaymentOther
	default:
		return PaymentCash
	}
}

// Item is a stocked product.
type Item struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Maker        string          `json:"maker"`
	Supplier     string          `json:"supplier"`
	Color        string          `json:"color"`
	Barcode      *string         `json:"barcode,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	MinThreshold int             `json:"minThreshold"`
	SalePercent  int             `json:"salePercent"`
	BOGO         bool            `json:"bogo"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LowStock reports whether the item sits at or below its reorder threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.MinThreshold
}

// ItemDetails carries the editable attributes of an item. Quantity is not part
// of it; stock only changes through the Ledger.
type ItemDetails struct {
	Name         string
	Category     string
	Maker        string
	Supplier     string
	Color        string
	Barcode      *string
	Price        decimal.Decimal
	MinThreshold int
	SalePercent  int
	BOGO         bool
}

// Normalize applies the data-entry rules: trimmed name, upper-case category,
// maker and supplier, empty barcode stored as absent and a clamped sale.
func (d ItemDetails) Normalize() ItemDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.ToUpper(strings.TrimSpace(d.Category))
	d.Maker = strings.ToUpper(strings.TrimSpace(d.Maker))
	d.Supplier = strings.ToUpper(strings.TrimSpace(d.Supplier))
	d.Color = strings.TrimSpace(d.Color)
	if d.Barcode != nil {
		code := strings.TrimSpace(*d.Barcode)
		if code == "" {
			d.Barcode = nil
		} else {
			d.Barcode = &code
		}
	}
	d.SalePercent = pricing.ClampSalePercent(d.SalePercent)
	if d.MinThreshold < 0 {
		d.MinThreshold = 0
	}
	return d
}

// Apply copies the details onto an item.
func (d ItemDetails) Apply(it Item) Item {
	it.Name = d.Name
	it.Category = d.Category
	it.Maker = d.Maker
	it.Supplier = d.Supplier
	it.Color = d.Color
	it.Barcode = d.Barcode
	it.Price = d.Price
	it.MinThreshold = d.MinThreshold
	it.SalePercent = d.SalePercent
	it.BOGO = d.BOGO
	return it
}

// Transaction is an immutable stock movement record.
type Transaction struct {
	ID            int64         `json:"id"`
	ItemID        int64         `json:"itemId"`
	ItemName      string        `json:"itemName"`
	Type          TxType        `json:"type"`
	Quantity      int           `json:"quantity"`
	Note          string        `json:"note"`
	Timestamp     time.Time     `json:"timestamp"`
	ReceiptID     *string       `json:"receiptId,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// TxQuery filters the transaction log. Zero values mean "any".
type TxQuery struct {
	Type      TxType
	Since     time.Time
	ItemID    int64
	ReceiptID string
	Limit     int
}
