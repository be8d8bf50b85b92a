package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/store"
)

const (
	defaultTxLimit = 100
	maxTxLimit     = 1000
)

// NewItem is the input for AddItem.
type NewItem struct {
	ItemDetails
	Quantity int
}

// Service exposes the item catalogue operations around the Ledger.
type Service struct {
	Items  ItemStore
	Txs    TransactionStore
	Ledger *Ledger
	Logger *zerolog.Logger
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger == nil {
		return &ledgerNopLogger
	}
	return s.Logger
}

func (s *Service) configured() error {
	if s == nil || s.Items == nil || s.Txs == nil || s.Ledger == nil {
		return errors.New("inventory service not configured")
	}
	return nil
}

// AddItem validates and inserts a new item, then records its opening stock as
// an INITIAL_STOCK transaction. A failed history append is reported as a
// warning on the returned Adjustment.
func (s *Service) AddItem(ctx context.Context, in NewItem) (Adjustment, error) {
	if err := s.configured(); err != nil {
		return Adjustment{}, err
	}
	details := in.ItemDetails.Normalize()
	if err := validateDetails(details); err != nil {
		return Adjustment{}, err
	}
	if in.Quantity < 0 {
		return Adjustment{}, newError(KindInvalidInput, nil, "initial quantity must not be negative")
	}
	if err := s.ensureUnique(ctx, 0, details); err != nil {
		return Adjustment{}, err
	}

	item := details.Apply(Item{Quantity: in.Quantity})
	created, err := s.Items.Insert(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Adjustment{}, newError(KindDuplicate, err, "Item '%s' already exists.", details.Name)
		}
		return Adjustment{}, fromStore(err, "insert item "+details.Name)
	}

	adj := Adjustment{Item: created, NewQuantity: created.Quantity}
	logged, err := s.Txs.Append(ctx, Transaction{
		ItemID:        created.ID,
		ItemName:      created.Name,
		Type:          TxInitialStock,
		Quantity:      created.Quantity,
		Note:          "Initial stock added",
		Timestamp:     s.Ledger.now(),
		PaymentMethod: PaymentCash,
	})
	if err != nil {
		adj.LogErr = newError(KindLogAppendFailed, err, "history log failed for %s: %s", created.Name, Reason(fromStore(err, "append transaction")))
		adj.Warning = adj.LogErr.Error()
		s.logger().Warn().Err(err).Int64("item_id", created.ID).Msg("transaction_log_failed")
	} else {
		adj.Transaction = logged
	}
	s.logger().Info().Int64("item_id", created.ID).Str("name", created.Name).Int("quantity", created.Quantity).Msg("item_added")
	return adj, nil
}

// UpdateDetails edits the non-stock attributes of an item.
func (s *Service) UpdateDetails(ctx context.Context, id int64, details ItemDetails) (Item, error) {
	if err := s.configured(); err != nil {
		return Item{}, err
	}
	details = details.Normalize()
	if err := validateDetails(details); err != nil {
		return Item{}, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return Item{}, err
	}
	if err := s.ensureUnique(ctx, id, details); err != nil {
		return Item{}, err
	}
	updated, err := s.Items.UpdateDetails(ctx, id, details)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Item{}, newError(KindDuplicate, err, "Item '%s' or its barcode already exists.", details.Name)
		}
		return Item{}, fromStore(err, fmt.Sprintf("update item %d", id))
	}
	return updated, nil
}

// Delete removes an item together with its transaction history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.configured(); err != nil {
		return err
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Txs.DeleteForItem(ctx, id); err != nil {
		return fromStore(err, "delete history for "+item.Name)
	}
	if err := s.Items.Delete(ctx, id); err != nil {
		return fromStore(err, "delete item "+item.Name)
	}
	s.logger().Info().Int64("item_id", id).Str("name", item.Name).Msg("item_deleted")
	return nil
}

// AdjustStock delegates to the Ledger.
func (s *Service) AdjustStock(ctx context.Context, req AdjustRequest) (Adjustment, error) {
	if err := s.configured(); err != nil {
		return Adjustment{}, err
	}
	return s.Ledger.AdjustStock(ctx, req)
}

// Get loads an item by identifier.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if err := s.configured(); err != nil {
		return Item{}, err
	}
	item, err := s.Items.Get(ctx, id)
	if err != nil {
		return Item{}, fromStore(err, fmt.Sprintf("item %d", id))
	}
	return item, nil
}

// FindByName loads an item by its unique name.
func (s *Service) FindByName(ctx context.Context, name string) (Item, error) {
	if err := s.configured(); err != nil {
		return Item{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, newError(KindInvalidInput, nil, "name is required")
	}
	item, err := s.Items.FindByName(ctx, name)
	if err != nil {
		return Item{}, fromStore(err, fmt.Sprintf("item %q", name))
	}
	return item, nil
}

// FindByBarcode loads an item by barcode.
func (s *Service) FindByBarcode(ctx context.Context, code string) (Item, error) {
	if err := s.configured(); err != nil {
		return Item{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Item{}, newError(KindInvalidInput, nil, "barcode is required")
	}
	item, err := s.Items.FindByBarcode(ctx, code)
	if err != nil {
		return Item{}, fromStore(err, fmt.Sprintf("barcode %q", code))
	}
	return item, nil
}

// Lookup resolves scanner input: a barcode first, then an exact name.
func (s *Service) Lookup(ctx context.Context, query string) (Item, error) {
	item, err := s.FindByBarcode(ctx, query)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return item, err
	}
	return s.FindByName(ctx, query)
}

// List returns every item ordered by identifier.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	items, err := s.Items.ListAll(ctx)
	if err != nil {
		return nil, fromStore(err, "list items")
	}
	return items, nil
}

// LowStock returns the items at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0)
	for _, it := range items {
		if it.LowStock() {
			out = append(out, it)
		}
	}
	return out, nil
}

// Transactions queries the log newest first with a bounded limit.
func (s *Service) Transactions(ctx context.Context, q TxQuery) ([]Transaction, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, newError(KindInvalidInput, nil, "unknown transaction type %q", q.Type)
	}
	if q.Limit <= 0 {
		q.Limit = defaultTxLimit
	}
	if q.Limit > maxTxLimit {
		q.Limit = maxTxLimit
	}
	txs, err := s.Txs.Query(ctx, q)
	if err != nil {
		return nil, fromStore(err, "query transactions")
	}
	return txs, nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID int64, d ItemDetails) error {
	existing, err := s.Items.FindByName(ctx, d.Name)
	switch {
	case err == nil && existing.ID != selfID:
		return newError(KindDuplicate, nil, "Item '%s' already exists.", d.Name)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return fromStore(err, "check item name")
	}
	if d.Barcode == nil {
		return nil
	}
	existing, err = s.Items.FindByBarcode(ctx, *d.Barcode)
	switch {
	case err == nil && existing.ID != selfID:
		return newError(KindDuplicate, nil, "Barcode '%s' already exists.", *d.Barcode)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return fromStore(err, "check barcode")
	}
	return nil
}

func validateDetails(d ItemDetails) error {
	if d.Name == "" {
		return newError(KindInvalidInput, nil, "name is required")
	}
	if d.Price.IsNegative() {
		return newError(KindInvalidInput, nil, "price must not be negative")
	}
	return nil
}
