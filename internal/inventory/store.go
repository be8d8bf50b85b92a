package inventory

import "context"

// ItemStore persists items. Implementations return the sentinels from the
// store package (store.ErrNotFound, store.ErrDuplicate, ...).
type ItemStore interface {
	Get(ctx context.Context, id int64) (Item, error)
	FindByName(ctx context.Context, name string) (Item, error)
	FindByBarcode(ctx context.Context, code string) (Item, error)
	Insert(ctx context.Context, item Item) (Item, error)
	// UpdateQuantity sets the quantity to next only while it still equals
	// expected, returning store.ErrConflict otherwise.
	UpdateQuantity(ctx context.Context, id int64, expected, next int) error
	UpdateDetails(ctx context.Context, id int64, details ItemDetails) (Item, error)
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]Item, error)
}

// TransactionStore persists the append-only transaction log.
type TransactionStore interface {
	Append(ctx context.Context, tx Transaction) (Transaction, error)
	// Query returns matching transactions newest first.
	Query(ctx context.Context, q TxQuery) ([]Transaction, error)
	DeleteForItem(ctx context.Context, itemID int64) error
}

// StockObserver is notified after a stock change has been committed.
type StockObserver interface {
	StockChanged(ctx context.Context, item Item, txType TxType) error
}
