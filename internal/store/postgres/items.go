package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/store"
)

const itemColumns = `id, name, category, maker, supplier, color, barcode, quantity, price::text,
	min_threshold, sale_percent, is_bogo, created_at, updated_at`

func scanItem(row pgx.Row) (inventory.Item, error) {
	var (
		it    inventory.Item
		price string
	)
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Maker, &it.Supplier, &it.Color, &it.Barcode,
		&it.Quantity, &price, &it.MinThreshold, &it.SalePercent, &it.BOGO, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return inventory.Item{}, err
	}
	it.Price, err = decimal.NewFromString(price)
	if err != nil {
		return inventory.Item{}, err
	}
	return it, nil
}

// Get implements inventory.ItemStore.
func (s *Store) Get(ctx context.Context, id int64) (inventory.Item, error) {
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	return it, classify("get item", err)
}

// FindByName implements inventory.ItemStore.
func (s *Store) FindByName(ctx context.Context, name string) (inventory.Item, error) {
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE name = $1`, name))
	return it, classify("find item by name", err)
}

// FindByBarcode implements inventory.ItemStore.
func (s *Store) FindByBarcode(ctx context.Context, code string) (inventory.Item, error) {
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE barcode = $1`, code))
	return it, classify("find item by barcode", err)
}

// Insert implements inventory.ItemStore.
func (s *Store) Insert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO items (name, category, maker, supplier, color, barcode, quantity, price,
			min_threshold, sale_percent, is_bogo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)
		RETURNING `+itemColumns,
		item.Name, item.Category, item.Maker, item.Supplier, item.Color, item.Barcode,
		item.Quantity, item.Price.StringFixed(2), item.MinThreshold, item.SalePercent, item.BOGO)
	it, err := scanItem(row)
	return it, classify("insert item", err)
}

// UpdateQuantity implements inventory.ItemStore. Zero affected rows means the
// item is gone or its quantity moved since it was read.
func (s *Store) UpdateQuantity(ctx context.Context, id int64, expected, next int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE items SET quantity = $3, updated_at = now() WHERE id = $1 AND quantity = $2`,
		id, expected, next)
	if err != nil {
		return classify("update quantity", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return classify("update quantity", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

// UpdateDetails implements inventory.ItemStore.
func (s *Store) UpdateDetails(ctx context.Context, id int64, d inventory.ItemDetails) (inventory.Item, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE items SET name = $2, category = $3, maker = $4, supplier = $5, color = $6,
			barcode = $7, price = $8::numeric, min_threshold = $9, sale_percent = $10,
			is_bogo = $11, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, d.Name, d.Category, d.Maker, d.Supplier, d.Color, d.Barcode,
		d.Price.StringFixed(2), d.MinThreshold, d.SalePercent, d.BOGO)
	it, err := scanItem(row)
	return it, classify("update item", err)
}

// Delete implements inventory.ItemStore.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return classify("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListAll implements inventory.ItemStore.
func (s *Store) ListAll(ctx context.Context) ([]inventory.Item, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, classify("list items", err)
	}
	defer rows.Close()
	out := make([]inventory.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, classify("list items", err)
		}
		out = append(out, it)
	}
	return out, classify("list items", rows.Err())
}
