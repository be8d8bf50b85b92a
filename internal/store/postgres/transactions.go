package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-pos/internal/inventory"
)

const txColumns = `id, item_id, item_name, type, quantity, note, timestamp, receipt_id, payment_method`

// Append implements inventory.TransactionStore.
func (s *Store) Append(ctx context.Context, tx inventory.Transaction) (inventory.Transaction, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO transactions (item_id, item_name, type, quantity, note, timestamp, receipt_id, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		tx.ItemID, tx.ItemName, string(tx.Type), tx.Quantity, tx.Note, tx.Timestamp, tx.ReceiptID,
		string(tx.PaymentMethod)).Scan(&tx.ID)
	if err != nil {
		return inventory.Transaction{}, classify("append transaction", err)
	}
	return tx, nil
}

// Query implements inventory.TransactionStore.
func (s *Store) Query(ctx context.Context, q inventory.TxQuery) ([]inventory.Transaction, error) {
	sql, args := buildTxQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("query transactions", err)
	}
	defer rows.Close()
	out := make([]inventory.Transaction, 0)
	for rows.Next() {
		var (
			tx      inventory.Transaction
			txType  string
			payment string
		)
		if err := rows.Scan(&tx.ID, &tx.ItemID, &tx.ItemName, &txType, &tx.Quantity, &tx.Note,
			&tx.Timestamp, &tx.ReceiptID, &payment); err != nil {
			return nil, classify("query transactions", err)
		}
		tx.Type = inventory.TxType(txType)
		tx.PaymentMethod = inventory.PaymentMethod(payment)
		out = append(out, tx)
	}
	return out, classify("query transactions", rows.Err())
}

func buildTxQuery(q inventory.TxQuery) (string, []any) {
	var (
		b     strings.Builder
		args  []any
		conds []string
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.Type != "" {
		conds = append(conds, "type = "+arg(string(q.Type)))
	}
	if !q.Since.IsZero() {
		conds = append(conds, "timestamp >= "+arg(q.Since))
	}
	if q.ItemID != 0 {
		conds = append(conds, "item_id = "+arg(q.ItemID))
	}
	if q.ReceiptID != "" {
		conds = append(conds, "receipt_id = "+arg(q.ReceiptID))
	}
	b.WriteString("SELECT " + txColumns + " FROM transactions")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC, id DESC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}
	return b.String(), args
}

// DeleteForItem implements inventory.TransactionStore.
func (s *Store) DeleteForItem(ctx context.Context, itemID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE item_id = $1`, itemID)
	return classify("delete transactions", err)
}
