package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, store.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "items_name_key"}, store.ErrDuplicate},
		{"missing column", &pgconn.PgError{Code: "42703", Message: `column "receipt_id" does not exist`}, store.ErrSchemaMismatch},
		{"missing table", &pgconn.PgError{Code: "42P01"}, store.ErrSchemaMismatch},
		{"connection exception", &pgconn.PgError{Code: "08006"}, store.ErrUnavailable},
		{"serialization", &pgconn.PgError{Code: "40001"}, store.ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, store.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, classify("op", tc.err), tc.want)
		})
	}
}

func TestClassifyLeavesOtherErrorsPermanent(t *testing.T) {
	err := classify("insert item", &pgconn.PgError{Code: "23514", Message: "check violation"})
	require.Error(t, err)
	require.False(t, store.Retryable(err))

	err = classify("insert item", errors.New("boom"))
	require.False(t, store.Retryable(err))
	require.ErrorContains(t, err, "postgres insert item: boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, classify("get", ctx.Err()), context.Canceled)
	require.NoError(t, classify("get", nil))
}

func TestBuildTxQuery(t *testing.T) {
	sql, args := buildTxQuery(inventory.TxQuery{})
	require.Equal(t, "SELECT "+txColumns+" FROM transactions ORDER BY timestamp DESC, id DESC", sql)
	require.Empty(t, args)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sql, args = buildTxQuery(inventory.TxQuery{Type: inventory.TxSale, Since: since, ReceiptID: "R-1", Limit: 10})
	require.Equal(t, "SELECT "+txColumns+" FROM transactions WHERE type = $1 AND timestamp >= $2 AND receipt_id = $3 ORDER BY timestamp DESC, id DESC LIMIT $4", sql)
	require.Equal(t, []any{"SALE", since, "R-1", 10}, args)
}

func TestMigrationsAllowZeroQuantityTransactions(t *testing.T) {
	src, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	// Walk to the newest migration; it must leave the history check at >= 0.
	version, err := src.First()
	require.NoError(t, err)
	var last string
	for {
		rc, _, err := src.ReadUp(version)
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		if strings.Contains(string(body), "transactions_quantity_check") {
			last = string(body)
		}
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		version = next
	}
	require.Contains(t, last, "ADD CONSTRAINT transactions_quantity_check CHECK (quantity >= 0)")
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/pos?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/pos?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/pos", migrateURL("postgresql://localhost/pos"))
	require.Equal(t, "pgx5://localhost/pos", migrateURL("pgx5://localhost/pos"))
}

// fakeDB answers the compare-and-swap statements without a server.
type fakeDB struct {
	affected int64
	exists   bool
	execErr  error
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.affected)), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return existsRow{exists: f.exists}
}

type existsRow struct{ exists bool }

func (r existsRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.exists
	return nil
}

func TestUpdateQuantityCompareAndSwap(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, New(&fakeDB{affected: 1}).UpdateQuantity(ctx, 1, 5, 2))
	require.ErrorIs(t, New(&fakeDB{affected: 0, exists: true}).UpdateQuantity(ctx, 1, 5, 2), store.ErrConflict)
	require.ErrorIs(t, New(&fakeDB{affected: 0, exists: false}).UpdateQuantity(ctx, 1, 5, 2), store.ErrNotFound)
	require.ErrorIs(t, New(&fakeDB{execErr: &pgconn.PgError{Code: "57P01"}}).UpdateQuantity(ctx, 1, 5, 2), store.ErrUnavailable)
}
