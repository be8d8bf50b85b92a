// Package retrying decorates the item, transaction and settings stores with
// bounded retries and a circuit breaker for transient backend failures.
package retrying

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/resilience"
	"github.com/noah-isme/toko-pos/internal/settings"
	"github.com/noah-isme/toko-pos/internal/store"
)

// NewPolicy returns p with store.Retryable as its retry predicate when none
// was supplied.
func NewPolicy(p resilience.Policy) resilience.Policy {
	if p.Retryable == nil {
		p.Retryable = store.Retryable
	}
	return p
}

func call[T any](ctx context.Context, p resilience.Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := resilience.Do(ctx, p, op, fn)
	if err != nil && errors.Is(err, resilience.ErrOpenCircuit) {
		return v, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return v, err
}

func exec(ctx context.Context, p resilience.Policy, op string, fn func(context.Context) error) error {
	_, err := call(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Items wraps an inventory.ItemStore.
type Items struct {
	Next   inventory.ItemStore
	Policy resilience.Policy
}

func (s Items) Get(ctx context.Context, id int64) (inventory.Item, error) {
	return call(ctx, s.Policy, "items.get", func(ctx context.Context) (inventory.Item, error) {
		return s.Next.Get(ctx, id)
	})
}

func (s Items) FindByName(ctx context.Context, name string) (inventory.Item, error) {
	return call(ctx, s.Policy, "items.find_by_name", func(ctx context.Context) (inventory.Item, error) {
		return s.Next.FindByName(ctx, name)
	})
}

func (s Items) FindByBarcode(ctx context.Context, code string) (inventory.Item, error) {
	return call(ctx, s.Policy, "items.find_by_barcode", func(ctx context.Context) (inventory.Item, error) {
		return s.Next.FindByBarcode(ctx, code)
	})
}

func (s Items) Insert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	return call(ctx, s.Policy, "items.insert", func(ctx context.Context) (inventory.Item, error) {
		return s.Next.Insert(ctx, item)
	})
}

func (s Items) UpdateQuantity(ctx context.Context, id int64, expected, next int) error {
	return exec(ctx, s.Policy, "items.update_quantity", func(ctx context.Context) error {
		return s.Next.UpdateQuantity(ctx, id, expected, next)
	})
}

func (s Items) UpdateDetails(ctx context.Context, id int64, details inventory.ItemDetails) (inventory.Item, error) {
	return call(ctx, s.Policy, "items.update_details", func(ctx context.Context) (inventory.Item, error) {
		return s.Next.UpdateDetails(ctx, id, details)
	})
}

func (s Items) Delete(ctx context.Context, id int64) error {
	return exec(ctx, s.Policy, "items.delete", func(ctx context.Context) error {
		return s.Next.Delete(ctx, id)
	})
}

func (s Items) ListAll(ctx context.Context) ([]inventory.Item, error) {
	return call(ctx, s.Policy, "items.list", s.Next.ListAll)
}

// Transactions wraps an inventory.TransactionStore.
type Transactions struct {
	Next   inventory.TransactionStore
	Policy resilience.Policy
}

func (s Transactions) Append(ctx context.Context, tx inventory.Transaction) (inventory.Transaction, error) {
	return call(ctx, s.Policy, "transactions.append", func(ctx context.Context) (inventory.Transaction, error) {
		return s.Next.Append(ctx, tx)
	})
}

func (s Transactions) Query(ctx context.Context, q inventory.TxQuery) ([]inventory.Transaction, error) {
	return call(ctx, s.Policy, "transactions.query", func(ctx context.Context) ([]inventory.Transaction, error) {
		return s.Next.Query(ctx, q)
	})
}

func (s Transactions) DeleteForItem(ctx context.Context, itemID int64) error {
	return exec(ctx, s.Policy, "transactions.delete_for_item", func(ctx context.Context) error {
		return s.Next.DeleteForItem(ctx, itemID)
	})
}

// Settings wraps a settings.Store.
type Settings struct {
	Next   settings.Store
	Policy resilience.Policy
}

func (s Settings) Get(ctx context.Context, key string) (string, bool, error) {
	type result struct {
		value string
		found bool
	}
	r, err := call(ctx, s.Policy, "settings.get", func(ctx context.Context) (result, error) {
		v, ok, err := s.Next.Get(ctx, key)
		return result{value: v, found: ok}, err
	})
	return r.value, r.found, err
}

func (s Settings) Set(ctx context.Context, key, value string) error {
	return exec(ctx, s.Policy, "settings.set", func(ctx context.Context) error {
		return s.Next.Set(ctx, key, value)
	})
}

var (
	_ inventory.ItemStore        = Items{}
	_ inventory.TransactionStore = Transactions{}
	_ settings.Store             = Settings{}
)
