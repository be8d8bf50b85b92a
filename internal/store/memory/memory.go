// Package memory provides process-local implementations of the item,
// transaction and settings stores, used by tests and the memory driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/store"
)

// Store keeps items, transactions and settings in memory.
type Store struct {
	mu       sync.Mutex
	items    map[int64]inventory.Item
	txs      []inventory.Transaction
	settings map[string]string
	nextItem int64
	nextTx   int64
	now      func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		items:    make(map[int64]inventory.Item),
		settings: make(map[string]string),
		now:      time.Now,
	}
}

// Get implements inventory.ItemStore.
func (s *Store) Get(_ context.Context, id int64) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return inventory.Item{}, store.ErrNotFound
	}
	return cloneItem(it), nil
}

// FindByName implements inventory.ItemStore.
func (s *Store) FindByName(_ context.Context, name string) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Name == name {
			return cloneItem(it), nil
		}
	}
	return inventory.Item{}, store.ErrNotFound
}

// FindByBarcode implements inventory.ItemStore.
func (s *Store) FindByBarcode(_ context.Context, code string) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Barcode != nil && *it.Barcode == code {
			return cloneItem(it), nil
		}
	}
	return inventory.Item{}, store.ErrNotFound
}

// Insert implements inventory.ItemStore.
func (s *Store) Insert(_ context.Context, item inventory.Item) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictsLocked(0, item.Name, item.Barcode) {
		return inventory.Item{}, store.ErrDuplicate
	}
	s.nextItem++
	now := s.now()
	item.ID = s.nextItem
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

// UpdateQuantity implements inventory.ItemStore as a compare-and-swap.
func (s *Store) UpdateQuantity(_ context.Context, id int64, expected, next int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if it.Quantity != expected {
		return store.ErrConflict
	}
	it.Quantity = next
	it.UpdatedAt = s.now()
	s.items[id] = it
	return nil
}

// UpdateDetails implements inventory.ItemStore.
func (s *Store) UpdateDetails(_ context.Context, id int64, details inventory.ItemDetails) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return inventory.Item{}, store.ErrNotFound
	}
	if s.conflictsLocked(id, details.Name, details.Barcode) {
		return inventory.Item{}, store.ErrDuplicate
	}
	it = details.Apply(it)
	it.UpdatedAt = s.now()
	s.items[id] = cloneItem(it)
	return cloneItem(it), nil
}

// Delete implements inventory.ItemStore.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// ListAll implements inventory.ItemStore.
func (s *Store) ListAll(_ context.Context) ([]inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Append implements inventory.TransactionStore.
func (s *Store) Append(_ context.Context, tx inventory.Transaction) (inventory.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	tx.ID = s.nextTx
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now()
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

// Query implements inventory.TransactionStore.
func (s *Store) Query(_ context.Context, q inventory.TxQuery) ([]inventory.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Transaction, 0)
	for i := len(s.txs) - 1; i >= 0; i-- {
		tx := s.txs[i]
		if q.Type != "" && tx.Type != q.Type {
			continue
		}
		if !q.Since.IsZero() && tx.Timestamp.Before(q.Since) {
			continue
		}
		if q.ItemID != 0 && tx.ItemID != q.ItemID {
			continue
		}
		if q.ReceiptID != "" && (tx.ReceiptID == nil || *tx.ReceiptID != q.ReceiptID) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// DeleteForItem implements inventory.TransactionStore.
func (s *Store) DeleteForItem(_ context.Context, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.txs[:0]
	for _, tx := range s.txs {
		if tx.ItemID != itemID {
			kept = append(kept, tx)
		}
	}
	s.txs = kept
	return nil
}

func (s *Store) getSetting(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok
}

func (s *Store) setSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// Settings exposes the key-value part of the store as a settings.Store.
func (s *Store) Settings() *Settings {
	return &Settings{s: s}
}

// Settings is the settings.Store view of a memory Store.
type Settings struct {
	s *Store
}

// Get implements settings.Store.
func (v *Settings) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := v.s.getSetting(key)
	return value, ok, nil
}

// Set implements settings.Store.
func (v *Settings) Set(_ context.Context, key, value string) error {
	v.s.setSetting(key, value)
	return nil
}

func (s *Store) conflictsLocked(selfID int64, name string, barcode *string) bool {
	for id, it := range s.items {
		if id == selfID {
			continue
		}
		if it.Name == name {
			return true
		}
		if barcode != nil && it.Barcode != nil && *it.Barcode == *barcode {
			return true
		}
	}
	return false
}

func cloneItem(it inventory.Item) inventory.Item {
	if it.Barcode != nil {
		code := *it.Barcode
		it.Barcode = &code
	}
	return it
}
