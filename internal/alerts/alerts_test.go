package alerts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/alerts"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/store/memory"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestNotifierOnlyAlertsLowSales(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &alerts.Notifier{Client: q}
	ctx := context.Background()
	low := inventory.Item{ID: 7, Name: "Mug", Quantity: 2, MinThreshold: 5}
	plenty := inventory.Item{ID: 8, Name: "Bowl", Quantity: 20, MinThreshold: 5}

	require.NoError(t, n.StockChanged(ctx, plenty, inventory.TxSale))
	require.NoError(t, n.StockChanged(ctx, low, inventory.TxRestock))
	require.NoError(t, n.StockChanged(ctx, low, inventory.TxInitialStock))
	require.Empty(t, q.tasks)

	require.NoError(t, n.StockChanged(ctx, low, inventory.TxSale))
	require.Len(t, q.tasks, 1)
	require.Equal(t, alerts.TaskLowStock, q.tasks[0].Type())

	var p alerts.LowStockPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	require.Equal(t, alerts.LowStockPayload{ItemID: 7, Name: "Mug", Quantity: 2, MinThreshold: 5}, p)
}

func TestNotifierDuplicateIsNotAnError(t *testing.T) {
	n := &alerts.Notifier{Client: &fakeEnqueuer{err: asynq.ErrDuplicateTask}}
	item := inventory.Item{ID: 1, Quantity: 0, MinThreshold: 5}
	require.NoError(t, n.StockChanged(context.Background(), item, inventory.TxSale))

	n.Client = &fakeEnqueuer{err: errors.New("redis down")}
	require.Error(t, n.StockChanged(context.Background(), item, inventory.TxSale))
}

func TestLedgerSaleTriggersAlert(t *testing.T) {
	mem := memory.New()
	q := &fakeEnqueuer{}
	ledger := &inventory.Ledger{Items: mem, Txs: mem, Observer: &alerts.Notifier{Client: q}}
	ctx := context.Background()

	item, err := mem.Insert(ctx, inventory.Item{Name: "Mug", Quantity: 7, MinThreshold: 5, Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	_, err = ledger.AdjustStock(ctx, inventory.AdjustRequest{ItemID: item.ID, Delta: -1, Type: inventory.TxSale})
	require.NoError(t, err)
	require.Empty(t, q.tasks)

	adj, err := ledger.AdjustStock(ctx, inventory.AdjustRequest{ItemID: item.ID, Delta: -2, Type: inventory.TxSale})
	require.NoError(t, err)
	require.Equal(t, 4, adj.NewQuantity)
	require.Len(t, q.tasks, 1)
}

func TestNotifierFailureDoesNotFailSale(t *testing.T) {
	mem := memory.New()
	ledger := &inventory.Ledger{Items: mem, Txs: mem, Observer: &alerts.Notifier{Client: &fakeEnqueuer{err: errors.New("redis down")}}}
	ctx := context.Background()
	item, err := mem.Insert(ctx, inventory.Item{Name: "Mug", Quantity: 3, MinThreshold: 5, Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	adj, err := ledger.AdjustStock(ctx, inventory.AdjustRequest{ItemID: item.ID, Delta: -1, Type: inventory.TxSale})
	require.NoError(t, err)
	require.Equal(t, 2, adj.NewQuantity)
}

func TestHandlerProcessTask(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := &alerts.Handler{Logger: &logger}

	task, err := alerts.NewLowStockTask(inventory.Item{ID: 3, Name: "Socks", Quantity: 1, MinThreshold: 5})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Contains(t, buf.String(), `"message":"low_stock_alert"`)
	require.Contains(t, buf.String(), `"item_name":"Socks"`)

	err = h.ProcessTask(context.Background(), asynq.NewTask(alerts.TaskLowStock, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlerRegister(t *testing.T) {
	mux := asynq.NewServeMux()
	(&alerts.Handler{}).Register(mux)
	_, pattern := mux.Handler(asynq.NewTask(alerts.TaskLowStock, nil))
	require.Equal(t, alerts.TaskLowStock, pattern)
}
