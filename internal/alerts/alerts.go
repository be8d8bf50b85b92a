// Package alerts raises low-stock notifications off the sale path. The ledger
// enqueues a task after a sale leaves an item at or below its threshold and the
// worker process delivers it.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/obs"
)

// TaskLowStock is the asynq task type for low-stock alerts.
const TaskLowStock = "inventory:low_stock"

// DefaultUniqueTTL suppresses repeated alerts for the same item and quantity.
const DefaultUniqueTTL = time.Hour

var nopLogger = zerolog.Nop()

// LowStockPayload is the task body.
type LowStockPayload struct {
	ItemID       int64  `json:"item_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	MinThreshold int    `json:"min_threshold"`
}

// NewLowStockTask builds the task for item.
func NewLowStockTask(item inventory.Item) (*asynq.Task, error) {
	payload, err := json.Marshal(LowStockPayload{
		ItemID:       item.ID,
		Name:         item.Name,
		Quantity:     item.Quantity,
		MinThreshold: item.MinThreshold,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStock, payload), nil
}

// Enqueuer is the part of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier implements inventory.StockObserver by enqueueing low-stock tasks.
type Notifier struct {
	Client    Enqueuer
	Queue     string
	UniqueTTL time.Duration
	Logger    *zerolog.Logger
}

func (n *Notifier) logger() *zerolog.Logger {
	if n.Logger == nil {
		return &nopLogger
	}
	return n.Logger
}

// StockChanged enqueues an alert when a sale leaves item low on stock.
// Restocks and initial stock never alert.
func (n *Notifier) StockChanged(ctx context.Context, item inventory.Item, txType inventory.TxType) error {
	if n == nil || n.Client == nil || txType != inventory.TxSale || !item.LowStock() {
		return nil
	}
	task, err := NewLowStockTask(item)
	if err != nil {
		record("enqueue", "error")
		return fmt.Errorf("alerts: build task: %w", err)
	}
	ttl := n.UniqueTTL
	if ttl <= 0 {
		ttl = DefaultUniqueTTL
	}
	opts := []asynq.Option{
		asynq.Unique(ttl),
		asynq.TaskID("low_stock:" + strconv.FormatInt(item.ID, 10) + ":" + strconv.Itoa(item.Quantity)),
		asynq.MaxRetry(5),
	}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if _, err := n.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			record("enqueue", "duplicate")
			return nil
		}
		record("enqueue", "error")
		return fmt.Errorf("alerts: enqueue low stock for item %d: %w", item.ID, err)
	}
	record("enqueue", "ok")
	n.logger().Debug().Int64("item_id", item.ID).Int("quantity", item.Quantity).Msg("low_stock_enqueued")
	return nil
}

// Handler delivers low-stock tasks in the worker.
type Handler struct {
	Logger *zerolog.Logger
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskLowStock, h.ProcessTask)
}

// ProcessTask logs the alert. Malformed payloads are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p LowStockPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		record("deliver", "error")
		return fmt.Errorf("alerts: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := &nopLogger
	if h != nil && h.Logger != nil {
		logger = h.Logger
	}
	taskID, _ := asynq.GetTaskID(ctx)
	logger.Warn().
		Str("task_id", taskID).
		Int64("item_id", p.ItemID).
		Str("item_name", p.Name).
		Int("quantity", p.Quantity).
		Int("min_threshold", p.MinThreshold).
		Msg("low_stock_alert")
	record("deliver", "ok")
	return nil
}

func record(stage, result string) {
	if obs.LowStockAlertsTotal == nil {
		return
	}
	obs.LowStockAlertsTotal.WithLabelValues(stage, result).Inc()
}
