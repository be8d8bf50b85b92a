package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period selects the window of a sales report.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Window returns how far back the period reaches.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 3650 * 24 * time.Hour
	}
}

// ParsePeriod maps free-form input onto a Period, defaulting to a week.
func ParsePeriod(v string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(v))) {
	case PeriodMonth:
		return PeriodMonth
	case PeriodAll:
		return PeriodAll
	default:
		return PeriodWeek
	}
}

// TopSeller aggregates sales of one item.
type TopSeller struct {
	ItemName  string          `json:"itemName"`
	TotalSold int             `json:"totalSold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// TopSelling ranks items by units sold within the period. Revenue is valued at
// the item's current list price.
func (s *Service) TopSelling(ctx context.Context, period Period, limit int) ([]TopSeller, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	sales, err := s.Txs.Query(ctx, TxQuery{
		Type:  TxSale,
		Since: s.Ledger.now().Add(-period.Window()),
	})
	if err != nil {
		return nil, fromStore(err, "query sales")
	}
	if len(sales) == 0 {
		return []TopSeller{}, nil
	}
	items, err := s.Items.ListAll(ctx)
	if err != nil {
		return nil, fromStore(err, "list items")
	}
	prices := make(map[int64]decimal.Decimal, len(items))
	for _, it := range items {
		prices[it.ID] = it.Price
	}

	byName := make(map[string]*TopSeller)
	for _, tx := range sales {
		row, ok := byName[tx.ItemName]
		if !ok {
			row = &TopSeller{ItemName: tx.ItemName, Revenue: decimal.Zero}
			byName[tx.ItemName] = row
		}
		row.TotalSold += tx.Quantity
		row.Revenue = row.Revenue.Add(prices[tx.ItemID].Mul(decimal.NewFromInt(int64(tx.Quantity))))
	}

	out := make([]TopSeller, 0, len(byName))
	for _, row := range byName {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		return out[i].ItemName < out[j].ItemName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
