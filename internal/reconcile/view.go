// internal/reconcile/view.go
package reconcile

import (
	"math"
	"sort"

	"github.com/javajoker/catalog-tracker/internal/models"
)

// DailyStockChange is the quantity-snapshot reading of a stock series: the
// stored quantity per day and its change from the previous stored day.
type DailyStockChange struct {
	Date           string   `json:"date"`
	StockQuantity  int64    `json:"stock_quantity"`
	Change         *int64   `json:"change"`
	ChangePercent  *float64 `json:"change_percent"`
	StockIncreased int64    `json:"stock_increased"`
	StockDecreased int64    `json:"stock_decreased"`
}

// StockChanges orders entries by date and derives the day-over-day change.
// The first day has no change; a change from zero stock has no percentage.
func StockChanges(entries []models.StockHistory) []DailyStockChange {
	sorted := make([]models.StockHistory, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	out := make([]DailyStockChange, 0, len(sorted))
	for i, e := range sorted {
		row := DailyStockChange{
			Date:           e.Date,
			StockQuantity:  e.StockQuantity,
			StockIncreased: e.StockIncreased,
			StockDecreased: e.StockDecreased,
		}
		if i > 0 {
			prev := sorted[i-1].StockQuantity
			change := e.StockQuantity - prev
			row.Change = &change
			if prev != 0 {
				pct := math.Round(float64(change)/float64(prev)*10000) / 100
				row.ChangePercent = &pct
			}
		}
		out = append(out, row)
	}
	return out
}
