// internal/reconcile/reconciler.go
package reconcile

import (
	"math"

	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/snapshot"
)

// Action tells the gateway whether a series entry is new for the day or
// replaces the one already stored.
type Action string

const (
	// ActionInsert adds the first entry for the target date.
	ActionInsert Action = "insert"
	// ActionMerge overwrites the entry already stored for the target date.
	ActionMerge Action = "merge"
)

// History is the stored state of one product's three series, keyed by date.
// Only the entries needed for a reconcile must be present: the target date
// and, for sales, the latest date before it.
type History struct {
	Stock map[string]models.StockHistory
	Price map[string]models.PriceHistory
	Sales map[string]models.SalesHistory
}

// NewHistory returns an empty history, as for a product never seen before.
func NewHistory() History {
	return History{
		Stock: make(map[string]models.StockHistory),
		Price: make(map[string]models.PriceHistory),
		Sales: make(map[string]models.SalesHistory),
	}
}

// Result carries the entry to persist for each series on the target date.
type Result struct {
	ProductID string
	Date      string

	Stock       models.StockHistory // quantity with the day's accumulated deltas
	StockAction Action
	Price       models.PriceHistory // last price seen on the day
	PriceAction Action
	Sales       models.SalesHistory // lifetime counter and units sold since the prior day
	SalesAction Action
}

// Reconcile merges a snapshot into the product's history for date. It is
// pure: the caller decides when to apply and persist the result.
//
// Re-running the same snapshot for the same date yields the same entries,
// and no series ever gains a second entry for one date.
func Reconcile(h History, snap snapshot.Snapshot, date string) Result {
	res := Result{ProductID: snap.ProductID, Date: date}
	res.Stock, res.StockAction = reconcileStock(h, snap, date)
	res.Price, res.PriceAction = reconcilePrice(h, snap, date)
	res.Sales, res.SalesAction = reconcileSales(h, snap, date)
	return res
}

func reconcileStock(h History, snap snapshot.Snapshot, date string) (models.StockHistory, Action) {
	entry, ok := h.Stock[date]
	if !ok {
		return models.StockHistory{
			ProductID:     snap.ProductID,
			Date:          date,
			StockQuantity: snap.StockQuantity,
		}, ActionInsert
	}

	delta := snap.StockQuantity - entry.StockQuantity
	if delta > 0 {
		entry.StockIncreased = addSaturating(entry.StockIncreased, delta)
	} else if delta < 0 {
		entry.StockDecreased = addSaturating(entry.StockDecreased, -delta)
	}
	entry.StockQuantity = snap.StockQuantity
	return entry, ActionMerge
}

func reconcilePrice(h History, snap snapshot.Snapshot, date string) (models.PriceHistory, Action) {
	entry, ok := h.Price[date]
	action := ActionMerge
	if !ok {
		entry = models.PriceHistory{ProductID: snap.ProductID, Date: date}
		action = ActionInsert
	}
	entry.Price = snap.Price
	entry.OriginalPrice = snap.OriginalPrice
	entry.Promotion = snap.Promotion
	return entry, action
}

func reconcileSales(h History, snap snapshot.Snapshot, date string) (models.SalesHistory, Action) {
	if entry, ok := h.Sales[date]; ok {
		entry.SoldInDate = addSaturating(entry.SoldInDate, positiveDelta(snap.TotalSold, entry.TotalSold))
		entry.TotalSold = snap.TotalSold
		return entry, ActionMerge
	}

	entry := models.SalesHistory{
		ProductID: snap.ProductID,
		Date:      date,
		TotalSold: snap.TotalSold,
	}
	// First observation of a product attributes nothing to the day.
	if prior, ok := h.LatestSalesBefore(date); ok {
		entry.SoldInDate = positiveDelta(snap.TotalSold, prior.TotalSold)
	}
	return entry, ActionInsert
}

// LatestSalesBefore returns the sales entry with the greatest date strictly
// before date. Date keys are YYYY-MM-DD, so string order is calendar order.
func (h History) LatestSalesBefore(date string) (models.SalesHistory, bool) {
	var (
		best  models.SalesHistory
		found bool
	)
	for d, entry := range h.Sales {
		if d < date && (!found || d > best.Date) {
			best = entry
			best.Date = d
			found = true
		}
	}
	return best, found
}

// Apply stores the result's entries back into the history.
func (h *History) Apply(r Result) {
	if h.Stock == nil || h.Price == nil || h.Sales == nil {
		fresh := NewHistory()
		for k, v := range h.Stock {
			fresh.Stock[k] = v
		}
		for k, v := range h.Price {
			fresh.Price[k] = v
		}
		for k, v := range h.Sales {
			fresh.Sales[k] = v
		}
		*h = fresh
	}
	h.Stock[r.Date] = r.Stock
	h.Price[r.Date] = r.Price
	h.Sales[r.Date] = r.Sales
}

// CurrentState builds the product row for a snapshot observed on date.
func CurrentState(snap snapshot.Snapshot, category, date string) models.Product {
	return models.Product{
		ProductID:     snap.ProductID,
		Category:      category,
		Name:          snap.Name,
		Price:         snap.Price,
		OriginalPrice: snap.OriginalPrice,
		Promotion:     snap.Promotion,
		StockQuantity: snap.StockQuantity,
		TotalSold:     snap.TotalSold,
		Date:          date,
	}
}

func positiveDelta(current, previous int64) int64 {
	if current <= previous {
		return 0
	}
	return current - previous
}

func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
