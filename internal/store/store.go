// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
)

var ErrNotFound = errors.New("store: not found")

// Gateway persists product state and the three daily series. Save must be
// atomic per product and idempotent on (product_id, date).
type Gateway interface {
	LoadHistory(ctx context.Context, productID, date string) (reconcile.History, error)
	Save(ctx context.Context, product models.Product, res reconcile.Result) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	LatestStock(ctx context.Context, productID string) (*models.StockHistory, error)
	ProductIDs(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}
