// internal/store/gorm_store_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/database"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
	"github.com/javajoker/catalog-tracker/internal/snapshot"
)

func openStoreDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db := openAt(t, path)
	require.NoError(t, database.RunMigrations(db))
	return db, path
}

func openAt(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := database.Initialize(config.DatabaseConfig{Driver: "sqlite", SQLitePath: path, LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func observe(t *testing.T, gw Gateway, s snapshot.Snapshot, date string) reconcile.Result {
	t.Helper()
	ctx := context.Background()
	h, err := gw.LoadHistory(ctx, s.ProductID, date)
	require.NoError(t, err)
	res := reconcile.Reconcile(h, s, date)
	require.NoError(t, gw.Save(ctx, reconcile.CurrentState(s, "sua-tuoi", date), res))
	return res
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestGormStoreSameDayUpsert(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)

	observe(t, gw, snapshot.Snapshot{ProductID: "P1", StockQuantity: 10, TotalSold: 100, Price: 5000}, "2025-05-01")
	res := observe(t, gw, snapshot.Snapshot{ProductID: "P1", StockQuantity: 7, TotalSold: 103, Price: 4800}, "2025-05-01")

	assert.Equal(t, int64(3), res.Stock.StockDecreased)
	assert.Equal(t, int64(3), res.Sales.SoldInDate)

	assert.Equal(t, int64(1), countRows(t, db, &models.Product{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.StockHistory{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.PriceHistory{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.SalesHistory{}))

	var stock models.StockHistory
	require.NoError(t, db.First(&stock, "product_id = ? AND date = ?", "P1", "2025-05-01").Error)
	assert.Equal(t, int64(7), stock.StockQuantity)
	assert.Equal(t, int64(3), stock.StockDecreased)

	var price models.PriceHistory
	require.NoError(t, db.First(&price, "product_id = ?", "P1").Error)
	assert.Equal(t, int64(4800), price.Price)
}

func TestGormStoreNewDayAppends(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)
	ctx := context.Background()

	observe(t, gw, snapshot.Snapshot{ProductID: "P1", StockQuantity: 12, TotalSold: 103}, "2025-05-01")
	res := observe(t, gw, snapshot.Snapshot{ProductID: "P1", StockQuantity: 20, TotalSold: 110}, "2025-05-02")

	assert.Equal(t, int64(7), res.Sales.SoldInDate)
	assert.Equal(t, int64(2), countRows(t, db, &models.StockHistory{}))
	assert.Equal(t, int64(2), countRows(t, db, &models.SalesHistory{}))

	product, err := gw.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-02", product.Date)
	assert.Equal(t, int64(20), product.StockQuantity)

	latest, err := gw.LatestStock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-02", latest.Date)
}

func TestGormStoreRerunAfterRestartIsIdempotent(t *testing.T) {
	db, path := openStoreDB(t)
	gw := NewGormStore(db)

	first := observe(t, gw, snapshot.Snapshot{ProductID: "P1", StockQuantity: 5, TotalSold: 40}, "2025-05-01")
	database.Close(db)

	reopened := NewGormStore(openAt(t, path))
	second := observe(t, reopened, snapshot.Snapshot{ProductID: "P1", StockQuantity: 5, TotalSold: 40}, "2025-05-01")

	assert.Equal(t, first.Stock.StockQuantity, second.Stock.StockQuantity)
	assert.Equal(t, first.Stock.StockIncreased, second.Stock.StockIncreased)
	assert.Equal(t, first.Stock.StockDecreased, second.Stock.StockDecreased)
	assert.Equal(t, first.Sales.SoldInDate, second.Sales.SoldInDate)
	assert.Equal(t, reconcile.ActionMerge, second.StockAction)
	assert.Equal(t, int64(1), countRows(t, reopened.db, &models.StockHistory{}))
}

func TestGormStoreLoadHistoryBackfill(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)

	observe(t, gw, snapshot.Snapshot{ProductID: "P1", TotalSold: 100}, "2025-05-01")
	observe(t, gw, snapshot.Snapshot{ProductID: "P1", TotalSold: 130}, "2025-05-05")

	h, err := gw.LoadHistory(context.Background(), "P1", "2025-05-03")
	require.NoError(t, err)
	assert.Empty(t, h.Stock)
	require.Len(t, h.Sales, 1)
	prior, ok := h.LatestSalesBefore("2025-05-03")
	require.True(t, ok)
	assert.Equal(t, int64(100), prior.TotalSold)

	res := observe(t, gw, snapshot.Snapshot{ProductID: "P1", TotalSold: 115}, "2025-05-03")
	assert.Equal(t, int64(15), res.Sales.SoldInDate)
}

func TestGormStoreNotFound(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)
	ctx := context.Background()

	_, err := gw.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = gw.LatestStock(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStoreProductIDs(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)

	observe(t, gw, snapshot.Snapshot{ProductID: "B"}, "2025-05-01")
	observe(t, gw, snapshot.Snapshot{ProductID: "A"}, "2025-05-01")

	ids, err := gw.ProductIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)
}

func TestGormStoreSaveRollsBackOnSeriesFailure(t *testing.T) {
	db, _ := openStoreDB(t)
	gw := NewGormStore(db)
	require.NoError(t, db.Migrator().DropTable(&models.SalesHistory{}))

	s := snapshot.Snapshot{ProductID: "P1", StockQuantity: 10, TotalSold: 100, Price: 5000}
	res := reconcile.Reconcile(reconcile.NewHistory(), s, "2025-05-01")
	err := gw.Save(context.Background(), reconcile.CurrentState(s, "sua-tuoi", "2025-05-01"), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert sales history P1@2025-05-01")

	assert.Zero(t, countRows(t, db, &models.Product{}))
	assert.Zero(t, countRows(t, db, &models.StockHistory{}))
	assert.Zero(t, countRows(t, db, &models.PriceHistory{}))
}
