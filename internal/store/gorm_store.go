// internal/store/gorm_store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/catalog-tracker/internal/database"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
)

// GormStore keeps one row per product and one row per (product, date) in
// each history table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var naturalKey = []clause.Column{{Name: "product_id"}, {Name: "date"}}

func (s *GormStore) LoadHistory(ctx context.Context, productID, date string) (reconcile.History, error) {
	h := reconcile.NewHistory()
	db := s.db.WithContext(ctx)

	var stock []models.StockHistory
	if err := db.Where("product_id = ? AND date = ?", productID, date).Find(&stock).Error; err != nil {
		return h, fmt.Errorf("load stock history: %w", err)
	}
	for _, e := range stock {
		h.Stock[e.Date] = e
	}

	var price []models.PriceHistory
	if err := db.Where("product_id = ? AND date = ?", productID, date).Find(&price).Error; err != nil {
		return h, fmt.Errorf("load price history: %w", err)
	}
	for _, e := range price {
		h.Price[e.Date] = e
	}

	// The target day plus the latest day before it.
	var sales []models.SalesHistory
	if err := db.Where("product_id = ? AND date <= ?", productID, date).
		Order("date DESC").Limit(2).Find(&sales).Error; err != nil {
		return h, fmt.Errorf("load sales history: %w", err)
	}
	for _, e := range sales {
		h.Sales[e.Date] = e
	}

	return h, nil
}

func (s *GormStore) Save(ctx context.Context, product models.Product, res reconcile.Result) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"category", "name", "price", "original_price", "promotion",
				"stock_quantity", "total_sold", "date", "updated_at",
			}),
		}).Create(&product).Error; err != nil {
			return fmt.Errorf("upsert product %s: %w", product.ProductID, err)
		}

		stock := res.Stock
		stock.ID = 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   naturalKey,
			DoUpdates: clause.AssignmentColumns([]string{"stock_quantity", "stock_increased", "stock_decreased", "updated_at"}),
		}).Create(&stock).Error; err != nil {
			return fmt.Errorf("upsert stock history %s@%s: %w", stock.ProductID, stock.Date, err)
		}

		price := res.Price
		price.ID = 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   naturalKey,
			DoUpdates: clause.AssignmentColumns([]string{"price", "original_price", "promotion", "updated_at"}),
		}).Create(&price).Error; err != nil {
			return fmt.Errorf("upsert price history %s@%s: %w", price.ProductID, price.Date, err)
		}

		sales := res.Sales
		sales.ID = 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   naturalKey,
			DoUpdates: clause.AssignmentColumns([]string{"total_sold", "sold_in_date", "updated_at"}),
		}).Create(&sales).Error; err != nil {
			return fmt.Errorf("upsert sales history %s@%s: %w", sales.ProductID, sales.Date, err)
		}

		return nil
	})
}

func (s *GormStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *GormStore) LatestStock(ctx context.Context, productID string) (*models.StockHistory, error) {
	var entry models.StockHistory
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("date DESC").
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &entry, nil
}

func (s *GormStore) ProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Order("product_id").Pluck("product_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	return ids, nil
}

// Close is a no-op: the connection is owned by the caller.
func (s *GormStore) Close(ctx context.Context) error {
	return nil
}
