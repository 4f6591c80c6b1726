// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

// ProductService answers read queries over the relational store.
type ProductService struct {
	db             *gorm.DB
	location       *time.Location
	staleAfterDays int
	now            func() time.Time
}

type ProductSearchParams struct {
	utils.PaginationParams
	InStock *bool `json:"in_stock,omitempty"`
}

// HistoryRange bounds a history query by inclusive date keys; empty means open.
type HistoryRange struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

type CategoryStats struct {
	Category string `json:"category"`
	Products int64  `json:"products"`
	InStock  int64  `json:"in_stock"`
	LastSeen string `json:"last_seen"`
}

type TopSeller struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Sold      int64  `json:"sold"`
}

func NewProductService(db *gorm.DB, cfg *config.Config) *ProductService {
	loc, err := cfg.Catalog.Location()
	if err != nil {
		logrus.WithError(err).Warn("Invalid catalog time zone, using local time")
		loc = time.Local
	}
	return &ProductService{
		db:             db,
		location:       loc,
		staleAfterDays: cfg.StaleAfterDays,
		now:            time.Now,
	}
}

func (s *ProductService) today() time.Time {
	return s.now().In(s.location)
}

func (s *ProductService) SearchProducts(ctx context.Context, params ProductSearchParams) ([]models.Product, int64, error) {
	query := utils.ApplySearch(s.db.WithContext(ctx).Model(&models.Product{}), params.PaginationParams)

	if params.InStock != nil {
		if *params.InStock {
			query = query.Where("stock_quantity > 0")
		} else {
			query = query.Where("stock_quantity = 0")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"updated_at", "created_at", "name", "price", "stock_quantity", "total_sold", "date"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

// StaleProducts lists products whose last-seen date is more than days before
// today. days <= 0 uses the configured default.
func (s *ProductService) StaleProducts(ctx context.Context, days int, params utils.PaginationParams) ([]models.Product, int64, error) {
	if days <= 0 {
		days = s.staleAfterDays
	}
	cutoff := models.StaleCutoff(s.today(), days)

	query := utils.ApplySearch(s.db.WithContext(ctx).Model(&models.Product{}), params).
		Where("date < ?", cutoff)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count stale products: %w", err)
	}

	var products []models.Product
	if err := utils.ApplyPagination(query.Order("date ASC"), params).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch stale products: %w", err)
	}
	return products, total, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) StockHistory(ctx context.Context, productID string, r HistoryRange) ([]models.StockHistory, error) {
	var entries []models.StockHistory
	if err := s.historyQuery(ctx, productID, r).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stock history: %w", err)
	}
	return entries, nil
}

func (s *ProductService) PriceHistory(ctx context.Context, productID string, r HistoryRange) ([]models.PriceHistory, error) {
	var entries []models.PriceHistory
	if err := s.historyQuery(ctx, productID, r).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	return entries, nil
}

func (s *ProductService) SalesHistory(ctx context.Context, productID string, r HistoryRange) ([]models.SalesHistory, error) {
	var entries []models.SalesHistory
	if err := s.historyQuery(ctx, productID, r).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sales history: %w", err)
	}
	return entries, nil
}

// StockChanges derives day-over-day movement from the entries dated within
// the last days days, counting back from today.
func (s *ProductService) StockChanges(ctx context.Context, productID string, days int) ([]reconcile.DailyStockChange, error) {
	if days <= 0 {
		days = 7
	}
	from := models.DateKey(s.today().AddDate(0, 0, -days))

	var entries []models.StockHistory
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND date >= ?", productID, from).
		Order("date ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock history: %w", err)
	}
	return reconcile.StockChanges(entries), nil
}

func (s *ProductService) Categories(ctx context.Context) ([]CategoryStats, error) {
	var stats []CategoryStats
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select("category, COUNT(*) AS products, " +
			"SUM(CASE WHEN stock_quantity > 0 THEN 1 ELSE 0 END) AS in_stock, " +
			"MAX(date) AS last_seen").
		Group("category").
		Order("category ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return stats, nil
}

// TopSellers ranks products by units sold within [from, to].
func (s *ProductService) TopSellers(ctx context.Context, r HistoryRange, category string, limit int) ([]TopSeller, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Table("sales_history AS s").
		Select("s.product_id, p.name, p.category, SUM(s.sold_in_date) AS sold").
		Joins("JOIN product AS p ON p.product_id = s.product_id")
	if r.From != "" {
		query = query.Where("s.date >= ?", r.From)
	}
	if r.To != "" {
		query = query.Where("s.date <= ?", r.To)
	}
	if category != "" {
		query = query.Where("p.category = ?", category)
	}

	var sellers []TopSeller
	err := query.Group("s.product_id, p.name, p.category").
		Order("sold DESC, s.product_id ASC").
		Limit(limit).
		Scan(&sellers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank sellers: %w", err)
	}
	return sellers, nil
}

func (s *ProductService) RecentRuns(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var runs []models.CrawlRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch crawl runs: %w", err)
	}
	return runs, nil
}

func (s *ProductService) historyQuery(ctx context.Context, productID string, r HistoryRange) *gorm.DB {
	query := s.db.WithContext(ctx).Where("product_id = ?", productID)
	if r.From != "" {
		query = query.Where("date >= ?", r.From)
	}
	if r.To != "" {
		query = query.Where("date <= ?", r.To)
	}
	return query.Order("date ASC")
}
