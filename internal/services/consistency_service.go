// internal/services/consistency_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/catalog-tracker/internal/metrics"
	"github.com/javajoker/catalog-tracker/internal/store"
)

// ConsistencyReport compares a product's current stock with its most recent
// stock history entry.
type ConsistencyReport struct {
	ProductID       string `json:"product_id"`
	StockQuantity   int64  `json:"stock_quantity"`
	HistoryQuantity int64  `json:"history_quantity"`
	HistoryDate     string `json:"history_date,omitempty"`
	HasHistory      bool   `json:"has_history"`
	Consistent      bool   `json:"consistent"`
}

type AuditSummary struct {
	Checked      int                  `json:"checked"`
	Consistent   int                  `json:"consistent"`
	Errored      int                  `json:"errored"`
	Inconsistent []*ConsistencyReport `json:"inconsistent"`
}

// ConsistencyService is read-only; it reports drift and never repairs it.
type ConsistencyService struct {
	gateway store.Gateway
}

func NewConsistencyService(gateway store.Gateway) *ConsistencyService {
	return &ConsistencyService{gateway: gateway}
}

// Check returns store.ErrNotFound when the product does not exist. A product
// without any stock history is reported as consistent.
func (s *ConsistencyService) Check(ctx context.Context, productID string) (*ConsistencyReport, error) {
	product, err := s.gateway.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		ProductID:     product.ProductID,
		StockQuantity: product.StockQuantity,
		Consistent:    true,
	}

	latest, err := s.gateway.LatestStock(ctx, productID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.ConsistencyChecks.WithLabelValues("no_history").Inc()
		return report, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load stock history: %w", err)
	}

	report.HasHistory = true
	report.HistoryDate = latest.Date
	report.HistoryQuantity = latest.StockQuantity
	report.Consistent = latest.StockQuantity == product.StockQuantity

	if report.Consistent {
		metrics.ConsistencyChecks.WithLabelValues("consistent").Inc()
	} else {
		metrics.ConsistencyChecks.WithLabelValues("inconsistent").Inc()
		logrus.WithFields(logrus.Fields{
			"product_id":       productID,
			"stock_quantity":   report.StockQuantity,
			"history_quantity": report.HistoryQuantity,
			"history_date":     report.HistoryDate,
		}).Warn("Stock history does not match current state")
	}
	return report, nil
}

// CheckAll audits every stored product. Products that cannot be checked are
// counted and skipped.
func (s *ConsistencyService) CheckAll(ctx context.Context) (*AuditSummary, error) {
	ids, err := s.gateway.ProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	summary := &AuditSummary{Inconsistent: []*ConsistencyReport{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		report, err := s.Check(ctx, id)
		summary.Checked++
		if err != nil {
			summary.Errored++
			logrus.WithField("product_id", id).WithError(err).Error("Consistency check failed")
			continue
		}
		if report.Consistent {
			summary.Consistent++
		} else {
			summary.Inconsistent = append(summary.Inconsistent, report)
		}
	}
	return summary, nil
}
