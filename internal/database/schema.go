// internal/database/schema.go
package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/models"
)

// ErrSchemaDrift means the live schema cannot hold the history model. It is
// never repaired automatically.
var ErrSchemaDrift = errors.New("database schema drift")

type schemaRequirement struct {
	model   interface{}
	table   string
	columns []string
	unique  string
}

var requiredSchema = []schemaRequirement{
	{
		model:   &models.Product{},
		table:   "product",
		columns: []string{"product_id", "category", "name", "price", "original_price", "promotion", "stock_quantity", "total_sold", "date"},
	},
	{
		model:   &models.StockHistory{},
		table:   "stock_history",
		columns: []string{"product_id", "date", "stock_quantity", "stock_increased", "stock_decreased"},
		unique:  "idx_stock_history_product_date",
	},
	{
		model:   &models.PriceHistory{},
		table:   "price_history",
		columns: []string{"product_id", "date", "price", "original_price"},
		unique:  "idx_price_history_product_date",
	},
	{
		model:   &models.SalesHistory{},
		table:   "sales_history",
		columns: []string{"product_id", "date", "total_sold", "sold_in_date"},
		unique:  "idx_sales_history_product_date",
	},
	{
		model:   &models.CrawlRun{},
		table:   "crawl_run",
		columns: []string{"id", "category", "target_date", "status"},
	},
}

// VerifySchema checks every table, column and (product_id, date) unique
// index the gateway relies on. All problems are reported together.
func VerifySchema(db *gorm.DB) error {
	m := db.Migrator()
	var problems []string

	for _, req := range requiredSchema {
		if !m.HasTable(req.model) {
			problems = append(problems, fmt.Sprintf("missing table %s", req.table))
			continue
		}
		for _, col := range req.columns {
			if !m.HasColumn(req.model, col) {
				problems = append(problems, fmt.Sprintf("missing column %s.%s", req.table, col))
			}
		}
		if req.unique != "" && !m.HasIndex(req.model, req.unique) {
			problems = append(problems, fmt.Sprintf("missing unique index %s on %s(product_id, date)", req.unique, req.table))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaDrift, strings.Join(problems, "; "))
	}
	return nil
}
