// internal/models/product.go
package models

import "time"

// Product is the latest observed state of one sellable variant.
type Product struct {
	ProductID     string    `json:"product_id" gorm:"column:product_id;primaryKey;size:255"`
	Category      string    `json:"category" gorm:"size:255;index"`
	Name          string    `json:"name" gorm:"type:text"`
	Price         int64     `json:"price" gorm:"not null;default:0"`
	OriginalPrice int64     `json:"original_price" gorm:"not null;default:0"`
	Promotion     string    `json:"promotion" gorm:"type:text"`
	StockQuantity int64     `json:"stock_quantity" gorm:"not null;default:0"`
	TotalSold     int64     `json:"total_sold" gorm:"not null;default:0"`
	Date          string    `json:"date" gorm:"type:varchar(10);not null;index"` // last-seen calendar day
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

// InStock reports whether the last observation had any sellable stock.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// StaleCutoff is the earliest last-seen date a product may have on asOf and
// still not be stale after days.
func StaleCutoff(asOf time.Time, days int) string {
	return DateKey(asOf.AddDate(0, 0, -days))
}
