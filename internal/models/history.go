// internal/models/history.go
package models

import "time"

// StockHistory holds one day of stock for a product. Increased and Decreased
// accumulate the intra-day movements observed between runs on that day.
type StockHistory struct {
	ID             uint      `json:"-" gorm:"primaryKey"`
	ProductID      string    `json:"product_id" gorm:"size:255;not null;uniqueIndex:idx_stock_history_product_date,priority:1"`
	Date           string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_stock_history_product_date,priority:2"`
	StockQuantity  int64     `json:"stock_quantity" gorm:"not null;default:0"`
	StockIncreased int64     `json:"stock_increased" gorm:"not null;default:0"`
	StockDecreased int64     `json:"stock_decreased" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (StockHistory) TableName() string {
	return "stock_history"
}

type PriceHistory struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	ProductID     string    `json:"product_id" gorm:"size:255;not null;uniqueIndex:idx_price_history_product_date,priority:1"`
	Date          string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_price_history_product_date,priority:2"`
	Price         int64     `json:"price" gorm:"not null;default:0"`
	OriginalPrice int64     `json:"original_price" gorm:"not null;default:0"`
	Promotion     string    `json:"promotion" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}

// SalesHistory stores the lifetime counter seen on a day and the sales
// attributed to that day.
type SalesHistory struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	ProductID  string    `json:"product_id" gorm:"size:255;not null;uniqueIndex:idx_sales_history_product_date,priority:1"`
	Date       string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_sales_history_product_date,priority:2"`
	TotalSold  int64     `json:"total_sold" gorm:"not null;default:0"`
	SoldInDate int64     `json:"sold_in_date" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (SalesHistory) TableName() string {
	return "sales_history"
}
