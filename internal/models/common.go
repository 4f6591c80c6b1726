// internal/models/common.go
package models

import "time"

// DateLayout is the calendar-day key used by every history series.
const DateLayout = "2006-01-02"

// DateKey formats t as a calendar-day key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey validates a calendar-day key.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Enums
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// AllModels lists every persisted model, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Product{},
		&StockHistory{},
		&PriceHistory{},
		&SalesHistory{},
		&CrawlRun{},
	}
}
