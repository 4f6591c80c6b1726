// internal/models/crawl_run.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CrawlRun records the outcome of one batch over one category and date.
type CrawlRun struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Category     string     `json:"category" gorm:"size:255;index"`
	TargetDate   string     `json:"target_date" gorm:"type:varchar(10);index"`
	StartPage    int        `json:"start_page"`
	EndPage      int        `json:"end_page"`
	PageSize     int        `json:"page_size"`
	Status       RunStatus  `json:"status" gorm:"type:varchar(20);index"`
	PagesFetched int        `json:"pages_fetched"`
	PagesFailed  int        `json:"pages_failed"`
	Processed    int        `json:"processed"`
	Succeeded    int        `json:"succeeded"`
	Errored      int        `json:"errored"`
	Error        string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (CrawlRun) TableName() string {
	return "crawl_run"
}

func (r *CrawlRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
