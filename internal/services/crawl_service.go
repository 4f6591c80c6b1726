// internal/services/crawl_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/catalog"
	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/metrics"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
	"github.com/javajoker/catalog-tracker/internal/snapshot"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

var ErrCrawlInProgress = errors.New("a crawl is already running")

// An unbounded run gives up after this many failed pages in a row.
const maxConsecutivePageFailures = 3

type PageFetcher interface {
	FetchPage(ctx context.Context, q catalog.PageQuery) (*catalog.PageResult, error)
}

type BatchRequest struct {
	Slug      string `json:"slug" validate:"required,max=255,slug"`
	StartPage int    `json:"start_page" validate:"min=1"`
	EndPage   int    `json:"end_page" validate:"omitempty,gtefield=StartPage"`
	Limit     int    `json:"limit" validate:"min=1,max=500"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type BatchReport struct {
	RunID        uuid.UUID        `json:"run_id"`
	Category     string           `json:"category"`
	TargetDate   string           `json:"target_date"`
	Status       models.RunStatus `json:"status"`
	PagesFetched int              `json:"pages_fetched"`
	PagesFailed  int              `json:"pages_failed"`
	Processed    int              `json:"processed"`
	Succeeded    int              `json:"succeeded"`
	Errored      int              `json:"errored"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// CrawlService drives batches: it pages through a category, turns every
// variant into a snapshot, reconciles it and saves it. Failures of a page or
// an item are counted and never stop the batch.
type CrawlService struct {
	fetcher   PageFetcher
	gateway   store.Gateway
	db        *gorm.DB
	archive   *ArchiveService
	publisher EventPublisher
	cfg       config.CatalogConfig
	location  *time.Location
	running   atomic.Bool
	now       func() time.Time
}

// NewCrawlService wires the driver. db records crawl runs and may be nil;
// archive may be nil; a nil publisher publishes nothing.
func NewCrawlService(fetcher PageFetcher, gateway store.Gateway, db *gorm.DB, archive *ArchiveService, publisher EventPublisher, cfg config.CatalogConfig) *CrawlService {
	loc, err := cfg.Location()
	if err != nil {
		logrus.WithError(err).Warn("Invalid catalog time zone, using local time")
		loc = time.Local
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &CrawlService{
		fetcher:   fetcher,
		gateway:   gateway,
		db:        db,
		archive:   archive,
		publisher: publisher,
		cfg:       cfg,
		location:  loc,
		now:       time.Now,
	}
}

func (s *CrawlService) IsRunning() bool {
	return s.running.Load()
}

// Today is the calendar-day key for the current time in the catalog zone.
func (s *CrawlService) Today() string {
	return models.DateKey(s.now().In(s.location))
}

// Prepare fills defaults and validates a request.
func (s *CrawlService) Prepare(req BatchRequest) (BatchRequest, error) {
	if req.StartPage == 0 {
		req.StartPage = 1
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.PageSize
	}
	if req.Date == "" {
		req.Date = s.Today()
	}
	if err := utils.ValidateStruct(req); err != nil {
		return req, fmt.Errorf("validation failed: %w", err)
	}
	return req, nil
}

// RunCategory runs one batch for one category.
func (s *CrawlService) RunCategory(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCrawlInProgress
	}
	defer s.running.Store(false)

	return s.runCategory(ctx, req)
}

// Start validates req and runs it in the background. It returns once the run
// has been claimed, or with ErrCrawlInProgress when another run holds it.
func (s *CrawlService) Start(ctx context.Context, req BatchRequest) (BatchRequest, error) {
	req, err := s.Prepare(req)
	if err != nil {
		return req, err
	}
	if !s.running.CompareAndSwap(false, true) {
		return req, ErrCrawlInProgress
	}

	go func() {
		defer s.running.Store(false)
		if _, err := s.runCategory(ctx, req); err != nil {
			logrus.WithField("category", req.Slug).WithError(err).Error("Background crawl failed")
		}
	}()
	return req, nil
}

// RunCategories runs the template request once per slug, pausing between
// categories. A category that cannot start is logged and skipped.
func (s *CrawlService) RunCategories(ctx context.Context, slugs []string, template BatchRequest) ([]*BatchReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCrawlInProgress
	}
	defer s.running.Store(false)

	var reports []*BatchReport
	for i, slug := range slugs {
		if i > 0 {
			if err := sleepContext(ctx, s.cfg.CategoryInterval); err != nil {
				return reports, err
			}
		}

		req := template
		req.Slug = slug
		report, err := s.runCategory(ctx, req)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			logrus.WithField("category", slug).WithError(err).Error("Category run failed")
		}
	}
	return reports, nil
}

// Backfill re-runs a category for every day in [from, to], recording the
// upstream state under each date.
func (s *CrawlService) Backfill(ctx context.Context, from, to string, template BatchRequest) ([]*BatchReport, error) {
	start, err := models.ParseDateKey(from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	end, err := models.ParseDateKey(to)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("to date %s is before from date %s", to, from)
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCrawlInProgress
	}
	defer s.running.Store(false)

	var reports []*BatchReport
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		req := template
		req.Date = models.DateKey(d)
		report, err := s.runCategory(ctx, req)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (s *CrawlService) runCategory(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	req, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		RunID:      uuid.New(),
		Category:   req.Slug,
		TargetDate: req.Date,
		Status:     models.RunStatusRunning,
		StartedAt:  s.now(),
	}
	s.recordStart(ctx, report, req)

	log := logrus.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"category": req.Slug,
		"date":     req.Date,
	})
	log.Info("Crawl started")

	limiter := rate.NewLimiter(rate.Every(s.cfg.PageInterval), 1)
	consecutiveFailures := 0

	for page := req.StartPage; req.EndPage == 0 || page <= req.EndPage; page++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		res, err := s.fetcher.FetchPage(ctx, catalog.PageQuery{Slug: req.Slug, Page: page, Limit: req.Limit})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			report.PagesFailed++
			consecutiveFailures++
			metrics.CatalogPages.WithLabelValues(req.Slug, "failed").Inc()
			log.WithField("page", page).WithError(err).Error("Skipping page")

			if req.EndPage == 0 && consecutiveFailures >= maxConsecutivePageFailures {
				log.WithField("failures", consecutiveFailures).Warn("Too many failed pages in a row, stopping")
				break
			}
			continue
		}
		consecutiveFailures = 0

		if res.Page.Size() == 0 {
			metrics.CatalogPages.WithLabelValues(req.Slug, "empty").Inc()
			log.WithField("page", page).Info("No data on page, stopping")
			break
		}

		report.PagesFetched++
		metrics.CatalogPages.WithLabelValues(req.Slug, "fetched").Inc()

		if location, err := s.archive.StorePage(ctx, req.Slug, req.Date, page, res.Raw); err != nil {
			log.WithField("page", page).WithError(err).Warn("Failed to archive page")
		} else if location != "" {
			log.WithFields(logrus.Fields{"page": page, "location": location}).Debug("Page archived")
		}

		s.processPage(ctx, report, req, res.Page)

		total := snapshot.NormalizeInt(res.Page.Total)
		if total > 0 && int64(page)*int64(req.Limit) >= total {
			break
		}
	}

	report.FinishedAt = s.now()
	report.Status = models.RunStatusCompleted
	if ctx.Err() != nil {
		report.Status = models.RunStatusCancelled
	}
	s.recordFinish(ctx, report)

	metrics.RunDuration.WithLabelValues(string(report.Status)).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	log.WithFields(logrus.Fields{
		"pages_fetched": report.PagesFetched,
		"pages_failed":  report.PagesFailed,
		"processed":     report.Processed,
		"succeeded":     report.Succeeded,
		"errored":       report.Errored,
		"status":        report.Status,
	}).Info("Crawl finished")

	if report.Status == models.RunStatusCancelled {
		return report, ctx.Err()
	}
	return report, nil
}

func (s *CrawlService) processPage(ctx context.Context, report *BatchReport, req BatchRequest, page *catalog.Page) {
	for _, err := range page.Rejected {
		report.Processed++
		report.Errored++
		metrics.Variants.WithLabelValues("decode_error").Inc()
		logrus.WithField("run_id", report.RunID).WithError(err).Warn("Skipping malformed product")
	}

	for _, product := range page.Data {
		for _, variant := range product.Variants {
			if ctx.Err() != nil {
				return
			}
			report.Processed++

			snap, err := snapshot.Extract(product, variant)
			if err != nil {
				report.Errored++
				metrics.Variants.WithLabelValues("extract_error").Inc()
				logrus.WithField("run_id", report.RunID).WithError(err).Warn("Skipping variant")
				continue
			}

			res, err := s.SaveSnapshot(ctx, req.Slug, req.Date, snap)
			if err != nil {
				report.Errored++
				metrics.Variants.WithLabelValues("store_error").Inc()
				logrus.WithFields(logrus.Fields{
					"run_id":     report.RunID,
					"product_id": snap.ProductID,
				}).WithError(err).Error("Failed to save product")
				continue
			}

			report.Succeeded++
			metrics.Variants.WithLabelValues("succeeded").Inc()

			event := NewProductReconciledEvent(report.RunID.String(), req.Slug, res)
			if err := s.publisher.Publish(ctx, event); err != nil {
				logrus.WithField("product_id", snap.ProductID).WithError(err).Warn("Failed to publish event")
			}
		}
	}
}

// SaveSnapshot reconciles one snapshot against stored history and persists
// the product and its three series for date.
func (s *CrawlService) SaveSnapshot(ctx context.Context, category, date string, snap snapshot.Snapshot) (reconcile.Result, error) {
	history, err := s.gateway.LoadHistory(ctx, snap.ProductID, date)
	if err != nil {
		return reconcile.Result{}, err
	}

	res := reconcile.Reconcile(history, snap, date)
	if err := s.gateway.Save(ctx, reconcile.CurrentState(snap, category, date), res); err != nil {
		return reconcile.Result{}, err
	}

	metrics.ReconcileActions.WithLabelValues("stock", string(res.StockAction)).Inc()
	metrics.ReconcileActions.WithLabelValues("price", string(res.PriceAction)).Inc()
	metrics.ReconcileActions.WithLabelValues("sales", string(res.SalesAction)).Inc()
	return res, nil
}

func (s *CrawlService) recordStart(ctx context.Context, report *BatchReport, req BatchRequest) {
	if s.db == nil {
		return
	}
	run := &models.CrawlRun{
		ID:         report.RunID,
		Category:   req.Slug,
		TargetDate: req.Date,
		StartPage:  req.StartPage,
		EndPage:    req.EndPage,
		PageSize:   req.Limit,
		Status:     models.RunStatusRunning,
		StartedAt:  report.StartedAt,
	}
	// Run rows are written even when ctx is already cancelled.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(run).Error; err != nil {
		logrus.WithField("run_id", report.RunID).WithError(err).Warn("Failed to record crawl run")
	}
}

func (s *CrawlService) recordFinish(ctx context.Context, report *BatchReport) {
	if s.db == nil {
		return
	}
	finished := report.FinishedAt
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.CrawlRun{}).Where("id = ?", report.RunID).Updates(map[string]interface{}{
		"status":        report.Status,
		"pages_fetched": report.PagesFetched,
		"pages_failed":  report.PagesFailed,
		"processed":     report.Processed,
		"succeeded":     report.Succeeded,
		"errored":       report.Errored,
		"finished_at":   &finished,
	}).Error
	if err != nil {
		logrus.WithField("run_id", report.RunID).WithError(err).Warn("Failed to update crawl run")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
