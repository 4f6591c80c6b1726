// cmd/crawler/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/catalog"
	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/database"
	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

type options struct {
	slug       string
	categories string
	discover   bool
	shuffle    bool
	start      int
	end        int
	limit      int
	date       string
	from       string
	to         string
	check      string
	checkAll   bool
	issueToken string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.slug, "slug", "", "category slug to crawl")
	flag.StringVar(&o.categories, "categories", "", "file of category URLs (default CATALOG_CATEGORY_FILE)")
	flag.BoolVar(&o.discover, "discover", false, "discover categories from the storefront")
	flag.BoolVar(&o.shuffle, "shuffle", false, "crawl categories in random order")
	flag.IntVar(&o.start, "start", 1, "first page")
	flag.IntVar(&o.end, "end", 0, "last page (0 runs until an empty page)")
	flag.IntVar(&o.limit, "limit", 0, "page size (default CATALOG_PAGE_SIZE)")
	flag.StringVar(&o.date, "date", "", "target date YYYY-MM-DD (default today)")
	flag.StringVar(&o.from, "from", "", "backfill start date YYYY-MM-DD")
	flag.StringVar(&o.to, "to", "", "backfill end date YYYY-MM-DD")
	flag.StringVar(&o.check, "check", "", "check stock consistency of one product and exit")
	flag.BoolVar(&o.checkAll, "check-all", false, "check stock consistency of every product and exit")
	flag.StringVar(&o.issueToken, "issue-token", "", "print an admin API token for the given subject and exit")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := utils.SetupLogger(cfg.Log); err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	if opts.issueToken != "" {
		utils.SetJWTSecret(cfg.JWT.SecretKey)
		token, err := utils.GenerateJWT(opts.issueToken, "admin", cfg.JWT.TTL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, gateway := openStorage(ctx, cfg)
	if db != nil {
		defer database.Close(db)
	}
	defer gateway.Close(context.Background())

	if opts.check != "" || opts.checkAll {
		runChecks(ctx, services.NewConsistencyService(gateway), opts)
		return
	}

	if cfg.Catalog.APIURL == "" {
		logrus.Fatal("CATALOG_API_URL is required to crawl")
	}

	archive, err := services.NewArchiveService(cfg.Archive)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize archive")
	}
	publisher := services.NewEventPublisher(cfg.Kafka)
	defer publisher.Close()

	crawler := services.NewCrawlService(catalog.NewClient(cfg.Catalog), gateway, db, archive, publisher, cfg.Catalog)
	template := services.BatchRequest{
		StartPage: opts.start,
		EndPage:   opts.end,
		Limit:     opts.limit,
		Date:      opts.date,
	}

	var reports []*services.BatchReport
	switch {
	case opts.from != "" || opts.to != "":
		if opts.slug == "" || opts.from == "" || opts.to == "" {
			logrus.Fatal("-from and -to need a -slug")
		}
		template.Slug = opts.slug
		reports, err = crawler.Backfill(ctx, opts.from, opts.to, template)
	case opts.slug != "":
		template.Slug = opts.slug
		var report *services.BatchReport
		report, err = crawler.RunCategory(ctx, template)
		if report != nil {
			reports = append(reports, report)
		}
	default:
		slugs := resolveCategories(ctx, cfg.Catalog, opts)
		reports, err = crawler.RunCategories(ctx, slugs, template)
	}

	printReports(reports)
	if err != nil {
		logrus.WithError(err).Error("Crawl ended early")
	}
}

// openStorage returns the gateway for the configured store. The relational
// database is opened only for the sql store and also records crawl runs.
func openStorage(ctx context.Context, cfg *config.Config) (*gorm.DB, store.Gateway) {
	if cfg.Store.Driver == "mongo" {
		gw, err := store.NewMongoStore(ctx, cfg.Store)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		return nil, gw
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
	}
	if err := database.VerifySchema(db); err != nil {
		logrus.WithError(err).Fatal("Schema check failed")
	}
	return db, store.NewGormStore(db)
}

func resolveCategories(ctx context.Context, cfg config.CatalogConfig, opts options) []string {
	var (
		slugs []string
		err   error
	)
	if opts.discover {
		slugs, err = catalog.DiscoverCategories(ctx, cfg.StorefrontURL, cfg.CategorySelector, cfg.UserAgent)
	} else {
		path := opts.categories
		if path == "" {
			path = cfg.CategoryFile
		}
		slugs, err = catalog.LoadCategoryFile(path)
	}
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load categories")
	}
	if len(slugs) == 0 {
		logrus.Fatal("No categories to crawl")
	}

	if opts.shuffle {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		r.Shuffle(len(slugs), func(i, j int) { slugs[i], slugs[j] = slugs[j], slugs[i] })
	}
	logrus.WithField("categories", len(slugs)).Info("Categories loaded")
	return slugs
}

func runChecks(ctx context.Context, checker *services.ConsistencyService, opts options) {
	if opts.check != "" {
		report, err := checker.Check(ctx, opts.check)
		if err != nil {
			logrus.WithField("product_id", opts.check).WithError(err).Fatal("Consistency check failed")
		}
		fmt.Printf("%s: consistent=%t stock=%d history=%d (%s)\n",
			report.ProductID, report.Consistent, report.StockQuantity, report.HistoryQuantity, report.HistoryDate)
		return
	}

	summary, err := checker.CheckAll(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Consistency audit failed")
	}
	for _, r := range summary.Inconsistent {
		fmt.Printf("%s: stock=%d history=%d (%s)\n", r.ProductID, r.StockQuantity, r.HistoryQuantity, r.HistoryDate)
	}
	fmt.Printf("checked=%d consistent=%d inconsistent=%d errored=%d\n",
		summary.Checked, summary.Consistent, len(summary.Inconsistent), summary.Errored)
}

func printReports(reports []*services.BatchReport) {
	for _, r := range reports {
		fmt.Fprintf(os.Stdout, "%s %s: pages=%d failed_pages=%d processed=%d succeeded=%d errored=%d status=%s\n",
			r.Category, r.TargetDate, r.PagesFetched, r.PagesFailed, r.Processed, r.Succeeded, r.Errored, r.Status)
	}
}
