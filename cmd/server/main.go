// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/catalog-tracker/internal/catalog"
	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/database"
	"github.com/javajoker/catalog-tracker/internal/router"
	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if err := utils.SetupLogger(cfg.Log); err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
	}
	if err := database.VerifySchema(db); err != nil {
		logrus.WithError(err).Fatal("Schema check failed")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	deps := router.Dependencies{RunCtx: runCtx}
	if cfg.Catalog.APIURL != "" {
		archive, err := services.NewArchiveService(cfg.Archive)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize archive")
		}
		publisher := services.NewEventPublisher(cfg.Kafka)
		defer publisher.Close()

		gateway := store.NewGormStore(db)
		deps.Gateway = gateway
		deps.Crawl = services.NewCrawlService(catalog.NewClient(cfg.Catalog), gateway, db, archive, publisher, cfg.Catalog)
	} else {
		logrus.Warn("CATALOG_API_URL not set, admin crawl endpoint disabled")
	}

	r := router.Initialize(db, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	cancelRuns()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
