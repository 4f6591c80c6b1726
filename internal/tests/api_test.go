// internal/tests/api_test.go
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/catalog"
	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/database"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/router"
	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/snapshot"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

// blockingFetcher holds every page request until released.
type blockingFetcher struct {
	release chan struct{}
}

func (f *blockingFetcher) FetchPage(ctx context.Context, q catalog.PageQuery) (*catalog.PageResult, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &catalog.PageResult{Page: &catalog.Page{Data: []catalog.RawProduct{}}, Raw: []byte(`{}`)}, nil
}

type APITestSuite struct {
	suite.Suite
	db      *gorm.DB
	router  *gin.Engine
	crawler *services.CrawlService
	fetcher *blockingFetcher
	cancel  context.CancelFunc
	today   string
}

func (suite *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(suite.T().TempDir(), "api.db"),
		LogLevel:   "silent",
	})
	suite.Require().NoError(err)
	suite.Require().NoError(database.RunMigrations(db))
	suite.db = db

	cfg := &config.Config{
		Environment:    "test",
		StaleAfterDays: 3,
		Catalog: config.CatalogConfig{
			PageSize:     10,
			PageInterval: time.Millisecond,
			TimeZone:     "UTC",
		},
		JWT:  config.JWTConfig{SecretKey: "test-secret", TTL: 1},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	gateway := store.NewGormStore(db)
	suite.fetcher = &blockingFetcher{release: make(chan struct{})}
	suite.crawler = services.NewCrawlService(suite.fetcher, gateway, db, nil, nil, cfg.Catalog)

	now := time.Now().UTC()
	suite.today = models.DateKey(now)
	yesterday := models.DateKey(now.AddDate(0, 0, -1))
	longAgo := models.DateKey(now.AddDate(0, 0, -10))

	ctx := context.Background()
	seed := []struct {
		category, date string
		snap           snapshot.Snapshot
	}{
		{"sua-tuoi", yesterday, snapshot.Snapshot{ProductID: "A", Name: "Sua tuoi TH", StockQuantity: 40, TotalSold: 100, Price: 30000}},
		{"sua-tuoi", suite.today, snapshot.Snapshot{ProductID: "A", Name: "Sua tuoi TH", StockQuantity: 30, TotalSold: 112, Price: 29000}},
		{"banh-keo", longAgo, snapshot.Snapshot{ProductID: "OLD", Name: "Banh quy", StockQuantity: 2, TotalSold: 5}},
	}
	for _, s := range seed {
		_, err := suite.crawler.SaveSnapshot(ctx, s.category, s.date, s.snap)
		suite.Require().NoError(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	suite.cancel = cancel
	suite.router = router.Initialize(db, cfg, router.Dependencies{
		Crawl:   suite.crawler,
		RunCtx:  runCtx,
		Gateway: gateway,
	})
}

func (suite *APITestSuite) TearDownSuite() {
	suite.cancel()
	database.Close(suite.db)
}

func (suite *APITestSuite) request(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func (suite *APITestSuite) token(role string) string {
	token, err := utils.GenerateJWT("ops", role, 1)
	suite.Require().NoError(err)
	return token
}

func errorCode(response map[string]interface{}) string {
	if e, ok := response["error"].(map[string]interface{}); ok {
		code, _ := e["code"].(string)
		return code
	}
	return ""
}

func (suite *APITestSuite) TestHealth() {
	w, response := suite.request("GET", "/health", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "healthy", response["status"])
	assert.Equal(suite.T(), "up", response["database"])
}

func (suite *APITestSuite) TestListProducts() {
	w, response := suite.request("GET", "/v1/products?category=sua-tuoi", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), response["success"].(bool))
	assert.Equal(suite.T(), "1", w.Header().Get("X-Total-Count"))

	data := response["data"].([]interface{})
	suite.Require().Len(data, 1)
	assert.Equal(suite.T(), "A", data[0].(map[string]interface{})["product_id"])
}

func (suite *APITestSuite) TestGetProduct() {
	w, response := suite.request("GET", "/v1/products/A", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	product := response["data"].(map[string]interface{})["product"].(map[string]interface{})
	assert.Equal(suite.T(), float64(30), product["stock_quantity"])
	assert.Equal(suite.T(), suite.today, product["date"])

	w, response = suite.request("GET", "/v1/products/missing", nil, "")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "NOT_FOUND", errorCode(response))
}

func (suite *APITestSuite) TestHistories() {
	w, response := suite.request("GET", "/v1/products/A/sales-history", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	history := response["data"].(map[string]interface{})["history"].([]interface{})
	suite.Require().Len(history, 2)
	assert.Equal(suite.T(), float64(12), history[1].(map[string]interface{})["sold_in_date"])

	w, response = suite.request("GET", "/v1/products/A/stock-history?from="+suite.today, nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"].(map[string]interface{})["history"], 1)

	w, response = suite.request("GET", "/v1/products/A/price-history?from=yesterday", nil, "")
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", errorCode(response))
}

func (suite *APITestSuite) TestStockChanges() {
	w, response := suite.request("GET", "/v1/products/A/stock-changes?days=3", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	changes := response["data"].(map[string]interface{})["changes"].([]interface{})
	suite.Require().Len(changes, 2)
	assert.Equal(suite.T(), float64(-10), changes[1].(map[string]interface{})["change"])
	assert.Equal(suite.T(), -25.0, changes[1].(map[string]interface{})["change_percent"])

	w, _ = suite.request("GET", "/v1/products/A/stock-changes?days=abc", nil, "")
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestConsistency() {
	w, response := suite.request("GET", "/v1/products/A/consistency", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	report := response["data"].(map[string]interface{})["report"].(map[string]interface{})
	assert.Equal(suite.T(), true, report["consistent"])
	assert.Equal(suite.T(), suite.today, report["history_date"])

	w, _ = suite.request("GET", "/v1/products/missing/consistency", nil, "")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *APITestSuite) TestStaleAndCategories() {
	w, response := suite.request("GET", "/v1/products/stale", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].([]interface{})
	suite.Require().Len(data, 1)
	assert.Equal(suite.T(), "OLD", data[0].(map[string]interface{})["product_id"])

	w, response = suite.request("GET", "/v1/categories", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"].(map[string]interface{})["categories"], 2)
}

func (suite *APITestSuite) TestAdminRequiresAdminToken() {
	w, response := suite.request("POST", "/v1/admin/crawl", map[string]interface{}{"slug": "sua-tuoi"}, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), "UNAUTHORIZED", errorCode(response))

	w, response = suite.request("POST", "/v1/admin/crawl", map[string]interface{}{"slug": "sua-tuoi"}, suite.token("viewer"))
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "FORBIDDEN", errorCode(response))
}

func (suite *APITestSuite) TestAdminCrawl() {
	admin := suite.token("admin")

	w, response := suite.request("POST", "/v1/admin/crawl", map[string]interface{}{"slug": "Not Valid"}, admin)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", errorCode(response))

	w, response = suite.request("POST", "/v1/admin/crawl", map[string]interface{}{"slug": "sua-tuoi", "end_page": 1}, admin)
	assert.Equal(suite.T(), http.StatusAccepted, w.Code)
	data := response["data"].(map[string]interface{})
	accepted := data["request"].(map[string]interface{})
	assert.Equal(suite.T(), suite.today, accepted["date"])
	assert.Equal(suite.T(), "ops", data["requested_by"])

	w, response = suite.request("POST", "/v1/admin/crawl", map[string]interface{}{"slug": "banh-keo"}, admin)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "CONFLICT", errorCode(response))

	close(suite.fetcher.release)
	assert.Eventually(suite.T(), func() bool { return !suite.crawler.IsRunning() }, 5*time.Second, 10*time.Millisecond)

	w, response = suite.request("GET", "/v1/runs", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"].(map[string]interface{})["runs"], 1)
}

func (suite *APITestSuite) TestAdminConsistencyAudit() {
	w, response := suite.request("GET", "/v1/admin/consistency", nil, suite.token("admin"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	audit := response["data"].(map[string]interface{})["audit"].(map[string]interface{})
	assert.Equal(suite.T(), float64(2), audit["checked"])
	assert.Empty(suite.T(), audit["inconsistent"])
}

func (suite *APITestSuite) TestMetricsEndpoint() {
	suite.request("GET", "/v1/categories", nil, "")

	w, _ := suite.request("GET", "/metrics", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "catalog_tracker_api_http_requests_total")
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
