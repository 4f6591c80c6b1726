// internal/catalog/client_test.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/catalog-tracker/internal/config"
)

const listingBody = `{"data":{"listingProductsBySlug":{"total":2,"page":1,"limit":102,"data":[
 {"id":10,"name":"Sua tuoi","giftItems":[{"promotionInfo":{"promotionSummary":"Mua 2 tang 1"}}],
  "variants":[{"id":"V-1","name":"Sua tuoi 1L","discountPrice":25000,"originalPrice":"30.000đ",
   "stockItem":{"quantity":12},"orderedCounter":9007199254740993}]}
]}}}`

func testCatalogConfig(url string) config.CatalogConfig {
	return config.CatalogConfig{
		APIURL:         url,
		UserAgent:      "test-agent",
		MaxAttempts:    3,
		RetryDelay:     time.Millisecond,
		RequestTimeout: 2 * time.Second,
		OrderBy:        "SALE_PRICE",
		Direction:      "ASC",
	}
}

func TestFetchPageDecodesListing(t *testing.T) {
	var got graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	res, err := client.FetchPage(context.Background(), PageQuery{Slug: "sua-tuoi", Page: 1, Limit: 102})
	require.NoError(t, err)

	assert.Equal(t, "ListingProductsBySlug", got.OperationName)
	assert.Equal(t, "sua-tuoi", got.Variables["slug"])
	assert.Equal(t, float64(1), got.Variables["page"])
	assert.Equal(t, "SALE_PRICE", got.Variables["order"])
	assert.Equal(t, []any{}, got.Variables["filters"])

	require.Len(t, res.Page.Data, 1)
	variant := res.Page.Data[0].Variants[0]
	assert.Equal(t, "V-1", variant.ID)
	assert.Equal(t, json.Number("9007199254740993"), variant.OrderedCounter)
	assert.Equal(t, json.Number("12"), variant.StockItem.Quantity)
	assert.JSONEq(t, listingBody, string(res.Raw))
}

func TestFetchPageRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	res, err := client.FetchPage(context.Background(), PageQuery{Slug: "x", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Page.Data, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchPageGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	_, err := client.FetchPage(context.Background(), PageQuery{Slug: "x", Page: 4, Limit: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchPageGraphQLErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"errors":[{"message":"slug not found"}],"data":null}`))
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	_, err := client.FetchPage(context.Background(), PageQuery{Slug: "missing", Page: 1, Limit: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphQL))
	assert.Contains(t, err.Error(), "slug not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPageKeepsProductsBesideMalformedOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"listingProductsBySlug":{"total":3,"page":1,"limit":10,"data":[
			{"id":1,"variants":[{"id":"A","stockItem":{"quantity":1}}]},
			{"id":2,"slug":7,"giftItems":[{"promotionInfo":{"promotionSummary":42}}],"variants":[{"id":"B"}]},
			{"id":3,"variants":"not a list"}
		]}}}`))
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	res, err := client.FetchPage(context.Background(), PageQuery{Slug: "x", Page: 1, Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Page.Data, 2)
	assert.Equal(t, "A", res.Page.Data[0].Variants[0].ID)
	assert.Equal(t, json.Number("42"), res.Page.Data[1].GiftItems[0].PromotionInfo.PromotionSummary)
	require.Len(t, res.Page.Rejected, 1)
	assert.Contains(t, res.Page.Rejected[0].Error(), "product 2")
	assert.Equal(t, 3, res.Page.Size())
}

func TestFetchPageEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"listingProductsBySlug":{"total":0,"page":3,"limit":10,"data":[]}}}`))
	}))
	defer server.Close()

	client := NewClient(testCatalogConfig(server.URL))
	res, err := client.FetchPage(context.Background(), PageQuery{Slug: "x", Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Page.Data)
}

func TestFetchPageHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testCatalogConfig(server.URL)
	cfg.RetryDelay = time.Minute
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchPage(ctx, PageQuery{Slug: "x", Page: 1, Limit: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
