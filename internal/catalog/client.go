// internal/catalog/client.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/catalog-tracker/internal/config"
)

var (
	// ErrGraphQL is returned when the endpoint answers with a GraphQL errors array.
	ErrGraphQL = errors.New("catalog: graphql error")
	// ErrUnexpectedStatus is returned for non-2xx responses after all attempts.
	ErrUnexpectedStatus = errors.New("catalog: unexpected status")
)

// Client posts listing queries to the catalog GraphQL endpoint.
type Client struct {
	http        *resty.Client
	endpoint    string
	maxAttempts int
	retryDelay  time.Duration
	order       string
	direction   string
}

func NewClient(cfg config.CatalogConfig) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		http:        httpClient,
		endpoint:    cfg.APIURL,
		maxAttempts: attempts,
		retryDelay:  cfg.RetryDelay,
		order:       cfg.OrderBy,
		direction:   cfg.Direction,
	}
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// FetchPage retrieves one listing page. Transport failures and non-2xx
// responses are retried with a fixed delay; GraphQL errors are not.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*PageResult, error) {
	body := graphQLRequest{
		OperationName: listingOperation,
		Query:         listingQuery,
		Variables:     c.variables(q),
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		raw, err := c.post(ctx, body)
		if err == nil {
			return decodeListing(raw)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logrus.WithFields(logrus.Fields{
			"slug":    q.Slug,
			"page":    q.Page,
			"attempt": attempt,
		}).WithError(err).Warn("Catalog request failed")

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("fetch %s page %d after %d attempts: %w", q.Slug, q.Page, c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, body graphQLRequest) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}
	return resp.Body(), nil
}

func (c *Client) variables(q PageQuery) map[string]any {
	filters := q.Filters
	if filters == nil {
		filters = []any{}
	}

	vars := map[string]any{
		"slug":    q.Slug,
		"page":    q.Page,
		"limit":   q.Limit,
		"filters": filters,
	}

	order := q.Order
	if order == "" {
		order = c.order
	}
	if order != "" {
		vars["order"] = order
	}

	direction := q.Direction
	if direction == "" {
		direction = c.direction
	}
	if direction != "" {
		vars["direction"] = direction
	}

	return vars
}

func decodeListing(raw []byte) (*PageResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var resp listingResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(messages, "; "))
	}

	listing := resp.Data.ListingProductsBySlug
	if listing == nil {
		return &PageResult{Page: &Page{}, Raw: raw}, nil
	}

	page := &Page{Total: listing.Total, Page: listing.Page, Limit: listing.Limit}
	for i, item := range listing.Data {
		product, err := decodeProduct(item)
		if err != nil {
			page.Rejected = append(page.Rejected, fmt.Errorf("product %d: %w", i, err))
			continue
		}
		page.Data = append(page.Data, product)
	}

	return &PageResult{Page: page, Raw: raw}, nil
}

func decodeProduct(raw json.RawMessage) (RawProduct, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var product RawProduct
	if err := dec.Decode(&product); err != nil {
		return RawProduct{}, fmt.Errorf("decode product: %w", err)
	}
	return product, nil
}
