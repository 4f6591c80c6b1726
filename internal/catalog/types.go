// internal/catalog/types.go
package catalog

import "encoding/json"

// Numeric and identifier fields are left as any: upstream mixes numbers,
// numeric strings and nulls, and the snapshot normalizer owns coercion.

type Page struct {
	Total any          `json:"total"`
	Page  any          `json:"page"`
	Limit any          `json:"limit"`
	Data  []RawProduct `json:"data"`
	// Rejected holds one error per product in data that could not be decoded.
	Rejected []error `json:"-"`
}

// Size is the number of products the upstream returned, decoded or not.
func (p *Page) Size() int {
	return len(p.Data) + len(p.Rejected)
}

type RawProduct struct {
	ID            any          `json:"id"`
	Name          any          `json:"name"`
	Slug          any          `json:"slug"`
	DiscountPrice any          `json:"discountPrice"`
	OriginalPrice any          `json:"originalPrice"`
	InStock       any          `json:"inStock"`
	GiftItems     []GiftItem   `json:"giftItems"`
	Variants      []RawVariant `json:"variants"`
}

type GiftItem struct {
	ID            any            `json:"id"`
	Name          any            `json:"name"`
	PromotionInfo *PromotionInfo `json:"promotionInfo"`
}

type PromotionInfo struct {
	ID               any    `json:"id"`
	Type             any    `json:"type"`
	Name             any    `json:"name"`
	PromotionSummary any    `json:"promotionSummary"`
}

type RawVariant struct {
	ID               any        `json:"id"`
	Name             any        `json:"name"`
	SKU              any        `json:"sku"`
	DiscountPrice    any        `json:"discountPrice"`
	OriginalPrice    any        `json:"originalPrice"`
	Price            any        `json:"price"`
	InStock          any        `json:"inStock"`
	StockItem        *StockItem `json:"stockItem"`
	PromotionSummary any        `json:"promotionSummary"`
	OrderedCounter   any        `json:"orderedCounter"`
}

type StockItem struct {
	Quantity        any `json:"quantity"`
	MaxSaleQuantity any `json:"maxSaleQuantity"`
	MinSaleQuantity any `json:"minSaleQuantity"`
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// listingPage keeps products undecoded so a malformed one is rejected alone.
type listingPage struct {
	Total any               `json:"total"`
	Page  any               `json:"page"`
	Limit any               `json:"limit"`
	Data  []json.RawMessage `json:"data"`
}

type listingResponse struct {
	Data struct {
		ListingProductsBySlug *listingPage `json:"listingProductsBySlug"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// PageQuery holds the variables of one listing request.
type PageQuery struct {
	Slug      string
	Page      int
	Limit     int
	Filters   []any
	Order     string
	Direction string
}

// PageResult is a decoded listing page together with the body it came from.
type PageResult struct {
	Page *Page
	Raw  []byte
}
