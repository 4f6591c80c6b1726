// internal/snapshot/extract.go
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/javajoker/catalog-tracker/internal/catalog"
)

// DefaultPromotion is stored when no gift item carries a promotion summary.
const DefaultPromotion = "no promotion"

var ErrMissingVariantID = errors.New("snapshot: variant has no id")

// Snapshot is one normalized observation of a variant.
type Snapshot struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int64  `json:"stock_quantity"`
	TotalSold     int64  `json:"total_sold"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"original_price"`
	Promotion     string `json:"promotion"`
}

// Extract maps a raw variant and its parent record into a Snapshot. The
// variant id is the product key; a parent with N variants yields N
// independent snapshots.
func Extract(product catalog.RawProduct, variant catalog.RawVariant) (Snapshot, error) {
	id := identifier(variant.ID)
	if id == "" {
		return Snapshot{}, fmt.Errorf("%w (parent %s)", ErrMissingVariantID, identifier(product.ID))
	}

	name := text(variant.Name)
	if name == "" {
		name = text(product.Name)
	}

	var stock int64
	if variant.StockItem != nil {
		stock = NormalizeInt(variant.StockItem.Quantity)
	}

	originalPrice := NormalizeInt(variant.OriginalPrice)
	price := originalPrice
	if variant.DiscountPrice != nil {
		price = NormalizeInt(variant.DiscountPrice)
	}

	return Snapshot{
		ProductID:     id,
		Name:          name,
		StockQuantity: stock,
		TotalSold:     NormalizeInt(variant.OrderedCounter),
		Price:         price,
		OriginalPrice: originalPrice,
		Promotion:     Promotion(product.GiftItems),
	}, nil
}

// ExtractAll fans a parent record out into its variants. Variants that fail
// extraction are returned as errors alongside the successful snapshots.
func ExtractAll(product catalog.RawProduct) ([]Snapshot, []error) {
	snaps := make([]Snapshot, 0, len(product.Variants))
	var errs []error
	for _, v := range product.Variants {
		snap, err := Extract(product, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, errs
}

// Promotion returns the first non-empty promotion summary among gift items.
func Promotion(items []catalog.GiftItem) string {
	for _, item := range items {
		if item.PromotionInfo == nil {
			continue
		}
		summary, ok := item.PromotionInfo.PromotionSummary.(string)
		if !ok {
			continue
		}
		if summary = strings.TrimSpace(summary); summary != "" {
			return summary
		}
	}
	return DefaultPromotion
}

func identifier(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		if id == math.Trunc(id) && math.Abs(id) < 1e15 {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(id))
	}
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
