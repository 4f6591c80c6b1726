// internal/catalog/query.go
package catalog

const listingOperation = "ListingProductsBySlug"

const listingQuery = `query ListingProductsBySlug($slug: String, $page: Int, $limit: Int, $filters: [ListingProductBySlugInput], $order: ListingProductSortEnum, $direction: OrderDirectionEnum) {
  listingProductsBySlug(
    slug: $slug
    page: $page
    limit: $limit
    filters: $filters
    order: $order
    direction: $direction
  ) {
    total
    page
    limit
    data {
      id
      name
      slug
      discountPrice
      originalPrice
      inStock
      giftItems {
        id
        name
        promotionInfo {
          id
          type
          name
          promotionSummary
        }
      }
      variants {
        id
        name
        sku
        discountPrice
        originalPrice
        price
        inStock
        stockItem {
          quantity
          maxSaleQuantity
          minSaleQuantity
        }
        promotionSummary
        orderedCounter
      }
    }
  }
}`
