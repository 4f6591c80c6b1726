// internal/handlers/product.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

type ProductHandler struct {
	productService     *services.ProductService
	consistencyService *services.ConsistencyService
}

func NewProductHandler(productService *services.ProductService, consistencyService *services.ConsistencyService) *ProductHandler {
	return &ProductHandler{
		productService:     productService,
		consistencyService: consistencyService,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	searchParams := services.ProductSearchParams{
		PaginationParams: params,
	}

	if inStockStr := c.Query("in_stock"); inStockStr != "" {
		if inStock, err := strconv.ParseBool(inStockStr); err == nil {
			searchParams.InStock = &inStock
		}
	}

	products, total, err := h.productService.SearchProducts(c.Request.Context(), searchParams)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params))
}

// GET /products/stale
func (h *ProductHandler) GetStaleProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	days, _ := strconv.Atoi(c.Query("days"))

	products, total, err := h.productService.StaleProducts(c.Request.Context(), days, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params))
}

// GET /products/top-sellers
func (h *ProductHandler) GetTopSellers(c *gin.Context) {
	r, ok := bindHistoryRange(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	sellers, err := h.productService.TopSellers(c.Request.Context(), r, c.Query("category"), limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"sellers": sellers,
		"from":    r.From,
		"to":      r.To,
	})
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product":  product,
		"in_stock": product.InStock(),
	})
}

// GET /products/:id/stock-history
func (h *ProductHandler) GetStockHistory(c *gin.Context) {
	r, ok := bindHistoryRange(c)
	if !ok {
		return
	}
	entries, err := h.productService.StockHistory(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"history": entries})
}

// GET /products/:id/price-history
func (h *ProductHandler) GetPriceHistory(c *gin.Context) {
	r, ok := bindHistoryRange(c)
	if !ok {
		return
	}
	entries, err := h.productService.PriceHistory(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"history": entries})
}

// GET /products/:id/sales-history
func (h *ProductHandler) GetSalesHistory(c *gin.Context) {
	r, ok := bindHistoryRange(c)
	if !ok {
		return
	}
	entries, err := h.productService.SalesHistory(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"history": entries})
}

// GET /products/:id/stock-changes
func (h *ProductHandler) GetStockChanges(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 365 {
		utils.BadRequestResponse(c, "days must be between 1 and 365", nil)
		return
	}

	changes, err := h.productService.StockChanges(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{
		"days":    days,
		"changes": changes,
	})
}

// GET /products/:id/consistency
func (h *ProductHandler) GetConsistency(c *gin.Context) {
	report, err := h.consistencyService.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"report": report})
}

// GET /categories
func (h *ProductHandler) GetCategories(c *gin.Context) {
	categories, err := h.productService.Categories(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"categories": categories})
}

// GET /runs
func (h *ProductHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.productService.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"runs": runs})
}

func bindHistoryRange(c *gin.Context) (services.HistoryRange, bool) {
	var r services.HistoryRange
	if err := c.ShouldBindQuery(&r); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return r, false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&r)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return r, false
	}
	return r, true
}

func respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.NotFoundResponse(c, "Product not found")
		return
	}
	utils.InternalErrorResponse(c, err.Error())
}
