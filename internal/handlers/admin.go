// internal/handlers/admin.go
package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

type AdminHandler struct {
	crawlService       *services.CrawlService
	consistencyService *services.ConsistencyService
	// background runs outlive the request that started them
	runCtx context.Context
}

func NewAdminHandler(runCtx context.Context, crawlService *services.CrawlService, consistencyService *services.ConsistencyService) *AdminHandler {
	return &AdminHandler{
		crawlService:       crawlService,
		consistencyService: consistencyService,
		runCtx:             runCtx,
	}
}

// POST /admin/crawl
func (h *AdminHandler) StartCrawl(c *gin.Context) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	accepted, err := h.crawlService.Start(h.runCtx, req)
	if err != nil {
		if errors.Is(err, services.ErrCrawlInProgress) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	subject, _ := utils.GetSubjectFromContext(c)
	logrus.WithFields(logrus.Fields{
		"category":     accepted.Slug,
		"date":         accepted.Date,
		"requested_by": subject,
	}).Info("Crawl requested")

	utils.AcceptedResponse(c, gin.H{
		"message":      "Crawl started",
		"request":      accepted,
		"requested_by": subject,
	})
}

// GET /admin/crawl
func (h *AdminHandler) GetCrawlStatus(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"running": h.crawlService.IsRunning(),
	})
}

// GET /admin/consistency
func (h *AdminHandler) AuditConsistency(c *gin.Context) {
	summary, err := h.consistencyService.CheckAll(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"audit": summary})
}
