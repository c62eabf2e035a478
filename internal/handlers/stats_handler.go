package handlers

import (
	"net/http"
	"strconv"

	"github.com/recouphq/collections-service-backend/internal/services"
	"github.com/recouphq/collections-service-backend/internal/services/excel"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StatsHandler struct {
	statsService *services.StatsService
	excelService *excel.Service
	scheduler    *services.SchedulerService
}

func NewStatsHandler(db *gorm.DB, excelService *excel.Service, scheduler *services.SchedulerService) *StatsHandler {
	return &StatsHandler{
		statsService: services.NewStatsService(db),
		excelService: excelService,
		scheduler:    scheduler,
	}
}

// GetTenantStats godoc
// @Summary Get tenant statistics
// @Description Get execution counts, success rate and recovery metrics across every campaign of the tenant
// @Tags stats
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} services.TenantStatsResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/stats [get]
func (h *StatsHandler) GetTenantStats(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)

	stats, err := h.statsService.TenantStats(tenantID)
	if err != nil {
		respondServiceError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportStats godoc
// @Summary Export execution history
// @Description Export the tenant's execution history as an Excel file
// @Tags stats
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Success 200 {file} binary
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/stats/export [get]
func (h *StatsHandler) ExportStats(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)

	result, err := h.excelService.ExportTenantExecutions(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export executions", "details": err.Error()})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.File(h.excelService.ExportPath(result.Filename))
}

// GetPendingActions godoc
// @Summary List due actions
// @Description List executions whose next action is due, soonest first. Intended for external worker processes that poll instead of consuming events.
// @Tags stats
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Maximum results"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/pending-actions [get]
func (h *StatsHandler) GetPendingActions(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit"))

	due, err := h.scheduler.PendingActions(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending actions", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(due),
		"executions": due,
	})
}
