package handlers

import (
	"net/http"

	"github.com/recouphq/collections-service-backend/internal/models"
	"github.com/recouphq/collections-service-backend/internal/services"
	"github.com/recouphq/collections-service-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	statsService    *services.StatsService
}

func NewCampaignHandler(db *gorm.DB) *CampaignHandler {
	return &CampaignHandler{
		campaignService: services.NewCampaignService(db),
		statsService:    services.NewStatsService(db),
	}
}

// CreateCampaign godoc
// @Summary Create a new dunning campaign
// @Description Create a new dunning campaign for the authenticated tenant
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateCampaignRequest true "Create campaign request"
// @Success 201 {object} models.CampaignResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)

	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	response, err := h.campaignService.CreateCampaign(tenantID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to create campaign")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetCampaigns godoc
// @Summary List dunning campaigns
// @Description List the authenticated tenant's campaigns, highest priority first
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	offset := utils.CalculateOffset(page, pageSize)

	campaigns, total, err := h.campaignService.GetCampaignsByTenant(tenantID, offset, pageSize)
	if err != nil {
		respondServiceError(c, err, "Failed to get campaigns")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaigns":  campaigns,
		"pagination": utils.CalculatePaginationInfo(int(total), page, pageSize),
	})
}

// GetCampaignByID godoc
// @Summary Get campaign by ID
// @Description Get one campaign of the authenticated tenant
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.CampaignResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaignByID(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	campaignID := c.Param("id")

	campaign, err := h.campaignService.GetCampaignByID(tenantID, campaignID)
	if err != nil {
		respondServiceError(c, err, "Failed to get campaign")
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign godoc
// @Summary Update a campaign
// @Description Update a campaign. Running executions keep their action snapshot.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID"
// @Param request body models.UpdateCampaignRequest true "Update campaign request"
// @Success 200 {object} models.CampaignResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [put]
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	campaignID := c.Param("id")

	var req models.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	campaign, err := h.campaignService.UpdateCampaign(tenantID, campaignID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to update campaign")
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign godoc
// @Summary Delete a campaign
// @Description Deactivate a campaign (default) or hard-delete it with ?hard=true. Hard deletes are rejected while executions are still running.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID"
// @Param hard query bool false "Hard delete"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	campaignID := c.Param("id")
	hard := c.Query("hard") == "true"

	if err := h.campaignService.DeleteCampaign(tenantID, campaignID, hard); err != nil {
		respondServiceError(c, err, "Failed to delete campaign")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Campaign deleted successfully"})
}

// GetCampaignStats godoc
// @Summary Get campaign statistics
// @Description Get execution counts, success rate and recovery metrics for one campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} services.CampaignStatsResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/stats [get]
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	campaignID := c.Param("id")

	stats, err := h.statsService.CampaignStats(tenantID, campaignID)
	if err != nil {
		respondServiceError(c, err, "Failed to get campaign stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
