package handlers

import (
	"net/http"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/models"
	"github.com/recouphq/collections-service-backend/internal/services"
	"github.com/recouphq/collections-service-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExecutionHandler struct {
	executionService *services.ExecutionService
}

func NewExecutionHandler(db *gorm.DB, publisher *services.DunningEventPublisher, cfg *config.EngineConfig) *ExecutionHandler {
	return &ExecutionHandler{
		executionService: services.NewExecutionService(db, publisher, cfg),
	}
}

// StartExecution godoc
// @Summary Start a dunning execution
// @Description Start a dunning run for an overdue subscription. Rejected when the campaign is inactive or the subscription already has an active execution.
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.StartExecutionRequest true "Start execution request"
// @Success 201 {object} models.ExecutionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions [post]
func (h *ExecutionHandler) StartExecution(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)

	var req models.StartExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	response, err := h.executionService.StartExecution(tenantID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to start execution")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetExecutions godoc
// @Summary List dunning executions
// @Description List the authenticated tenant's executions, optionally filtered by status
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Filter by status" Enums(PENDING, IN_PROGRESS, COMPLETED, FAILED, CANCELED)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions [get]
func (h *ExecutionHandler) GetExecutions(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	status := models.ExecutionStatus(c.Query("status"))
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	offset := utils.CalculateOffset(page, pageSize)

	executions, total, err := h.executionService.List(tenantID, status, offset, pageSize)
	if err != nil {
		respondServiceError(c, err, "Failed to list executions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"pagination": utils.CalculatePaginationInfo(int(total), page, pageSize),
	})
}

// GetExecutionByID godoc
// @Summary Get execution by ID
// @Description Get one execution of the authenticated tenant, including its embedded step log
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Execution ID"
// @Success 200 {object} models.ExecutionResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions/{id} [get]
func (h *ExecutionHandler) GetExecutionByID(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	executionID := c.Param("id")

	execution, err := h.executionService.GetByID(tenantID, executionID)
	if err != nil {
		respondServiceError(c, err, "Failed to get execution")
		return
	}

	c.JSON(http.StatusOK, execution)
}

// CancelExecution godoc
// @Summary Cancel an execution
// @Description Cancel a running execution. Terminal executions return 409 and stay unchanged.
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Execution ID"
// @Param request body models.CancelExecutionRequest true "Cancel request"
// @Success 200 {object} models.ExecutionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions/{id}/cancel [post]
func (h *ExecutionHandler) CancelExecution(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	executionID := c.Param("id")

	var req models.CancelExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	execution, err := h.executionService.Cancel(tenantID, executionID, req.Reason, req.CanceledBy)
	if err != nil {
		respondServiceError(c, err, "Failed to cancel execution")
		return
	}

	c.JSON(http.StatusOK, execution)
}

// RecordPayment godoc
// @Summary Record a recovered payment
// @Description Apply a recovered amount to an execution. Amounts above the remaining balance are clamped; full recovery completes the execution early.
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Execution ID"
// @Param request body models.RecordPaymentRequest true "Payment request"
// @Success 200 {object} models.ExecutionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions/{id}/payments [post]
func (h *ExecutionHandler) RecordPayment(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	executionID := c.Param("id")

	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	execution, err := h.executionService.RecordPayment(tenantID, executionID, req.Amount)
	if err != nil {
		respondServiceError(c, err, "Failed to record payment")
		return
	}

	c.JSON(http.StatusOK, execution)
}

// GetActionLogs godoc
// @Summary Get execution action logs
// @Description Get the per-step audit records of an execution
// @Tags executions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Execution ID"
// @Success 200 {array} models.ActionLogResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/executions/{id}/actions [get]
func (h *ExecutionHandler) GetActionLogs(c *gin.Context) {
	tenantID := c.MustGet("tenant_id").(string)
	executionID := c.Param("id")

	logs, err := h.executionService.GetActionLogs(tenantID, executionID)
	if err != nil {
		respondServiceError(c, err, "Failed to get action logs")
		return
	}

	c.JSON(http.StatusOK, logs)
}
