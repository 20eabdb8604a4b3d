// Package fairs manages fair windows and the deliverable trades groups make
// during them.
package fairs

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// Handler handles fair and transaction requests
type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHandler creates a new fairs handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: time.Now}
}

// CreateFairRequest represents the request to create a fair
type CreateFairRequest struct {
	ProjectID uint      `json:"project_id" binding:"required"`
	Details   string    `json:"details"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

// UpdateFairRequest represents the request to update a fair
type UpdateFairRequest struct {
	Details   *string    `json:"details"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// FairResponse represents a fair in API responses
type FairResponse struct {
	models.Fair
	Running bool `json:"running"`
}

func (h *Handler) toResponse(f models.Fair) FairResponse {
	return FairResponse{Fair: f, Running: f.Running(h.now())}
}

// adminFair loads :id, replying 404 outside the caller's projects
func (h *Handler) adminFair(c *gin.Context) (*models.Fair, bool) {
	id, ok := access.ParamID(c, "id", "fair")
	if !ok {
		return nil, false
	}
	var fair models.Fair
	if err := h.db.First(&fair, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fair not found"})
		return nil, false
	}
	allowed, err := access.CanAccessProject(h.db, c, fair.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fair", err)
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fair not found"})
		return nil, false
	}
	return &fair, true
}

// CreateFair creates a fair in a project
func (h *Handler) CreateFair(c *gin.Context) {
	var req CreateFairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndDate.After(req.StartDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End date must be after start date"})
		return
	}

	allowed, err := access.CanAccessProject(h.db, c, req.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to create fair", err)
		return
	}
	var project models.Project
	if !allowed || h.db.First(&project, req.ProjectID).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	fair := models.Fair{
		ProjectID: project.ID,
		Details:   req.Details,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
	}
	if err := h.db.Create(&fair).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to create fair", err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(fair))
}

// ListFairs lists fairs, optionally for one project
func (h *Handler) ListFairs(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	q := h.db.Order("start_date ASC")
	if filtered {
		q = q.Where("project_id = ?", projectID)
	}
	q, err := access.ScopeProjects(h.db, c, q, "project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fairs", err)
		return
	}

	var fairs []models.Fair
	if err := q.Find(&fairs).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fairs", err)
		return
	}

	out := make([]FairResponse, len(fairs))
	for i, f := range fairs {
		out[i] = h.toResponse(f)
	}
	c.JSON(http.StatusOK, out)
}

// GetFair returns a fair
func (h *Handler) GetFair(c *gin.Context) {
	fair, ok := h.adminFair(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(*fair))
}

// UpdateFair changes a fair's details or window
func (h *Handler) UpdateFair(c *gin.Context) {
	fair, ok := h.adminFair(c)
	if !ok {
		return
	}

	var req UpdateFairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, end := fair.StartDate, fair.EndDate
	updates := make(map[string]interface{})
	if req.Details != nil {
		updates["details"] = *req.Details
	}
	if req.StartDate != nil {
		start = req.StartDate.UTC()
		updates["start_date"] = start
	}
	if req.EndDate != nil {
		end = req.EndDate.UTC()
		updates["end_date"] = end
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End date must be after start date"})
		return
	}

	if len(updates) > 0 {
		if err := h.db.Model(fair).Updates(updates).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to update fair", err)
			return
		}
	}

	h.db.First(fair, fair.ID)
	c.JSON(http.StatusOK, h.toResponse(*fair))
}

// DeleteFair removes a fair and its transactions
func (h *Handler) DeleteFair(c *gin.Context) {
	fair, ok := h.adminFair(c)
	if !ok {
		return
	}
	if err := h.db.Delete(fair).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete fair", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListProjectFairs lists the fairs of a project the student belongs to
func (h *Handler) ListProjectFairs(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	projectID, ok := access.ParamID(c, "project_id", "project")
	if !ok {
		return
	}

	member, err := access.ProjectMembership(h.db, userID, projectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fairs", err)
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	var fairs []models.Fair
	if err := h.db.Where("project_id = ?", projectID).Order("start_date ASC").Find(&fairs).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fairs", err)
		return
	}

	out := make([]FairResponse, len(fairs))
	for i, f := range fairs {
		out[i] = h.toResponse(f)
	}
	c.JSON(http.StatusOK, out)
}

// RegisterAdminRoutes registers fair routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	fairs := rg.Group("/fairs", auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor, models.AdminRoleCoordinator))
	fairs.GET("", h.ListFairs)
	fairs.POST("", h.CreateFair)
	fairs.GET("/:id", h.GetFair)
	fairs.PATCH("/:id", h.UpdateFair)
	fairs.DELETE("/:id", h.DeleteFair)
	fairs.GET("/:id/transactions", h.AdminListTransactions)
}

// RegisterStudentRoutes registers fair routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects/:project_id/fairs", h.ListProjectFairs)
	rg.POST("/fairs/:id/transactions", h.CreateTransaction)
	rg.GET("/fairs/:id/transactions", h.ListTransactions)
}
