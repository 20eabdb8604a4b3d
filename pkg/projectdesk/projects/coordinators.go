package projects

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// AssignCoordinatorRequest names the admin to put in charge of a project
type AssignCoordinatorRequest struct {
	AdminID uint `json:"admin_id" binding:"required"`
}

// CoordinatorResponse represents a coordinator assignment
type CoordinatorResponse struct {
	AdminID    uint      `json:"admin_id"`
	ProjectID  uint      `json:"project_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

func toCoordinatorResponse(cp models.CoordinatorProject) CoordinatorResponse {
	return CoordinatorResponse{
		AdminID:    cp.AdminID,
		ProjectID:  cp.ProjectID,
		FirstName:  cp.Admin.FirstName,
		LastName:   cp.Admin.LastName,
		Email:      cp.Admin.Email,
		AssignedAt: cp.AssignedAt,
	}
}

// ListCoordinators returns the coordinators of a project
func (h *Handler) ListCoordinators(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var assignments []models.CoordinatorProject
	if err := h.db.Preload("Admin").Where("project_id = ?", project.ID).Find(&assignments).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch coordinators", err)
		return
	}

	responses := make([]CoordinatorResponse, len(assignments))
	for i, a := range assignments {
		responses[i] = toCoordinatorResponse(a)
	}
	c.JSON(http.StatusOK, responses)
}

// AssignCoordinator puts a coordinator admin in charge of a project. A
// project has at most one coordinator.
func (h *Handler) AssignCoordinator(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req AssignCoordinatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var admin models.Admin
	if err := h.db.First(&admin, req.AdminID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}
	if admin.AdminRoleID != models.AdminRoleCoordinator {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Admin is not a coordinator"})
		return
	}

	var existing int64
	h.db.Model(&models.CoordinatorProject{}).Where("project_id = ?", project.ID).Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Project already has a coordinator"})
		return
	}

	assignment := models.CoordinatorProject{AdminID: admin.ID, ProjectID: project.ID, AssignedAt: time.Now().UTC()}
	if err := h.db.Create(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Project already has a coordinator"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to assign coordinator", err)
		return
	}

	assignment.Admin = admin
	c.JSON(http.StatusCreated, toCoordinatorResponse(assignment))
}

// RemoveCoordinator unassigns a coordinator from a project
func (h *Handler) RemoveCoordinator(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	adminID, ok := access.ParamID(c, "admin_id", "admin")
	if !ok {
		return
	}

	result := h.db.Where("project_id = ? AND admin_id = ?", project.ID, adminID).Delete(&models.CoordinatorProject{})
	if result.Error != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to remove coordinator", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coordinator not assigned to this project"})
		return
	}

	c.Status(http.StatusNoContent)
}
