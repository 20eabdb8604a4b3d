package projects

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// Handler handles project requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new project handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Name                         string     `json:"name" binding:"required"`
	Year                         int        `json:"year" binding:"omitempty,gte=2000,lte=2100"`
	MaxStudentUploads            int        `json:"max_student_uploads" binding:"required,gt=0"`
	MaxGroupSize                 int        `json:"max_group_size" binding:"required,gt=1"`
	MaxGroups                    int        `json:"max_groups" binding:"gte=0"`
	DeliverableSelectionDeadline *time.Time `json:"deliverable_selection_deadline"`
	Active                       *bool      `json:"active"`
}

// UpdateProjectRequest represents the request to update a project
type UpdateProjectRequest struct {
	Name                         *string    `json:"name"`
	Year                         *int       `json:"year" binding:"omitempty,gte=2000,lte=2100"`
	MaxStudentUploads            *int       `json:"max_student_uploads" binding:"omitempty,gt=0"`
	MaxGroupSize                 *int       `json:"max_group_size" binding:"omitempty,gt=1"`
	MaxGroups                    *int       `json:"max_groups" binding:"omitempty,gte=0"`
	DeliverableSelectionDeadline *time.Time `json:"deliverable_selection_deadline"`
	ClearDeadline                bool       `json:"clear_deadline"`
	Active                       *bool      `json:"active"`
}

// StudentProjectResponse is a project seen through the student's group
type StudentProjectResponse struct {
	models.Project
	GroupID   uint   `json:"group_id"`
	GroupName string `json:"group_name"`
	Role      string `json:"role"`
}

// CreateProject creates a project
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().Year()
	}

	project := models.Project{
		Name:                         strings.TrimSpace(req.Name),
		Year:                         req.Year,
		MaxStudentUploads:            req.MaxStudentUploads,
		MaxGroupSize:                 req.MaxGroupSize,
		MaxGroups:                    req.MaxGroups,
		DeliverableSelectionDeadline: req.DeliverableSelectionDeadline,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		// a false zero value is skipped on insert in favour of the column default
		if req.Active != nil && !*req.Active {
			project.Active = false
			return tx.Model(&project).Update("active", false).Error
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		c.JSON(http.StatusConflict, gin.H{"error": "A project with this name already exists for that year"})
		return
	}
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to create project", err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects returns the projects visible to the caller
func (h *Handler) ListProjects(c *gin.Context) {
	query, err := access.ScopeProjects(h.db, c, h.db.Order("year DESC, name"), "id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch projects", err)
		return
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch projects", err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) loadProject(c *gin.Context) (*models.Project, bool) {
	id, ok := access.ParamID(c, "id", "project")
	if !ok {
		return nil, false
	}

	allowed, err := access.CanAccessProject(h.db, c, id)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch project", err)
		return nil, false
	}

	var project models.Project
	if !allowed || h.db.First(&project, id).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	return &project, true
}

// GetProject returns a single project
func (h *Handler) GetProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// UpdateProject edits a project
func (h *Handler) UpdateProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
			return
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Year != nil {
		updates["year"] = *req.Year
	}
	if req.MaxStudentUploads != nil {
		updates["max_student_uploads"] = *req.MaxStudentUploads
	}
	if req.MaxGroupSize != nil {
		updates["max_group_size"] = *req.MaxGroupSize
	}
	if req.MaxGroups != nil {
		updates["max_groups"] = *req.MaxGroups
	}
	if req.ClearDeadline {
		updates["deliverable_selection_deadline"] = nil
	} else if req.DeliverableSelectionDeadline != nil {
		updates["deliverable_selection_deadline"] = *req.DeliverableSelectionDeadline
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := h.db.Model(project).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "A project with this name already exists for that year"})
				return
			}
			logging.Fail(c, http.StatusInternalServerError, "Failed to update project", err)
			return
		}
	}

	h.db.First(project, project.ID)
	c.JSON(http.StatusOK, project)
}

// DeleteProject removes a project and everything hanging off it
func (h *Handler) DeleteProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	if err := h.db.Delete(project).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete project", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListStudentProjects returns the projects the student takes part in
func (h *Handler) ListStudentProjects(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.GroupMember
	err := h.db.Preload("Group.Project").
		Where("student_id = ?", userID).
		Order("joined_at DESC").
		Find(&memberships).Error
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch projects", err)
		return
	}

	responses := make([]StudentProjectResponse, len(memberships))
	for i, m := range memberships {
		responses[i] = StudentProjectResponse{
			Project:   m.Group.Project,
			GroupID:   m.GroupID,
			GroupName: m.Group.Name,
			Role:      m.StudentRoleID.String(),
		}
	}
	c.JSON(http.StatusOK, responses)
}

// RegisterAdminRoutes registers project routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	managers := auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor)

	rg.GET("/projects", h.ListProjects)
	rg.POST("/projects", managers, h.CreateProject)
	rg.GET("/projects/:id", h.GetProject)
	rg.PATCH("/projects/:id", managers, h.UpdateProject)
	rg.DELETE("/projects/:id", managers, h.DeleteProject)

	rg.GET("/projects/:id/coordinators", managers, h.ListCoordinators)
	rg.POST("/projects/:id/coordinators", managers, h.AssignCoordinator)
	rg.DELETE("/projects/:id/coordinators/:admin_id", managers, h.RemoveCoordinator)
}

// RegisterStudentRoutes registers project routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects", h.ListStudentProjects)
}
