// Package complaints lets one group raise an issue about another group of
// the same project.
package complaints

import (
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

// MaxTextLength bounds the complaint body
const MaxTextLength = 5000

// Handler handles complaint requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new complaints handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateComplaintRequest files a complaint against another group
type CreateComplaintRequest struct {
	ToGroupID uint   `json:"to_group_id" binding:"required"`
	Text      string `json:"text" binding:"required,max=5000"`
}

// ComplaintResponse represents a complaint in API responses
type ComplaintResponse struct {
	ID            uint      `json:"id"`
	ProjectID     uint      `json:"project_id"`
	FromGroupID   uint      `json:"from_group_id"`
	FromGroupName string    `json:"from_group_name"`
	ToGroupID     uint      `json:"to_group_id"`
	ToGroupName   string    `json:"to_group_name"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(c models.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:            c.ID,
		ProjectID:     c.FromGroup.ProjectID,
		FromGroupID:   c.FromGroupID,
		FromGroupName: c.FromGroup.Name,
		ToGroupID:     c.ToGroupID,
		ToGroupName:   c.ToGroup.Name,
		Text:          c.Text,
		CreatedAt:     c.CreatedAt,
	}
}

func (h *Handler) list(q *gorm.DB) ([]ComplaintResponse, error) {
	var rows []models.Complaint
	if err := q.Preload("FromGroup").Preload("ToGroup").Order("complaints.created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ComplaintResponse, len(rows))
	for i, c := range rows {
		out[i] = toResponse(c)
	}
	return out, nil
}

// memberGroup resolves :id among the current student's groups
func (h *Handler) memberGroup(c *gin.Context) (*models.Group, bool) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := access.ParamID(c, "id", "group")
	if !ok {
		return nil, false
	}
	member, err := access.Membership(h.db, userID, groupID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch group", err)
		return nil, false
	}
	var group models.Group
	if member == nil || h.db.First(&group, groupID).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	return &group, true
}

// CreateComplaint files a complaint from one of the student's groups
func (h *Handler) CreateComplaint(c *gin.Context) {
	from, ok := h.memberGroup(c)
	if !ok {
		return
	}

	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text cannot be empty"})
		return
	}

	var to models.Group
	if err := h.db.First(&to, req.ToGroupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target group not found"})
		return
	}
	if to.ID == from.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A group cannot complain about itself"})
		return
	}
	if to.ProjectID != from.ProjectID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Groups belong to different projects"})
		return
	}

	complaint := models.Complaint{FromGroupID: from.ID, ToGroupID: to.ID, Text: text}
	if err := h.db.Create(&complaint).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to create complaint", err)
		return
	}

	complaint.FromGroup, complaint.ToGroup = *from, to
	c.JSON(http.StatusCreated, toResponse(complaint))
}

// ListGroupComplaints lists complaints the group filed
func (h *Handler) ListGroupComplaints(c *gin.Context) {
	group, ok := h.memberGroup(c)
	if !ok {
		return
	}

	out, err := h.list(h.db.Where("from_group_id = ?", group.ID))
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch complaints", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AdminListComplaints lists complaints, optionally for one project
func (h *Handler) AdminListComplaints(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	q := h.db.Joins("JOIN groups ON groups.id = complaints.from_group_id")
	if filtered {
		q = q.Where("groups.project_id = ?", projectID)
	}
	q, err := access.ScopeProjects(h.db, c, q, "groups.project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch complaints", err)
		return
	}

	out, err := h.list(q)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch complaints", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AdminDeleteComplaint removes a complaint
func (h *Handler) AdminDeleteComplaint(c *gin.Context) {
	id, ok := access.ParamID(c, "id", "complaint")
	if !ok {
		return
	}

	var complaint models.Complaint
	if err := h.db.Preload("FromGroup").First(&complaint, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
		return
	}
	allowed, err := access.CanAccessProject(h.db, c, complaint.FromGroup.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete complaint", err)
		return
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
		return
	}

	if err := h.db.Delete(&complaint).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete complaint", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterStudentRoutes registers complaint routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.POST("/groups/:id/complaints", h.CreateComplaint)
	rg.GET("/groups/:id/complaints", h.ListGroupComplaints)
}

// RegisterAdminRoutes registers complaint routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/complaints", h.AdminListComplaints)
	rg.DELETE("/complaints/:id", auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor, models.AdminRoleCoordinator), h.AdminDeleteComplaint)
}
