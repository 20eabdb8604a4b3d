package groups

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
	"github.com/mikepea/projectdesk/pkg/projectdesk/securitycodes"
	"gorm.io/gorm"
)

// Handler handles group requests
type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: time.Now}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name         string `json:"name" binding:"required"`
	SecurityCode string `json:"security_code" binding:"required"`
}

// UpdateGroupRequest renames a group
type UpdateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// CheckNameRequest asks whether a group name is taken in a project
type CheckNameRequest struct {
	ProjectID uint   `json:"project_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID          uint      `json:"id"`
	ProjectID   uint      `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Role        string    `json:"role,omitempty"`
	MemberCount int64     `json:"member_count"`
}

func (h *Handler) toResponse(g models.Group, role string) GroupResponse {
	var count int64
	h.db.Model(&models.GroupMember{}).Where("group_id = ?", g.ID).Count(&count)
	return GroupResponse{
		ID:          g.ID,
		ProjectID:   g.ProjectID,
		ProjectName: g.Project.Name,
		Name:        g.Name,
		CreatedAt:   g.CreatedAt,
		Role:        role,
		MemberCount: count,
	}
}

// deleteStudentSelections drops a student's deliverable selections within a
// project. Leaving a group takes the student's selection with it.
func deleteStudentSelections(tx *gorm.DB, studentID, projectID uint) error {
	return tx.Where("student_id = ? AND student_deliverable_id IN (?)", studentID,
		tx.Model(&models.StudentDeliverable{}).Select("id").Where("project_id = ?", projectID),
	).Delete(&models.StudentDeliverableSelection{}).Error
}

// CreateGroup opens a group in the project of a security code. The creator
// becomes its leader.
func (h *Handler) CreateGroup(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}

	var code models.SecurityCode
	if err := h.db.Where("code = ?", securitycodes.Normalize(req.SecurityCode)).First(&code).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Security code not found"})
		return
	}
	if code.Expired(h.now()) {
		c.JSON(http.StatusGone, gin.H{"error": "Security code has expired"})
		return
	}

	var student models.Student
	if err := h.db.First(&student, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	if student.IsPending {
		c.JSON(http.StatusForbidden, gin.H{"error": "Confirm your email before joining a group"})
		return
	}

	var project models.Project
	if err := h.db.First(&project, code.ProjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	group := models.Group{ProjectID: project.ID, Name: name}
	var conflict string
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := access.Lock(tx, &models.Project{}, project.ID); err != nil {
			return err
		}
		existing, err := access.ProjectMembership(tx, userID, project.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			conflict = "You are already in a group for this project"
			return nil
		}

		if project.MaxGroups > 0 {
			var count int64
			if err := tx.Model(&models.Group{}).Where("project_id = ?", project.ID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(project.MaxGroups) {
				conflict = "The project has reached its maximum number of groups"
				return nil
			}
		}

		if err := tx.Create(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				conflict = "A group with this name already exists in the project"
				return nil
			}
			return err
		}
		return tx.Create(&models.GroupMember{
			GroupID:       group.ID,
			StudentID:     userID,
			StudentRoleID: models.StudentRoleGroupLeader,
			JoinedAt:      h.now().UTC(),
		}).Error
	})
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to create group", err)
		return
	}
	if conflict != "" {
		c.JSON(http.StatusConflict, gin.H{"error": conflict})
		return
	}

	group.Project = project
	c.JSON(http.StatusCreated, h.toResponse(group, models.StudentRoleGroupLeader.String()))
}

// ListGroups returns the current student's groups
func (h *Handler) ListGroups(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.GroupMember
	if err := h.db.Preload("Group.Project").Where("student_id = ?", userID).Find(&memberships).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch groups", err)
		return
	}

	responses := make([]GroupResponse, len(memberships))
	for i, m := range memberships {
		responses[i] = h.toResponse(m.Group, m.StudentRoleID.String())
	}
	c.JSON(http.StatusOK, responses)
}

// GetGroup returns one of the current student's groups
func (h *Handler) GetGroup(c *gin.Context) {
	group, member, ok := h.memberGroup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(*group, member.StudentRoleID.String()))
}

// CheckName reports whether a group name is already used in a project
func (h *Handler) CheckName(c *gin.Context) {
	var req CheckNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	h.db.Model(&models.Group{}).Where("project_id = ? AND name = ?", req.ProjectID, strings.TrimSpace(req.Name)).Count(&count)
	c.JSON(http.StatusOK, gin.H{"exists": count > 0})
}

// UpdateGroup renames a group (leader only)
func (h *Handler) UpdateGroup(c *gin.Context) {
	group, ok := h.leaderGroup(c)
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}

	if err := h.db.Model(group).Update("name", name).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "A group with this name already exists in the project"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to update group", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(*group, models.StudentRoleGroupLeader.String()))
}

// DeleteGroup removes a group with its members (leader only)
func (h *Handler) DeleteGroup(c *gin.Context) {
	group, ok := h.leaderGroup(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var studentIDs []uint
		if err := tx.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Pluck("student_id", &studentIDs).Error; err != nil {
			return err
		}
		for _, id := range studentIDs {
			if err := deleteStudentSelections(tx, id, group.ProjectID); err != nil {
				return err
			}
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete group", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// memberGroup loads the group in the :id path parameter, replying 404
// unless the current student belongs to it
func (h *Handler) memberGroup(c *gin.Context) (*models.Group, *models.GroupMember, bool) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := access.ParamID(c, "id", "group")
	if !ok {
		return nil, nil, false
	}

	member, err := access.Membership(h.db, userID, groupID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch group", err)
		return nil, nil, false
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, nil, false
	}

	var group models.Group
	if err := h.db.Preload("Project").First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, nil, false
	}
	return &group, member, true
}

// leaderGroup is memberGroup restricted to the group's leader
func (h *Handler) leaderGroup(c *gin.Context) (*models.Group, bool) {
	group, member, ok := h.memberGroup(c)
	if !ok {
		return nil, false
	}
	if !member.IsLeader() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the group leader can do this"})
		return nil, false
	}
	return group, true
}

// RegisterStudentRoutes registers group routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.POST("/groups", h.CreateGroup)
	rg.GET("/groups", h.ListGroups)
	rg.POST("/groups/check-name", h.CheckName)
	rg.GET("/groups/:id", h.GetGroup)
	rg.PATCH("/groups/:id", h.UpdateGroup)
	rg.DELETE("/groups/:id", h.DeleteGroup)
	rg.GET("/groups/:id/members", h.ListMembers)
	rg.POST("/groups/:id/members", h.AddMember)
	rg.DELETE("/groups/:id/members", h.RemoveMember)
}

// RegisterAdminRoutes registers group routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/groups/projects/:project_id", h.AdminListGroups)
	rg.GET("/groups/:id", h.AdminGetGroup)
	rg.POST("/groups/:id/members", h.AdminAddMember)
	rg.DELETE("/groups/:id/members/:student_id", h.AdminRemoveMember)
	rg.PATCH("/groups/:id/leader", h.AdminChangeLeader)
}
