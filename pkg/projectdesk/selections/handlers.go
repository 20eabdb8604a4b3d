// Package selections records which deliverable each group and student
// commits to, and the per-component implementation notes of a group.
package selections

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"gorm.io/gorm"
)

// Handler handles selection requests
type Handler struct {
	db    *gorm.DB
	store storage.Store
	now   func() time.Time
}

// NewHandler creates a new selections handler. store may be nil, in which
// case files of withdrawn selections are left in place.
func NewHandler(db *gorm.DB, store storage.Store) *Handler {
	return &Handler{db: db, store: store, now: time.Now}
}

// groupContext is a group seen by one of its members
type groupContext struct {
	group  models.Group
	member models.GroupMember
}

// loadGroup resolves :group_id for the current student. Non-members get 404,
// and when leader is set, members who do not lead get 403.
func (h *Handler) loadGroup(c *gin.Context, leader bool) (*groupContext, bool) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := access.ParamID(c, "group_id", "group")
	if !ok {
		return nil, false
	}

	member, err := access.Membership(h.db, userID, groupID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch group", err)
		return nil, false
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	if leader && !member.IsLeader() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the group leader can do this"})
		return nil, false
	}

	var group models.Group
	if err := h.db.Preload("Project").First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	return &groupContext{group: group, member: *member}, true
}

// deadlineOpen replies 422 once the project's selection deadline has passed
func (h *Handler) deadlineOpen(c *gin.Context, project models.Project) bool {
	if project.SelectionDeadlinePassed(h.now()) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "The deliverable selection deadline has passed"})
		return false
	}
	return true
}

// RegisterStudentRoutes registers selection routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.POST("/group-deliverable-selections/:group_id", h.CreateGroupSelection)
	rg.GET("/group-deliverable-selections/:group_id", h.GetGroupSelection)

	rg.POST("/group-component-implementation-details/:group_id", h.CreateDetail)
	rg.GET("/group-component-implementation-details/:group_id", h.ListDetails)
	rg.PATCH("/group-component-implementation-details/:group_id/:component_id", h.UpdateDetail)
	rg.DELETE("/group-component-implementation-details/:group_id/:component_id", h.DeleteDetail)

	rg.POST("/deliverable-selection", h.CreateStudentSelection)
	rg.GET("/deliverable-selection", h.ListStudentSelections)
	rg.PATCH("/deliverable-selection/:id", h.UpdateStudentSelection)
	rg.DELETE("/deliverable-selection/:id", h.DeleteStudentSelection)
}

// RegisterAdminRoutes registers read-only selection routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/group-deliverable-selections", h.AdminListGroupSelections)
	rg.GET("/student-deliverable-selections", h.AdminListStudentSelections)
}
