package groups

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// AdminAddMemberRequest adds a student to a group with a role
type AdminAddMemberRequest struct {
	StudentEmail string               `json:"student_email" binding:"required,email"`
	RoleID       models.StudentRoleID `json:"role_id"`
}

// ChangeLeaderRequest hands group leadership to another member
type ChangeLeaderRequest struct {
	NewLeaderStudentID uint `json:"new_leader_student_id" binding:"required"`
	RemoveOldLeader    bool `json:"remove_old_leader"`
}

// GroupDetailResponse is the admin view of a group
type GroupDetailResponse struct {
	GroupResponse
	Members           []MemberResponse                            `json:"members"`
	Selection         *models.GroupDeliverableSelection           `json:"selection"`
	DeliverableName   string                                      `json:"deliverable_name,omitempty"`
	Details           []models.GroupComponentImplementationDetail `json:"implementation_details"`
	StudentSelections []models.StudentDeliverableSelection        `json:"student_selections"`
}

// adminGroup loads the group in :id, replying 404 when it does not exist or
// lies outside the caller's projects
func (h *Handler) adminGroup(c *gin.Context) (*models.Group, bool) {
	groupID, ok := access.ParamID(c, "id", "group")
	if !ok {
		return nil, false
	}

	var group models.Group
	if err := h.db.Preload("Project").First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}

	allowed, err := access.CanAccessProject(h.db, c, group.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch group", err)
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	return &group, true
}

// AdminListGroups lists the groups of a project
func (h *Handler) AdminListGroups(c *gin.Context) {
	projectID, ok := access.ParamID(c, "project_id", "project")
	if !ok {
		return
	}

	allowed, err := access.CanAccessProject(h.db, c, projectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch groups", err)
		return
	}
	var project models.Project
	if !allowed || h.db.First(&project, projectID).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	var groups []models.Group
	if err := h.db.Where("project_id = ?", projectID).Order("name ASC").Find(&groups).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch groups", err)
		return
	}

	responses := make([]GroupResponse, len(groups))
	for i, g := range groups {
		g.Project = project
		responses[i] = h.toResponse(g, "")
	}
	c.JSON(http.StatusOK, responses)
}

// AdminGetGroup returns a group with its members and selections
func (h *Handler) AdminGetGroup(c *gin.Context) {
	group, ok := h.adminGroup(c)
	if !ok {
		return
	}

	members, err := h.listMembers(group.ID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch members", err)
		return
	}

	resp := GroupDetailResponse{
		GroupResponse:     h.toResponse(*group, ""),
		Members:           members,
		Details:           []models.GroupComponentImplementationDetail{},
		StudentSelections: []models.StudentDeliverableSelection{},
	}

	var selection models.GroupDeliverableSelection
	err = h.db.Preload("GroupDeliverable").Where("group_id = ?", group.ID).First(&selection).Error
	switch {
	case err == nil:
		resp.Selection = &selection
		resp.DeliverableName = selection.GroupDeliverable.Name
		if err := h.db.Where("group_deliverable_selection_id = ?", selection.ID).
			Order("group_deliverable_component_id ASC").
			Find(&resp.Details).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to fetch implementation details", err)
			return
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selection", err)
		return
	}

	studentIDs := make([]uint, len(members))
	for i, m := range members {
		studentIDs[i] = m.StudentID
	}
	if len(studentIDs) > 0 {
		err := h.db.Joins("JOIN student_deliverables ON student_deliverables.id = student_deliverable_selections.student_deliverable_id").
			Where("student_deliverable_selections.student_id IN ? AND student_deliverables.project_id = ?", studentIDs, group.ProjectID).
			Find(&resp.StudentSelections).Error
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to fetch student selections", err)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// AdminAddMember places a student in a group with the requested role
func (h *Handler) AdminAddMember(c *gin.Context) {
	group, ok := h.adminGroup(c)
	if !ok {
		return
	}

	var req AdminAddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RoleID == 0 {
		req.RoleID = models.StudentRoleMember
	}
	if !req.RoleID.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student role"})
		return
	}

	var student models.Student
	if err := h.db.Where("email = ?", strings.TrimSpace(req.StudentEmail)).First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return h.join(tx, group, &student, req.RoleID)
	})
	if err != nil {
		replyJoinError(c, err, "Failed to add member")
		return
	}

	members, err := h.listMembers(group.ID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch members", err)
		return
	}
	c.JSON(http.StatusCreated, members)
}

// AdminRemoveMember removes a non-leader member from a group
func (h *Handler) AdminRemoveMember(c *gin.Context) {
	group, ok := h.adminGroup(c)
	if !ok {
		return
	}
	studentID, ok := access.ParamID(c, "student_id", "student")
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return h.leave(tx, group, studentID)
	})
	if err != nil {
		replyJoinError(c, err, "Failed to remove member")
		return
	}

	c.Status(http.StatusNoContent)
}

// AdminChangeLeader promotes a member to leader, demoting or removing the
// current leader
func (h *Handler) AdminChangeLeader(c *gin.Context) {
	group, ok := h.adminGroup(c)
	if !ok {
		return
	}

	var req ChangeLeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		next, err := access.Membership(tx, req.NewLeaderStudentID, group.ID)
		if err != nil {
			return err
		}
		if next == nil {
			return &errJoin{http.StatusNotFound, "Student is not a member of this group"}
		}
		if next.IsLeader() {
			return &errJoin{http.StatusUnprocessableEntity, "Student already leads this group"}
		}

		var current []models.GroupMember
		if err := tx.Where("group_id = ? AND student_role_id = ?", group.ID, models.StudentRoleGroupLeader).
			Find(&current).Error; err != nil {
			return err
		}
		for _, old := range current {
			if req.RemoveOldLeader {
				if err := deleteStudentSelections(tx, old.StudentID, group.ProjectID); err != nil {
					return err
				}
				if err := tx.Delete(&old).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&old).Update("student_role_id", models.StudentRoleMember).Error; err != nil {
				return err
			}
		}

		return tx.Model(next).Update("student_role_id", models.StudentRoleGroupLeader).Error
	})
	if err != nil {
		replyJoinError(c, err, "Failed to change leader")
		return
	}

	members, err := h.listMembers(group.ID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch members", err)
		return
	}
	c.JSON(http.StatusOK, members)
}
