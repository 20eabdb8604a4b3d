package groups

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// AddMemberRequest represents the request to add a student to a group
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RemoveMemberRequest represents the request to remove a student from a group
type RemoveMemberRequest struct {
	StudentID uint `json:"student_id" binding:"required"`
}

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	StudentID     uint                 `json:"student_id"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Email         string               `json:"email"`
	UniversityID  string               `json:"university_id"`
	StudentRoleID models.StudentRoleID `json:"student_role_id"`
	Role          string               `json:"role"`
	JoinedAt      time.Time            `json:"joined_at"`
}

func toMemberResponse(m models.GroupMember) MemberResponse {
	return MemberResponse{
		StudentID:     m.StudentID,
		FirstName:     m.Student.FirstName,
		LastName:      m.Student.LastName,
		Email:         m.Student.Email,
		UniversityID:  m.Student.UniversityID,
		StudentRoleID: m.StudentRoleID,
		Role:          m.StudentRoleID.String(),
		JoinedAt:      m.JoinedAt,
	}
}

func (h *Handler) listMembers(groupID uint) ([]MemberResponse, error) {
	var members []models.GroupMember
	err := h.db.Preload("Student").
		Where("group_id = ?", groupID).
		Order("student_role_id ASC, joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	responses := make([]MemberResponse, len(members))
	for i, m := range members {
		responses[i] = toMemberResponse(m)
	}
	return responses, nil
}

// errJoin carries a client-facing rejection out of a join transaction
type errJoin struct {
	status int
	msg    string
}

func (e *errJoin) Error() string { return e.msg }

// join adds student to group after the pending, membership and capacity
// checks. It runs inside tx so the capacity count and the insert agree.
func (h *Handler) join(tx *gorm.DB, group *models.Group, student *models.Student, role models.StudentRoleID) error {
	if student.IsPending {
		return &errJoin{http.StatusUnprocessableEntity, "Student has not confirmed their email"}
	}

	// the project lock also serializes the one-group-per-project check
	if err := access.Lock(tx, &models.Project{}, group.ProjectID); err != nil {
		return err
	}

	existing, err := access.ProjectMembership(tx, student.ID, group.ProjectID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &errJoin{http.StatusConflict, "Student is already in a group for this project"}
	}

	var count int64
	if err := tx.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(group.Project.MaxGroupSize) {
		return &errJoin{http.StatusConflict, "Group is full"}
	}

	if role == models.StudentRoleGroupLeader {
		var leaders int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND student_role_id = ?", group.ID, models.StudentRoleGroupLeader).
			Count(&leaders).Error; err != nil {
			return err
		}
		if leaders > 0 {
			return &errJoin{http.StatusConflict, "Group already has a leader"}
		}
	}

	err = tx.Create(&models.GroupMember{
		GroupID:       group.ID,
		StudentID:     student.ID,
		StudentRoleID: role,
		JoinedAt:      h.now().UTC(),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &errJoin{http.StatusConflict, "Student is already in this group"}
	}
	return err
}

// leave removes a non-leader member and their deliverable selections in the
// group's project
func (h *Handler) leave(tx *gorm.DB, group *models.Group, studentID uint) error {
	member, err := access.Membership(tx, studentID, group.ID)
	if err != nil {
		return err
	}
	if member == nil {
		return &errJoin{http.StatusNotFound, "Student is not a member of this group"}
	}
	if member.IsLeader() {
		return &errJoin{http.StatusUnprocessableEntity, "The group leader cannot be removed"}
	}
	if err := deleteStudentSelections(tx, studentID, group.ProjectID); err != nil {
		return err
	}
	return tx.Delete(member).Error
}

// replyJoinError writes the reply for an error returned by join or leave
func replyJoinError(c *gin.Context, err error, public string) {
	var je *errJoin
	if errors.As(err, &je) {
		c.JSON(je.status, gin.H{"error": je.msg})
		return
	}
	logging.Fail(c, http.StatusInternalServerError, public, err)
}

// ListMembers returns the members of one of the current student's groups
func (h *Handler) ListMembers(c *gin.Context) {
	group, _, ok := h.memberGroup(c)
	if !ok {
		return
	}

	members, err := h.listMembers(group.ID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch members", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMember adds a student to the group by email (leader only)
func (h *Handler) AddMember(c *gin.Context) {
	group, ok := h.leaderGroup(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var student models.Student
	if err := h.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return h.join(tx, group, &student, models.StudentRoleMember)
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

// RemoveMember removes a student from the group (leader only)
func (h *Handler) RemoveMember(c *gin.Context) {
	group, ok := h.leaderGroup(c)
	if !ok {
		return
	}

	var req RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return h.leave(tx, group, req.StudentID)
	})
	if err != nil {
		replyJoinError(c, err, "Failed to remove member")
		return
	}

	c.Status(http.StatusNoContent)
}
