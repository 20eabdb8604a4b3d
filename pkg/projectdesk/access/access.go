// Package access answers the "may this caller touch that row" questions
// shared by the student and admin handlers.
package access

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParamID parses a positive id from the named path parameter and replies
// 400 when it is not one
func ParamID(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID"})
		return 0, false
	}
	return uint(id), true
}

// QueryID parses an optional positive id from the query string. ok is false
// (and 400 sent) only when the value is present but malformed.
func QueryID(c *gin.Context, name string) (id uint, present, ok bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, true, false
	}
	return uint(v), true, true
}

// ProjectScope returns the projects the calling admin is limited to.
// all is true for every role except Coordinator.
func ProjectScope(db *gorm.DB, c *gin.Context) (all bool, ids []uint, err error) {
	role, _ := auth.GetAdminRole(c)
	if role != models.AdminRoleCoordinator {
		return true, nil, nil
	}
	adminID, _ := auth.GetUserID(c)
	err = db.Model(&models.CoordinatorProject{}).Where("admin_id = ?", adminID).Pluck("project_id", &ids).Error
	return false, ids, err
}

// CanAccessProject reports whether the calling admin may see projectID
func CanAccessProject(db *gorm.DB, c *gin.Context, projectID uint) (bool, error) {
	role, _ := auth.GetAdminRole(c)
	if role != models.AdminRoleCoordinator {
		return true, nil
	}
	adminID, _ := auth.GetUserID(c)
	var count int64
	err := db.Model(&models.CoordinatorProject{}).
		Where("admin_id = ? AND project_id = ?", adminID, projectID).
		Count(&count).Error
	return count > 0, err
}

// ScopeProjects restricts q on column to the caller's projects
func ScopeProjects(db *gorm.DB, c *gin.Context, q *gorm.DB, column string) (*gorm.DB, error) {
	all, ids, err := ProjectScope(db, c)
	if err != nil || all {
		return q, err
	}
	return q.Where(column+" IN ?", append(ids, 0)), nil
}

// Membership returns the student's membership in groupID, or nil
func Membership(db *gorm.DB, studentID, groupID uint) (*models.GroupMember, error) {
	var m models.GroupMember
	err := db.Where("student_id = ? AND group_id = ?", studentID, groupID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ProjectMembership returns the student's membership in any group of
// projectID, or nil
func ProjectMembership(db *gorm.DB, studentID, projectID uint) (*models.GroupMember, error) {
	var m models.GroupMember
	err := db.Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.student_id = ? AND groups.project_id = ?", studentID, projectID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// StudentProjectIDs lists the projects a student is in through group membership
func StudentProjectIDs(db *gorm.DB, studentID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.GroupMember{}).
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.student_id = ?", studentID).
		Distinct().
		Pluck("groups.project_id", &ids).Error
	return ids, err
}

// Lock takes a row lock on the model's row with id for the rest of tx, so
// count-then-insert checks under it cannot interleave. SQLite drops the
// clause and relies on its single writer.
func Lock(tx *gorm.DB, model interface{}, id uint) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(model, id).Error
}
