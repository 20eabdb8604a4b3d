package selections

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
)

// AdminGroupSelection is a group's selection as listed for admins
type AdminGroupSelection struct {
	models.GroupDeliverableSelection
	ProjectID       uint   `json:"project_id"`
	GroupName       string `json:"group_name"`
	DeliverableName string `json:"deliverable_name"`
}

// AdminStudentSelection is a student's selection as listed for admins
type AdminStudentSelection struct {
	StudentSelectionResponse
	StudentEmail string `json:"student_email"`
	StudentName  string `json:"student_name"`
}

// AdminListGroupSelections lists group selections, optionally for one project
func (h *Handler) AdminListGroupSelections(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	q := h.db.Preload("Group").Preload("GroupDeliverable").
		Joins("JOIN groups ON groups.id = group_deliverable_selections.group_id").
		Order("group_deliverable_selections.id ASC")
	if filtered {
		q = q.Where("groups.project_id = ?", projectID)
	}
	q, err := access.ScopeProjects(h.db, c, q, "groups.project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selections", err)
		return
	}

	var rows []models.GroupDeliverableSelection
	if err := q.Find(&rows).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selections", err)
		return
	}

	out := make([]AdminGroupSelection, len(rows))
	for i, s := range rows {
		out[i] = AdminGroupSelection{
			GroupDeliverableSelection: s,
			ProjectID:                 s.Group.ProjectID,
			GroupName:                 s.Group.Name,
			DeliverableName:           s.GroupDeliverable.Name,
		}
	}
	c.JSON(http.StatusOK, out)
}

// AdminListStudentSelections lists student selections, optionally for one project
func (h *Handler) AdminListStudentSelections(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	q := h.db.Preload("Student").Preload("StudentDeliverable").
		Joins("JOIN student_deliverables ON student_deliverables.id = student_deliverable_selections.student_deliverable_id").
		Order("student_deliverable_selections.id ASC")
	if filtered {
		q = q.Where("student_deliverables.project_id = ?", projectID)
	}
	q, err := access.ScopeProjects(h.db, c, q, "student_deliverables.project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selections", err)
		return
	}

	var rows []models.StudentDeliverableSelection
	if err := q.Find(&rows).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selections", err)
		return
	}

	out := make([]AdminStudentSelection, len(rows))
	for i, s := range rows {
		out[i] = AdminStudentSelection{
			StudentSelectionResponse: toStudentSelection(s),
			StudentEmail:             s.Student.Email,
			StudentName:              s.Student.FullName(),
		}
	}
	c.JSON(http.StatusOK, out)
}
