package selections

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// StudentSelectionRequest picks a student deliverable
type StudentSelectionRequest struct {
	StudentDeliverableID uint `json:"student_deliverable_id" binding:"required"`
}

// StudentSelectionResponse is a student's selection with its deliverable
type StudentSelectionResponse struct {
	models.StudentDeliverableSelection
	ProjectID       uint   `json:"project_id"`
	DeliverableName string `json:"deliverable_name"`
}

func toStudentSelection(s models.StudentDeliverableSelection) StudentSelectionResponse {
	return StudentSelectionResponse{
		StudentDeliverableSelection: s,
		ProjectID:                   s.StudentDeliverable.ProjectID,
		DeliverableName:             s.StudentDeliverable.Name,
	}
}

// selectionInProject returns the student's selection among the project's
// deliverables, or nil
func selectionInProject(db *gorm.DB, studentID, projectID uint) (*models.StudentDeliverableSelection, error) {
	var s models.StudentDeliverableSelection
	err := db.Joins("JOIN student_deliverables ON student_deliverables.id = student_deliverable_selections.student_deliverable_id").
		Where("student_deliverable_selections.student_id = ? AND student_deliverables.project_id = ?", studentID, projectID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// deliverableForStudent loads a student deliverable and checks the student
// may pick from its project and the deadline is open
func (h *Handler) deliverableForStudent(c *gin.Context, studentID, deliverableID uint) (*models.StudentDeliverable, bool) {
	var deliverable models.StudentDeliverable
	if err := h.db.Preload("Project").First(&deliverable, deliverableID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deliverable not found"})
		return nil, false
	}

	member, err := access.ProjectMembership(h.db, studentID, deliverable.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to check project membership", err)
		return nil, false
	}
	if member == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You must be in a group of this project to select a deliverable"})
		return nil, false
	}
	if !h.deadlineOpen(c, deliverable.Project) {
		return nil, false
	}
	return &deliverable, true
}

// loadStudentSelection resolves :id among the current student's selections
func (h *Handler) loadStudentSelection(c *gin.Context) (*models.StudentDeliverableSelection, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := access.ParamID(c, "id", "selection")
	if !ok {
		return nil, false
	}
	var s models.StudentDeliverableSelection
	if err := h.db.Preload("StudentDeliverable.Project").Where("id = ? AND student_id = ?", id, userID).First(&s).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Selection not found"})
		return nil, false
	}
	return &s, true
}

// CreateStudentSelection records the student's deliverable for a project
func (h *Handler) CreateStudentSelection(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req StudentSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverable, ok := h.deliverableForStudent(c, userID, req.StudentDeliverableID)
	if !ok {
		return
	}

	existing, err := selectionInProject(h.db, userID, deliverable.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to check selections", err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "You already selected a deliverable for this project"})
		return
	}

	selection := models.StudentDeliverableSelection{StudentID: userID, StudentDeliverableID: deliverable.ID}
	if err := h.db.Create(&selection).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "You already selected a deliverable for this project"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create selection", err)
		return
	}

	selection.StudentDeliverable = *deliverable
	c.JSON(http.StatusCreated, toStudentSelection(selection))
}

// ListStudentSelections returns all of the current student's selections
func (h *Handler) ListStudentSelections(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var selections []models.StudentDeliverableSelection
	if err := h.db.Preload("StudentDeliverable").Where("student_id = ?", userID).Order("id ASC").Find(&selections).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selections", err)
		return
	}

	out := make([]StudentSelectionResponse, len(selections))
	for i, s := range selections {
		out[i] = toStudentSelection(s)
	}
	c.JSON(http.StatusOK, out)
}

// UpdateStudentSelection switches to another deliverable of the same project
func (h *Handler) UpdateStudentSelection(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	selection, ok := h.loadStudentSelection(c)
	if !ok {
		return
	}

	var req StudentSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverable, ok := h.deliverableForStudent(c, userID, req.StudentDeliverableID)
	if !ok {
		return
	}
	if deliverable.ProjectID != selection.StudentDeliverable.ProjectID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deliverable belongs to another project"})
		return
	}

	// a bare model keeps gorm from saving the preloaded deliverable back over the new id
	err := h.db.Model(&models.StudentDeliverableSelection{ID: selection.ID}).
		Update("student_deliverable_id", deliverable.ID).Error
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to update selection", err)
		return
	}

	var updated models.StudentDeliverableSelection
	if err := h.db.Preload("StudentDeliverable").First(&updated, selection.ID).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selection", err)
		return
	}
	c.JSON(http.StatusOK, toStudentSelection(updated))
}

// DeleteStudentSelection withdraws a selection together with its uploads
func (h *Handler) DeleteStudentSelection(c *gin.Context) {
	selection, ok := h.loadStudentSelection(c)
	if !ok {
		return
	}
	if !h.deadlineOpen(c, selection.StudentDeliverable.Project) {
		return
	}

	var paths []string
	if err := h.db.Model(&models.StudentUpload{}).Where("student_deliverable_selection_id = ?", selection.ID).Pluck("path", &paths).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch uploads", err)
		return
	}
	if err := h.db.Delete(selection).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete selection", err)
		return
	}

	if h.store != nil {
		for _, p := range paths {
			if err := h.store.Delete(c.Request.Context(), p); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Error.Printf("Failed to delete stored upload %s: %v", p, err)
			}
		}
	}
	c.Status(http.StatusNoContent)
}
