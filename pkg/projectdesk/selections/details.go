package selections

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

// CreateDetailRequest documents one component of the selected deliverable
type CreateDetailRequest struct {
	ComponentID         uint   `json:"component_id" binding:"required"`
	MarkdownDescription string `json:"markdown_description" binding:"required"`
	RepositoryLink      string `json:"repository_link" binding:"required,url"`
}

// UpdateDetailRequest changes a component's implementation notes
type UpdateDetailRequest struct {
	MarkdownDescription *string `json:"markdown_description"`
	RepositoryLink      *string `json:"repository_link" binding:"omitempty,url"`
}

// groupSelection loads the selection of the group in gc, replying 404 when
// there is none yet
func (h *Handler) groupSelection(c *gin.Context, gc *groupContext) (*models.GroupDeliverableSelection, bool) {
	var selection models.GroupDeliverableSelection
	err := h.db.Where("group_id = ?", gc.group.ID).First(&selection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "The group must select a deliverable first"})
		return nil, false
	}
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch selection", err)
		return nil, false
	}
	return &selection, true
}

// loadDetail resolves :component_id within the group's selection
func (h *Handler) loadDetail(c *gin.Context, gc *groupContext) (*models.GroupComponentImplementationDetail, bool) {
	selection, ok := h.groupSelection(c, gc)
	if !ok {
		return nil, false
	}
	componentID, ok := access.ParamID(c, "component_id", "component")
	if !ok {
		return nil, false
	}

	var detail models.GroupComponentImplementationDetail
	err := h.db.Where("group_deliverable_selection_id = ? AND group_deliverable_component_id = ?", selection.ID, componentID).
		First(&detail).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Implementation details not found"})
		return nil, false
	}
	return &detail, true
}

// CreateDetail adds implementation notes for a component (leader only)
func (h *Handler) CreateDetail(c *gin.Context) {
	gc, ok := h.loadGroup(c, true)
	if !ok {
		return
	}

	var req CreateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.MarkdownDescription) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Markdown description cannot be empty"})
		return
	}

	selection, ok := h.groupSelection(c, gc)
	if !ok {
		return
	}

	var count int64
	h.db.Model(&models.GroupDeliverablesComponent{}).
		Where("group_deliverable_id = ? AND group_deliverable_component_id = ?", selection.GroupDeliverableID, req.ComponentID).
		Count(&count)
	if count == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Component is not part of the selected deliverable"})
		return
	}
	if !h.deadlineOpen(c, gc.group.Project) {
		return
	}

	detail := models.GroupComponentImplementationDetail{
		GroupDeliverableSelectionID: selection.ID,
		GroupDeliverableComponentID: req.ComponentID,
		MarkdownDescription:         req.MarkdownDescription,
		RepositoryLink:              strings.TrimSpace(req.RepositoryLink),
	}
	if err := h.db.Create(&detail).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Implementation details already exist for this component"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create implementation details", err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// ListDetails returns the group's implementation notes to any member
func (h *Handler) ListDetails(c *gin.Context) {
	gc, ok := h.loadGroup(c, false)
	if !ok {
		return
	}
	selection, ok := h.groupSelection(c, gc)
	if !ok {
		return
	}

	details := []models.GroupComponentImplementationDetail{}
	if err := h.db.Where("group_deliverable_selection_id = ?", selection.ID).
		Order("group_deliverable_component_id ASC").
		Find(&details).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch implementation details", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// UpdateDetail edits a component's implementation notes (leader only)
func (h *Handler) UpdateDetail(c *gin.Context) {
	gc, ok := h.loadGroup(c, true)
	if !ok {
		return
	}
	detail, ok := h.loadDetail(c, gc)
	if !ok {
		return
	}

	var req UpdateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.deadlineOpen(c, gc.group.Project) {
		return
	}

	updates := make(map[string]interface{})
	if req.MarkdownDescription != nil {
		if strings.TrimSpace(*req.MarkdownDescription) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Markdown description cannot be empty"})
			return
		}
		updates["markdown_description"] = *req.MarkdownDescription
	}
	if req.RepositoryLink != nil {
		updates["repository_link"] = strings.TrimSpace(*req.RepositoryLink)
	}

	if len(updates) > 0 {
		if err := h.db.Model(detail).Updates(updates).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to update implementation details", err)
			return
		}
	}

	h.db.First(detail, detail.ID)
	c.JSON(http.StatusOK, detail)
}

// DeleteDetail removes a component's implementation notes (leader only)
func (h *Handler) DeleteDetail(c *gin.Context) {
	gc, ok := h.loadGroup(c, true)
	if !ok {
		return
	}
	detail, ok := h.loadDetail(c, gc)
	if !ok {
		return
	}
	if !h.deadlineOpen(c, gc.group.Project) {
		return
	}

	if err := h.db.Delete(detail).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete implementation details", err)
		return
	}
	c.Status(http.StatusNoContent)
}
