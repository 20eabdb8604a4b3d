package selections

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// CreateGroupSelectionRequest picks the group's deliverable
type CreateGroupSelectionRequest struct {
	GroupDeliverableID uint `json:"group_deliverable_id" binding:"required"`
}

// GroupSelectionResponse is a group's selection with its deliverable name
type GroupSelectionResponse struct {
	models.GroupDeliverableSelection
	DeliverableName string `json:"deliverable_name"`
}

// CreateGroupSelection commits the group to a deliverable. The choice is final.
func (h *Handler) CreateGroupSelection(c *gin.Context) {
	gc, ok := h.loadGroup(c, true)
	if !ok {
		return
	}

	var req CreateGroupSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	h.db.Model(&models.GroupDeliverableSelection{}).Where("group_id = ?", gc.group.ID).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "The group has already selected a deliverable"})
		return
	}

	var deliverable models.GroupDeliverable
	if err := h.db.First(&deliverable, req.GroupDeliverableID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deliverable not found"})
		return
	}
	if deliverable.ProjectID != gc.group.ProjectID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deliverable belongs to another project"})
		return
	}
	if !h.deadlineOpen(c, gc.group.Project) {
		return
	}

	selection := models.GroupDeliverableSelection{GroupID: gc.group.ID, GroupDeliverableID: deliverable.ID}
	if err := h.db.Create(&selection).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "The group has already selected a deliverable"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create selection", err)
		return
	}

	c.JSON(http.StatusCreated, GroupSelectionResponse{GroupDeliverableSelection: selection, DeliverableName: deliverable.Name})
}

// GetGroupSelection returns the group's selection to any member
func (h *Handler) GetGroupSelection(c *gin.Context) {
	gc, ok := h.loadGroup(c, false)
	if !ok {
		return
	}

	var selection models.GroupDeliverableSelection
	if err := h.db.Preload("GroupDeliverable").Where("group_id = ?", gc.group.ID).First(&selection).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "The group has not selected a deliverable"})
		return
	}

	c.JSON(http.StatusOK, GroupSelectionResponse{GroupDeliverableSelection: selection, DeliverableName: selection.GroupDeliverable.Name})
}
