package catalog

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

// CreateItemRequest creates a deliverable or component
type CreateItemRequest struct {
	ProjectID uint   `json:"project_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Sellable  *bool  `json:"sellable"`
}

// UpdateItemRequest renames a deliverable or component
type UpdateItemRequest struct {
	Name     *string `json:"name"`
	Sellable *bool   `json:"sellable"`
}

// sellable is implemented by components that can be traded at fairs
type sellable interface {
	SetSellable(bool)
}

// items serves CRUD for one catalog table. PT is the pointer type of T.
type items[T any, PT interface {
	*T
	models.CatalogItem
}] struct {
	db    *gorm.DB
	label string
}

func newItems[T any, PT interface {
	*T
	models.CatalogItem
}](db *gorm.DB, label string) *items[T, PT] {
	return &items[T, PT]{db: db, label: label}
}

func (h *items[T, PT]) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": h.label + " not found"})
}

func (h *items[T, PT]) conflict(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{"error": "A " + strings.ToLower(h.label) + " with this name already exists in the project"})
}

func (h *items[T, PT]) load(c *gin.Context) (PT, bool) {
	id, ok := access.ParamID(c, "id", strings.ToLower(h.label))
	if !ok {
		return nil, false
	}
	var item T
	if err := h.db.First(&item, id).Error; err != nil {
		h.notFound(c)
		return nil, false
	}
	return PT(&item), true
}

// views loads the rows with the given ids ordered by name
func (h *items[T, PT]) views(ids []uint) ([]models.CatalogView, error) {
	out := []models.CatalogView{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []T
	if err := h.db.Where("id IN ?", ids).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out = append(out, PT(&rows[i]).View())
	}
	return out, nil
}

// projectOf returns the project of the row with id
func (h *items[T, PT]) projectOf(id uint) (uint, error) {
	var item T
	if err := h.db.First(&item, id).Error; err != nil {
		return 0, err
	}
	return PT(&item).View().ProjectID, nil
}

// inProject lists a project's rows ordered by name
func (h *items[T, PT]) inProject(projectID uint) ([]models.CatalogView, error) {
	var rows []T
	if err := h.db.Where("project_id = ?", projectID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.CatalogView, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i]).View()
	}
	return out, nil
}

func (h *items[T, PT]) List(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	var rows []T
	q := h.db.Order("project_id ASC, name ASC")
	if filtered {
		q = q.Where("project_id = ?", projectID)
	}
	if err := q.Find(&rows).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch "+strings.ToLower(h.label)+"s", err)
		return
	}

	out := make([]models.CatalogView, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i]).View()
	}
	c.JSON(http.StatusOK, out)
}

func (h *items[T, PT]) Get(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, item.View())
}

func (h *items[T, PT]) Create(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}

	var project models.Project
	if err := h.db.First(&project, req.ProjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	var item T
	p := PT(&item)
	p.Assign(project.ID, name)
	if s, ok := any(p).(sellable); ok && req.Sellable != nil {
		s.SetSellable(*req.Sellable)
	}

	if err := h.db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.conflict(c)
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create "+strings.ToLower(h.label), err)
		return
	}

	c.JSON(http.StatusCreated, p.View())
}

func (h *items[T, PT]) Update(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if req.Sellable != nil {
		if _, ok := any(item).(sellable); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": h.label + " has no sellable flag"})
			return
		}
		updates["sellable"] = *req.Sellable
	}

	if len(updates) > 0 {
		if err := h.db.Model(item).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				h.conflict(c)
				return
			}
			logging.Fail(c, http.StatusInternalServerError, "Failed to update "+strings.ToLower(h.label), err)
			return
		}
	}

	h.db.First(item, item.View().ID)
	c.JSON(http.StatusOK, item.View())
}

func (h *items[T, PT]) Delete(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.Delete(item).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete "+strings.ToLower(h.label), err)
		return
	}
	c.Status(http.StatusNoContent)
}
