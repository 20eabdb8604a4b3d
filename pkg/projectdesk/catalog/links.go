package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// CreateLinkRequest attaches a component to a deliverable
type CreateLinkRequest struct {
	DeliverableID uint `json:"deliverable_id" binding:"required"`
	ComponentID   uint `json:"component_id" binding:"required"`
	Quantity      int  `json:"quantity" binding:"omitempty,gte=1"`
}

// UpdateLinkRequest changes how many of a component a deliverable needs
type UpdateLinkRequest struct {
	Quantity int `json:"quantity" binding:"required,gte=1"`
}

// LinkedItem is a deliverable or component reached through a join row
type LinkedItem struct {
	LinkID   uint               `json:"link_id"`
	Quantity int                `json:"quantity"`
	Item     models.CatalogView `json:"item"`
}

type lookup interface {
	views(ids []uint) ([]models.CatalogView, error)
	projectOf(id uint) (uint, error)
}

// links serves the deliverable/component join table of one scope
type links[L any, PL interface {
	*L
	models.CatalogLink
}] struct {
	db           *gorm.DB
	deliverables lookup
	components   lookup
}

func newLinks[L any, PL interface {
	*L
	models.CatalogLink
}](db *gorm.DB, deliverables, components lookup) *links[L, PL] {
	return &links[L, PL]{db: db, deliverables: deliverables, components: components}
}

func columns[L any, PL interface {
	*L
	models.CatalogLink
}]() (string, string) {
	var l L
	return PL(&l).Columns()
}

func (h *links[L, PL]) load(c *gin.Context) (PL, bool) {
	id, ok := access.ParamID(c, "id", "link")
	if !ok {
		return nil, false
	}
	var link L
	if err := h.db.First(&link, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return nil, false
	}
	return PL(&link), true
}

func (h *links[L, PL]) List(c *gin.Context) {
	dcol, ccol := columns[L, PL]()
	q := h.db.Order("id ASC")
	for param, column := range map[string]string{"deliverable_id": dcol, "component_id": ccol} {
		id, present, ok := access.QueryID(c, param)
		if !ok {
			return
		}
		if present {
			q = q.Where(column+" = ?", id)
		}
	}

	var rows []L
	if err := q.Find(&rows).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch links", err)
		return
	}
	out := make([]models.LinkView, len(rows))
	for i := range rows {
		out[i] = PL(&rows[i]).View()
	}
	c.JSON(http.StatusOK, out)
}

func (h *links[L, PL]) Create(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	deliverableProject, err := h.deliverables.projectOf(req.DeliverableID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deliverable not found"})
		return
	}
	componentProject, err := h.components.projectOf(req.ComponentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	if deliverableProject != componentProject {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deliverable and component belong to different projects"})
		return
	}

	var link L
	p := PL(&link)
	p.Assign(req.DeliverableID, req.ComponentID, req.Quantity)
	if err := h.db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Component is already part of this deliverable"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create link", err)
		return
	}

	c.JSON(http.StatusCreated, p.View())
}

func (h *links[L, PL]) Update(c *gin.Context) {
	link, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Model(link).Update("quantity", req.Quantity).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to update link", err)
		return
	}
	link.SetQuantity(req.Quantity)
	c.JSON(http.StatusOK, link.View())
}

func (h *links[L, PL]) Delete(c *gin.Context) {
	link, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.Delete(link).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete link", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// related returns the rows on the other side of the join for id
func (h *links[L, PL]) related(id uint, fromDeliverable bool) ([]LinkedItem, error) {
	dcol, ccol := columns[L, PL]()
	from, other := dcol, h.components
	if !fromDeliverable {
		from, other = ccol, h.deliverables
	}

	var rows []L
	if err := h.db.Where(from+" = ?", id).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.LinkView, len(rows))
	ids := make([]uint, 0, len(rows))
	for i := range rows {
		v := PL(&rows[i]).View()
		target := v.ComponentID
		if !fromDeliverable {
			target = v.DeliverableID
		}
		byID[target] = v
		ids = append(ids, target)
	}

	views, err := other.views(ids)
	if err != nil {
		return nil, err
	}
	out := make([]LinkedItem, len(views))
	for i, v := range views {
		link := byID[v.ID]
		out[i] = LinkedItem{LinkID: link.ID, Quantity: link.Quantity, Item: v}
	}
	return out, nil
}

func (h *links[L, PL]) relatedHandler(fromDeliverable bool, label string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := access.ParamID(c, "id", label)
		if !ok {
			return
		}
		side := h.components
		if fromDeliverable {
			side = h.deliverables
		}
		if _, err := side.projectOf(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		out, err := h.related(id, fromDeliverable)
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to fetch links", err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
