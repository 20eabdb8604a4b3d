// Package catalog serves the deliverable and component catalogs of a
// project. Groups and students each have their own catalog with the same
// shape: deliverables, components and a join table saying how many of each
// component a deliverable needs.
package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// scope bundles the three tables of one catalog
type scope struct {
	prefix       string
	deliverables itemRoutes
	components   itemRoutes
	links        linkRoutes
}

type itemRoutes interface {
	lookup
	inProject(projectID uint) ([]models.CatalogView, error)
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type linkRoutes interface {
	related(id uint, fromDeliverable bool) ([]LinkedItem, error)
	relatedHandler(fromDeliverable bool, label string) gin.HandlerFunc
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

func newScope[
	D any, PD interface {
		*D
		models.CatalogItem
	},
	C any, PC interface {
		*C
		models.CatalogItem
	},
	L any, PL interface {
		*L
		models.CatalogLink
	},
](db *gorm.DB, prefix string) scope {
	deliverables := newItems[D, PD](db, "Deliverable")
	components := newItems[C, PC](db, "Component")
	return scope{
		prefix:       prefix,
		deliverables: deliverables,
		components:   components,
		links:        newLinks[L, PL](db, deliverables, components),
	}
}

// Handler handles catalog requests
type Handler struct {
	db      *gorm.DB
	group   scope
	student scope
}

// NewHandler creates a new catalog handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db: db,
		group: newScope[
			models.GroupDeliverable, *models.GroupDeliverable,
			models.GroupDeliverableComponent, *models.GroupDeliverableComponent,
			models.GroupDeliverablesComponent, *models.GroupDeliverablesComponent,
		](db, "group"),
		student: newScope[
			models.StudentDeliverable, *models.StudentDeliverable,
			models.StudentDeliverableComponent, *models.StudentDeliverableComponent,
			models.StudentDeliverablesComponent, *models.StudentDeliverablesComponent,
		](db, "student"),
	}
}

// DeliverableResponse is a deliverable with the components it needs
type DeliverableResponse struct {
	models.CatalogView
	Components []LinkedItem `json:"components"`
}

func (s scope) withComponents(projectID uint) ([]DeliverableResponse, error) {
	deliverables, err := s.deliverables.inProject(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]DeliverableResponse, len(deliverables))
	for i, d := range deliverables {
		components, err := s.links.related(d.ID, true)
		if err != nil {
			return nil, err
		}
		out[i] = DeliverableResponse{CatalogView: d, Components: components}
	}
	return out, nil
}

// projectCatalog lists a scope's deliverables for a project the student belongs to
func (h *Handler) projectCatalog(s scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		projectID, ok := access.ParamID(c, "project_id", "project")
		if !ok {
			return
		}

		member, err := access.ProjectMembership(h.db, userID, projectID)
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to fetch deliverables", err)
			return
		}
		if member == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		out, err := s.withComponents(projectID)
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to fetch deliverables", err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s scope) register(rg *gin.RouterGroup) {
	deliverables := "/" + s.prefix + "-deliverables"
	components := "/" + s.prefix + "-deliverable-components"
	links := "/" + s.prefix + "-deliverables-components"

	rg.GET(deliverables, s.deliverables.List)
	rg.POST(deliverables, s.deliverables.Create)
	rg.GET(deliverables+"/:id", s.deliverables.Get)
	rg.PATCH(deliverables+"/:id", s.deliverables.Update)
	rg.DELETE(deliverables+"/:id", s.deliverables.Delete)
	rg.GET(deliverables+"/:id/components", s.links.relatedHandler(true, "deliverable"))

	rg.GET(components, s.components.List)
	rg.POST(components, s.components.Create)
	rg.GET(components+"/:id", s.components.Get)
	rg.PATCH(components+"/:id", s.components.Update)
	rg.DELETE(components+"/:id", s.components.Delete)
	rg.GET(components+"/:id/deliverables", s.links.relatedHandler(false, "component"))

	rg.GET(links, s.links.List)
	rg.POST(links, s.links.Create)
	rg.PATCH(links+"/:id", s.links.Update)
	rg.DELETE(links+"/:id", s.links.Delete)
}

// RegisterAdminRoutes registers catalog management routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	managers := rg.Group("", auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor))
	h.group.register(managers)
	h.student.register(managers)
}

// RegisterStudentRoutes registers read-only catalog routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects/:project_id/group-deliverables", h.projectCatalog(h.group))
	rg.GET("/projects/:project_id/student-deliverables", h.projectCatalog(h.student))
}
