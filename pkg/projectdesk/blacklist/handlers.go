package blacklist

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// Handler handles blacklist requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new blacklist handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// EntryRequest represents a blacklist entry in requests and exports
type EntryRequest struct {
	UniversityID string     `json:"university_id" binding:"required"`
	Description  string     `json:"description"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
}

// UpdateRequest represents changes to an entry
type UpdateRequest struct {
	Description *string `json:"description"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
}

// ImportRequest represents a bulk import
type ImportRequest struct {
	Entries []EntryRequest `json:"entries" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func toModel(req EntryRequest) models.BlacklistEntry {
	entry := models.BlacklistEntry{
		UniversityID: strings.TrimSpace(req.UniversityID),
		Description:  req.Description,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BannedAt:     time.Now().UTC(),
	}
	if req.BannedAt != nil {
		entry.BannedAt = req.BannedAt.UTC()
	}
	return entry
}

// Create bans a university id
func (h *Handler) Create(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := toModel(req)
	if entry.UniversityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "University ID cannot be empty"})
		return
	}

	if err := h.db.Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "University ID is already blacklisted"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create blacklist entry", err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// List returns all entries, optionally filtered by a search string
func (h *Handler) List(c *gin.Context) {
	query := h.db.Order("banned_at DESC")
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("university_id LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	var entries []models.BlacklistEntry
	if err := query.Find(&entries).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch blacklist", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) load(c *gin.Context) (*models.BlacklistEntry, bool) {
	id, ok := access.ParamID(c, "id", "blacklist entry")
	if !ok {
		return nil, false
	}
	var entry models.BlacklistEntry
	if err := h.db.First(&entry, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blacklist entry not found"})
		return nil, false
	}
	return &entry, true
}

// Get returns a single entry
func (h *Handler) Get(c *gin.Context) {
	entry, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Update edits the descriptive fields of an entry
func (h *Handler) Update(c *gin.Context) {
	entry, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if len(updates) > 0 {
		if err := h.db.Model(entry).Updates(updates).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to update blacklist entry", err)
			return
		}
	}

	c.JSON(http.StatusOK, entry)
}

// Delete lifts a ban
func (h *Handler) Delete(c *gin.Context) {
	entry, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.Delete(entry).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete blacklist entry", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Import adds many entries at once. Entries that are invalid or already
// present are skipped and reported rather than failing the batch.
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ImportResult{Errors: []string{}}
	seen := make(map[string]bool)
	for i, item := range req.Entries {
		entry := toModel(item)
		if entry.UniversityID == "" {
			result.Errors = append(result.Errors, "entry "+strconv.Itoa(i)+": missing university_id")
			result.Skipped++
			continue
		}
		if seen[entry.UniversityID] {
			result.Skipped++
			continue
		}
		seen[entry.UniversityID] = true

		if err := h.db.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, "entry "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			continue
		}
		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

// Export returns every entry in the import format
func (h *Handler) Export(c *gin.Context) {
	var entries []models.BlacklistEntry
	if err := h.db.Order("university_id").Find(&entries).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch blacklist", err)
		return
	}

	exported := make([]EntryRequest, len(entries))
	for i, e := range entries {
		bannedAt := e.BannedAt
		exported[i] = EntryRequest{
			UniversityID: e.UniversityID,
			Description:  e.Description,
			FirstName:    e.FirstName,
			LastName:     e.LastName,
			BannedAt:     &bannedAt,
		}
	}

	c.Header("Content-Disposition", "attachment; filename=blacklist.json")
	c.JSON(http.StatusOK, ImportRequest{Entries: exported})
}

// RegisterRoutes registers blacklist routes on an admin-only group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	bl := rg.Group("/blacklist", auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor))
	bl.GET("", h.List)
	bl.POST("", h.Create)
	bl.POST("/import", h.Import)
	bl.GET("/export", h.Export)
	bl.GET("/:id", h.Get)
	bl.PATCH("/:id", h.Update)
	bl.DELETE("/:id", h.Delete)
}
