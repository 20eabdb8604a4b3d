package securitycodes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

const (
	// CodeAlphabet is the character set of generated codes
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MaxAttempts bounds how often creation retries after a collision
	MaxAttempts = 10
	// ExpirationGrace is how far in the past a new expiration may lie
	ExpirationGrace = 24 * time.Hour
)

// ErrCodeSpaceExhausted is returned when every attempt produced a code already in use
var ErrCodeSpaceExhausted = errors.New("could not generate an unused security code")

// Handler handles security code requests
type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHandler creates a new security codes handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: time.Now}
}

// CreateRequest represents a request to create a security code
type CreateRequest struct {
	ProjectID     uint      `json:"project_id" binding:"required"`
	StudentRoleID uint      `json:"student_role_id"`
	Expiration    time.Time `json:"expiration" binding:"required"`
}

// UpdateRequest changes a code's expiration
type UpdateRequest struct {
	Expiration time.Time `json:"expiration" binding:"required"`
}

// ValidateRequest asks whether a code can be used
type ValidateRequest struct {
	Code string `json:"code" binding:"required"`
}

// ValidateResponse describes a code to a student
type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	ProjectID     uint   `json:"project_id"`
	StudentRoleID uint   `json:"student_role_id"`
	Expired       bool   `json:"expired"`
	Code          string `json:"code"`
}

// Generate returns a random code of the form XXX-XXX
func Generate() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := 0; i < 6; i++ {
		if i == 3 {
			b.WriteByte('-')
		}
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[v.Int64()])
	}
	return b.String(), nil
}

// Normalize uppercases a user supplied code and trims whitespace
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Issue stores a new code, retrying with a fresh value when the generated
// one is already taken
func Issue(db *gorm.DB, code *models.SecurityCode, generate func() (string, error)) error {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		value, err := generate()
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		code.ID = 0
		code.Code = value
		err = db.Create(code).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return ErrCodeSpaceExhausted
}

func (h *Handler) checkProject(c *gin.Context, projectID uint) bool {
	allowed, err := access.CanAccessProject(h.db, c, projectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to check project access", err)
		return false
	}
	var count int64
	if allowed {
		h.db.Model(&models.Project{}).Where("id = ?", projectID).Count(&count)
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return false
	}
	return true
}

// Create issues a new security code for a project
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.StudentRoleID(req.StudentRoleID)
	if role == 0 {
		role = models.StudentRoleGroupLeader
	}
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student role"})
		return
	}
	if !req.Expiration.After(h.now().Add(-ExpirationGrace)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expiration is too far in the past"})
		return
	}
	if !h.checkProject(c, req.ProjectID) {
		return
	}

	code := models.SecurityCode{
		ProjectID:     req.ProjectID,
		StudentRoleID: role,
		Expiration:    req.Expiration.UTC(),
	}
	if err := Issue(h.db, &code, Generate); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCodeSpaceExhausted) {
			status = http.StatusServiceUnavailable
		}
		logging.Fail(c, status, "Failed to create security code", err)
		return
	}

	c.JSON(http.StatusCreated, code)
}

// List returns the codes visible to the caller, optionally for one project
func (h *Handler) List(c *gin.Context) {
	projectID, present, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	query, err := access.ScopeProjects(h.db, c, h.db.Order("created_at DESC"), "project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch security codes", err)
		return
	}
	if present {
		query = query.Where("project_id = ?", projectID)
	}

	var codes []models.SecurityCode
	if err := query.Find(&codes).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch security codes", err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

func (h *Handler) load(c *gin.Context) (*models.SecurityCode, bool) {
	id, ok := access.ParamID(c, "id", "security code")
	if !ok {
		return nil, false
	}
	var code models.SecurityCode
	if err := h.db.First(&code, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Security code not found"})
		return nil, false
	}
	allowed, err := access.CanAccessProject(h.db, c, code.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to check project access", err)
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Security code not found"})
		return nil, false
	}
	return &code, true
}

// Get returns a single code
func (h *Handler) Get(c *gin.Context) {
	code, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, code)
}

// Update changes a code's expiration
func (h *Handler) Update(c *gin.Context) {
	code, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Expiration.After(h.now().Add(-ExpirationGrace)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expiration is too far in the past"})
		return
	}

	if err := h.db.Model(code).Update("expiration", req.Expiration.UTC()).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to update security code", err)
		return
	}
	c.JSON(http.StatusOK, code)
}

// Delete removes a code
func (h *Handler) Delete(c *gin.Context) {
	code, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.Delete(code).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete security code", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Validate tells a student whether a code exists and is still usable
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var code models.SecurityCode
	if err := h.db.Where("code = ?", Normalize(req.Code)).First(&code).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Security code not found"})
		return
	}

	expired := code.Expired(h.now())
	c.JSON(http.StatusOK, ValidateResponse{
		Valid:         !expired,
		ProjectID:     code.ProjectID,
		StudentRoleID: uint(code.StudentRoleID),
		Expired:       expired,
		Code:          code.Code,
	})
}

// RegisterAdminRoutes registers code management on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	codes := rg.Group("/security-codes", auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor, models.AdminRoleCoordinator))
	codes.POST("", h.Create)
	codes.GET("", h.List)
	codes.GET("/:id", h.Get)
	codes.PATCH("/:id", h.Update)
	codes.DELETE("/:id", h.Delete)
}

// RegisterStudentRoutes registers code validation on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.POST("/security-codes/validate", h.Validate)
}
