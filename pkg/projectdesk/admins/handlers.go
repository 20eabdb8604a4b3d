package admins

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// GeneratedPasswordLength is the length of passwords made for new admins
const GeneratedPasswordLength = 16

// Handler handles admin account requests
type Handler struct {
	db          *gorm.DB
	tokens      *auth.TokenManager
	emailTokens *auth.EmailTokens
	mailer      *mail.Composer
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, tokens *auth.TokenManager, emailTokens *auth.EmailTokens, mailer *mail.Composer) *Handler {
	return &Handler{db: db, tokens: tokens, emailTokens: emailTokens, mailer: mailer}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks for a reset mail
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest carries the new password for a reset link
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// AdminResponse represents admin data in responses
type AdminResponse struct {
	ID          uint   `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	AdminRoleID uint   `json:"admin_role_id"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

// AuthResponse represents the login response
type AuthResponse struct {
	Token string        `json:"token"`
	Admin AdminResponse `json:"admin"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	Projects        int64 `json:"projects"`
	ActiveProjects  int64 `json:"active_projects"`
	Students        int64 `json:"students"`
	PendingStudents int64 `json:"pending_students"`
	Admins          int64 `json:"admins"`
	Groups          int64 `json:"groups"`
	Transactions    int64 `json:"transactions"`
	Uploads         int64 `json:"uploads"`
	Complaints      int64 `json:"complaints"`
}

func toResponse(a models.Admin) AdminResponse {
	return AdminResponse{
		ID:          a.ID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		AdminRoleID: uint(a.AdminRoleID),
		Role:        a.AdminRoleID.String(),
		CreatedAt:   a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Login authenticates an admin
// @Summary Admin login
// @Tags admins-auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /admins/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var admin models.Admin
	if err := h.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&admin).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !auth.CheckPassword(req.Password, admin.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.tokens.Issue(auth.Principal{UserID: admin.ID, IsAdmin: true, Role: admin.AdminRoleID})
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, Admin: toResponse(admin)})
}

// ForgotPassword mails a reset link if the address belongs to an admin
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var admin models.Admin
	if err := h.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&admin).Error; err == nil {
		if err := h.mailer.SendPasswordReset(c.Request.Context(), admin.Email, admin.FullName(), admin.PasswordHash); err != nil {
			logger.Error.Printf("[%s] password reset mail for admin %d failed: %v", logging.LogID(c), admin.ID, err)
		}
	}

	c.Status(http.StatusNoContent)
}

// ResetPassword sets a new password from a reset link
func (h *Handler) ResetPassword(c *gin.Context) {
	claims, err := h.emailTokens.Verify(auth.PurposeReset, c.Query("t"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset link"})
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var admin models.Admin
	if err := h.db.Where("email = ?", claims.Email).First(&admin).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}
	if claims.Binding != auth.Fingerprint(admin.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset link"})
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}
	if err := h.db.Model(&admin).Update("password_hash", hashedPassword).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to update password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// GetStats returns system-wide counts
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.Project{}).Count(&stats.Projects)
	h.db.Model(&models.Project{}).Where("active = ?", true).Count(&stats.ActiveProjects)
	h.db.Model(&models.Student{}).Count(&stats.Students)
	h.db.Model(&models.Student{}).Where("is_pending = ?", true).Count(&stats.PendingStudents)
	h.db.Model(&models.Admin{}).Count(&stats.Admins)
	h.db.Model(&models.Group{}).Count(&stats.Groups)
	h.db.Model(&models.Transaction{}).Count(&stats.Transactions)
	h.db.Model(&models.StudentUpload{}).Count(&stats.Uploads)
	h.db.Model(&models.Complaint{}).Count(&stats.Complaints)

	c.JSON(http.StatusOK, stats)
}

// RegisterAuthRoutes registers the public admin auth routes
func (h *Handler) RegisterAuthRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("/login", limit, h.Login)
	rg.POST("/forgot-password", limit, h.ForgotPassword)
	rg.POST("/reset-password", limit, h.ResetPassword)
}

// RegisterRoutes registers admin management routes. rg must already require
// an admin token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	managers := auth.RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor)

	rg.GET("/stats", managers, h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.POST("/users", managers, h.CreateUser)
	rg.GET("/users/me", h.GetMe)
	rg.PATCH("/users/me", h.UpdateMe)
	rg.PATCH("/users/:id", managers, h.UpdateUser)
	rg.DELETE("/users/:id", managers, h.DeleteUser)
}
