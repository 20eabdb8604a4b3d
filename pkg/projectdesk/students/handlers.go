package students

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/metrics"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// Options tune signup behaviour
type Options struct {
	// AllowedDomains limits signup to these email domains. Empty allows all.
	AllowedDomains []string
	// SkipEmailConfirmation creates students as already confirmed
	SkipEmailConfirmation bool
}

// Handler handles student account requests
type Handler struct {
	db          *gorm.DB
	tokens      *auth.TokenManager
	emailTokens *auth.EmailTokens
	mailer      *mail.Composer
	opts        Options
}

// NewHandler creates a new student handler
func NewHandler(db *gorm.DB, tokens *auth.TokenManager, emailTokens *auth.EmailTokens, mailer *mail.Composer, opts Options) *Handler {
	return &Handler{db: db, tokens: tokens, emailTokens: emailTokens, mailer: mailer, opts: opts}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	UniversityID string `json:"university_id" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
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

// UpdateMeRequest represents a profile update
type UpdateMeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
}

// StudentResponse represents student data in responses
type StudentResponse struct {
	ID           uint   `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	UniversityID string `json:"university_id"`
	IsPending    bool   `json:"is_pending"`
	CreatedAt    string `json:"created_at"`
}

// AuthResponse represents the login response
type AuthResponse struct {
	Token   string          `json:"token"`
	Student StudentResponse `json:"student"`
}

func toResponse(s models.Student) StudentResponse {
	return StudentResponse{
		ID:           s.ID,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Email:        s.Email,
		UniversityID: s.UniversityID,
		IsPending:    s.IsPending,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// DomainAllowed reports whether email's domain is in allowed. Comparison
// ignores case and an optional leading "@" on the allowed entries.
func DomainAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@")) == domain {
			return true
		}
	}
	return false
}

// AllowedDomains lists the email domains accepted at signup
// @Summary Allowed signup domains
// @Tags students-auth
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /students/auth/allowed-domains [get]
func (h *Handler) AllowedDomains(c *gin.Context) {
	domains := h.opts.AllowedDomains
	if domains == nil {
		domains = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

// Signup registers a student and mails a confirmation link
// @Summary Student signup
// @Tags students-auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup details"
// @Success 201 {object} StudentResponse
// @Failure 403 {object} map[string]string "Domain not allowed or blacklisted"
// @Failure 409 {object} map[string]string "Email or university id taken"
// @Failure 503 {object} map[string]string "Confirmation mail failed"
// @Router /students/auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.UniversityID = strings.TrimSpace(req.UniversityID)

	if !DomainAllowed(req.Email, h.opts.AllowedDomains) {
		metrics.SignupsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "Email domain is not allowed"})
		return
	}

	var banned int64
	h.db.Model(&models.BlacklistEntry{}).Where("university_id = ?", req.UniversityID).Count(&banned)
	if banned > 0 {
		metrics.SignupsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "University ID is blacklisted"})
		return
	}

	var existing int64
	h.db.Model(&models.Student{}).Where("email = ? OR university_id = ?", req.Email, req.UniversityID).Count(&existing)
	if existing > 0 {
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "Email or university ID already registered"})
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}

	student := models.Student{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		UniversityID: req.UniversityID,
		PasswordHash: hashedPassword,
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student).Error; err != nil {
			return err
		}
		if h.opts.SkipEmailConfirmation {
			student.IsPending = false
			return tx.Model(&student).Update("is_pending", false).Error
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "Email or university ID already registered"})
		return
	}
	if err != nil {
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		logging.Fail(c, http.StatusInternalServerError, "Failed to create student", err)
		return
	}

	if !h.opts.SkipEmailConfirmation {
		if err := h.mailer.SendConfirmation(c.Request.Context(), student.Email, student.FullName()); err != nil {
			metrics.SignupsTotal.WithLabelValues("mail_failed").Inc()
			logging.Fail(c, http.StatusServiceUnavailable, "account created but confirmation email could not be sent", err)
			return
		}
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	c.JSON(http.StatusCreated, toResponse(student))
}

// Login authenticates a student
// @Summary Student login
// @Tags students-auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /students/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var student models.Student
	if err := h.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&student).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !auth.CheckPassword(req.Password, student.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.tokens.Issue(auth.Principal{UserID: student.ID})
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, Student: toResponse(student)})
}

// Confirm marks the student behind a confirmation link as confirmed
func (h *Handler) Confirm(c *gin.Context) {
	claims, err := h.emailTokens.Verify(auth.PurposeConfirm, c.Query("t"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired confirmation link"})
		return
	}

	var student models.Student
	if err := h.db.Where("email = ?", claims.Email).First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	if student.IsPending {
		if err := h.db.Model(&student).Update("is_pending", false).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to confirm account", err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account confirmed"})
}

// ForgotPassword mails a reset link. The reply never reveals whether the
// address is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var student models.Student
	if err := h.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&student).Error; err == nil {
		if err := h.mailer.SendPasswordReset(c.Request.Context(), student.Email, student.FullName(), student.PasswordHash); err != nil {
			logger.Error.Printf("[%s] password reset mail for student %d failed: %v", logging.LogID(c), student.ID, err)
		}
	}

	c.Status(http.StatusNoContent)
}

// ResetPassword sets a new password from a reset link. A link stops working
// once the password it was issued for has changed.
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

	var student models.Student
	if err := h.db.Where("email = ?", claims.Email).First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	if claims.Binding != auth.Fingerprint(student.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset link"})
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}
	if err := h.db.Model(&student).Update("password_hash", hashedPassword).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to update password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// Me returns the current student
func (h *Handler) Me(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var student models.Student
	if err := h.db.First(&student, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	c.JSON(http.StatusOK, toResponse(student))
}

// UpdateMe changes the current student's name or password
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var student models.Student
	if err := h.db.First(&student, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "First name cannot be empty"})
			return
		}
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Last name cannot be empty"})
			return
		}
		updates["last_name"] = *req.LastName
	}
	if req.Password != nil {
		hashedPassword, err := auth.HashPassword(*req.Password)
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
			return
		}
		updates["password_hash"] = hashedPassword
	}

	if len(updates) > 0 {
		if err := h.db.Model(&student).Updates(updates).Error; err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to update student", err)
			return
		}
	}

	h.db.First(&student, userID)
	c.JSON(http.StatusOK, toResponse(student))
}

// RegisterAuthRoutes registers the public account routes. limit guards the
// endpoints that check credentials or send mail.
func (h *Handler) RegisterAuthRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.GET("/allowed-domains", h.AllowedDomains)
	rg.GET("/confirm", h.Confirm)
	rg.POST("/signup", limit, h.Signup)
	rg.POST("/login", limit, h.Login)
	rg.POST("/forgot-password", limit, h.ForgotPassword)
	rg.POST("/reset-password", limit, h.ResetPassword)
}

// RegisterRoutes registers the authenticated student profile routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.Me)
	rg.PATCH("/users/me", h.UpdateMe)
}
