package admins

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// CreateUserRequest represents the request to create an admin
type CreateUserRequest struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	AdminRoleID uint   `json:"admin_role_id" binding:"required"`
	Password    string `json:"password" binding:"omitempty,min=8"`
}

// CreateUserResponse is the created admin plus delivery status of the
// welcome mail. The generated password is only echoed when that mail failed.
type CreateUserResponse struct {
	AdminResponse
	WelcomeEmailSent  bool   `json:"welcome_email_sent"`
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// UpdateUserRequest represents the request to update an admin
type UpdateUserRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Password    *string `json:"password" binding:"omitempty,min=8"`
	AdminRoleID *uint   `json:"admin_role_id"`
}

// canManage reports whether an admin with role actor may create or edit an
// admin with role target
func canManage(actor, target models.AdminRoleID) bool {
	switch actor {
	case models.AdminRoleRoot:
		return true
	case models.AdminRoleProfessor:
		return target == models.AdminRoleTutor || target == models.AdminRoleCoordinator
	default:
		return false
	}
}

// ListUsers returns the admins visible to the caller. Root sees everyone,
// professors see their own rank and below, tutors only ranks below their own.
func (h *Handler) ListUsers(c *gin.Context) {
	role, _ := auth.GetAdminRole(c)

	query := h.db.Order("admin_role_id, last_name, first_name")
	switch role {
	case models.AdminRoleRoot:
	case models.AdminRoleProfessor:
		query = query.Where("admin_role_id >= ?", role)
	case models.AdminRoleTutor:
		query = query.Where("admin_role_id > ?", role)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
		return
	}

	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	var admins []models.Admin
	if err := query.Find(&admins).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch admins", err)
		return
	}

	responses := make([]AdminResponse, len(admins))
	for i, a := range admins {
		responses[i] = toResponse(a)
	}
	c.JSON(http.StatusOK, responses)
}

// CreateUser creates an admin and mails them their password
func (h *Handler) CreateUser(c *gin.Context) {
	actor, _ := auth.GetAdminRole(c)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.AdminRoleID(req.AdminRoleID)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid admin role"})
		return
	}
	if !canManage(actor, role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot create an admin with this role"})
		return
	}

	password := req.Password
	generated := password == ""
	if generated {
		var err error
		if password, err = auth.GeneratePassword(GeneratedPasswordLength); err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to generate password", err)
			return
		}
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}

	admin := models.Admin{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hashedPassword,
		AdminRoleID:  role,
	}
	if err := h.db.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to create admin", err)
		return
	}

	resp := CreateUserResponse{AdminResponse: toResponse(admin), WelcomeEmailSent: true}
	if err := h.mailer.SendAdminWelcome(c.Request.Context(), admin.Email, admin.FullName(), password); err != nil {
		logger.Error.Printf("[%s] welcome mail for admin %d failed: %v", logging.LogID(c), admin.ID, err)
		resp.WelcomeEmailSent = false
		if generated {
			resp.GeneratedPassword = password
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// UpdateUser edits another admin. Only root may change roles.
func (h *Handler) UpdateUser(c *gin.Context) {
	actor, _ := auth.GetAdminRole(c)
	id, ok := access.ParamID(c, "id", "admin")
	if !ok {
		return
	}

	var admin models.Admin
	if err := h.db.First(&admin, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currentID, _ := auth.GetUserID(c)
	if admin.ID != currentID && !canManage(actor, admin.AdminRoleID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot edit this admin"})
		return
	}

	updates, ok := h.profileUpdates(c, req.FirstName, req.LastName, req.Email, req.Password)
	if !ok {
		return
	}
	if req.AdminRoleID != nil {
		role := models.AdminRoleID(*req.AdminRoleID)
		if actor != models.AdminRoleRoot {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only root can change roles"})
			return
		}
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid admin role"})
			return
		}
		if admin.ID == currentID && role != models.AdminRoleRoot {
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot demote yourself"})
			return
		}
		updates["admin_role_id"] = role
	}

	if !h.applyUpdates(c, &admin, updates) {
		return
	}
	c.JSON(http.StatusOK, toResponse(admin))
}

// DeleteUser removes an admin
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, _ := auth.GetAdminRole(c)
	id, ok := access.ParamID(c, "id", "admin")
	if !ok {
		return
	}

	currentID, _ := auth.GetUserID(c)
	if id == currentID {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var admin models.Admin
	if err := h.db.First(&admin, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}
	if admin.AdminRoleID == models.AdminRoleRoot && actor != models.AdminRoleRoot {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only root can delete root admins"})
		return
	}

	if err := h.db.Delete(&admin).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete admin", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetMe returns the current admin
func (h *Handler) GetMe(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var admin models.Admin
	if err := h.db.First(&admin, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}

	c.JSON(http.StatusOK, toResponse(admin))
}

// UpdateMe edits the current admin's own profile. Roles cannot be changed here.
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var admin models.Admin
	if err := h.db.First(&admin, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AdminRoleID != nil && models.AdminRoleID(*req.AdminRoleID) != admin.AdminRoleID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot change your own role"})
		return
	}

	updates, ok := h.profileUpdates(c, req.FirstName, req.LastName, req.Email, req.Password)
	if !ok {
		return
	}
	if !h.applyUpdates(c, &admin, updates) {
		return
	}
	c.JSON(http.StatusOK, toResponse(admin))
}

func (h *Handler) profileUpdates(c *gin.Context, firstName, lastName, email, password *string) (map[string]interface{}, bool) {
	updates := make(map[string]interface{})
	if firstName != nil {
		if strings.TrimSpace(*firstName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "First name cannot be empty"})
			return nil, false
		}
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		if strings.TrimSpace(*lastName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Last name cannot be empty"})
			return nil, false
		}
		updates["last_name"] = *lastName
	}
	if email != nil {
		updates["email"] = strings.TrimSpace(*email)
	}
	if password != nil {
		hashedPassword, err := auth.HashPassword(*password)
		if err != nil {
			logging.Fail(c, http.StatusInternalServerError, "Failed to process password", err)
			return nil, false
		}
		updates["password_hash"] = hashedPassword
	}
	return updates, true
}

func (h *Handler) applyUpdates(c *gin.Context, admin *models.Admin, updates map[string]interface{}) bool {
	if len(updates) > 0 {
		if err := h.db.Model(admin).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return false
			}
			logging.Fail(c, http.StatusInternalServerError, "Failed to update admin", err)
			return false
		}
	}
	h.db.First(admin, admin.ID)
	return true
}
