package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
)

const (
	// ContextKeyClaims is the key for the parsed claims in gin context
	ContextKeyClaims = "claims"
	// ContextKeyUserID is the key for the user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyIsAdmin is the key for the admin flag in gin context
	ContextKeyIsAdmin = "is_admin"
	// ContextKeyAdminRole is the key for the admin role in gin context
	ContextKeyAdminRole = "admin_role"
)

// Middleware validates bearer tokens and sets user info in context
func Middleware(tm *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := tm.Validate(c.Request.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			case errors.Is(err, ErrRevokedToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			case errors.Is(err, ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to verify token"})
			}
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyUserID, claims.UserID())
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Set(ContextKeyAdminRole, claims.Role)

		c.Next()
	}
}

// RequireStudent lets only student tokens through
func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Student access required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin lets admin tokens through, restricted to roles when any are given
func RequireAdmin(roles ...models.AdminRoleID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		if len(roles) > 0 {
			role, _ := GetAdminRole(c)
			allowed := false
			for _, r := range roles {
				if r == role {
					allowed = true
					break
				}
			}
			if !allowed {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
				return
			}
		}
		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// IsAdmin reports whether the request carries an admin token
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextKeyIsAdmin)
}

// GetAdminRole returns the admin role from the gin context
func GetAdminRole(c *gin.Context) (models.AdminRoleID, bool) {
	role, exists := c.Get(ContextKeyAdminRole)
	if !exists || !IsAdmin(c) {
		return 0, false
	}
	return role.(models.AdminRoleID), true
}

// GetClaims returns the parsed token claims from the gin context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	return claims.(*Claims), true
}
