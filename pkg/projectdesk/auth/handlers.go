package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"
)

// Handler serves the endpoints shared by students and admins
type Handler struct {
	tokens *TokenManager
}

// NewHandler creates a new auth handler
func NewHandler(tokens *TokenManager) *Handler {
	return &Handler{tokens: tokens}
}

// Logout revokes the presented token until it expires
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), claims); err != nil {
		logger.Error.Printf("Failed to revoke token %s: %v", claims.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/logout", Middleware(h.tokens), h.Logout)
}
