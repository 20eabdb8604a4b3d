package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Principal is who a session token speaks for
type Principal struct {
	UserID  uint
	IsAdmin bool
	Role    models.AdminRoleID
}

// Claims represents the JWT claims. The subject holds the user id.
type Claims struct {
	IsAdmin bool               `json:"adm"`
	Role    models.AdminRoleID `json:"rl,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject, returning 0 when it is not a positive integer
func (c *Claims) UserID() uint {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// TokenManager issues and validates session tokens
type TokenManager struct {
	secret   []byte
	validity time.Duration
	revoker  Revoker
}

// NewTokenManager creates a token manager. revoker may be nil, in which
// case logout only drops the token client-side.
func NewTokenManager(secret []byte, validity time.Duration, revoker Revoker) *TokenManager {
	return &TokenManager{secret: secret, validity: validity, revoker: revoker}
}

// Issue creates a new signed token for p
func (tm *TokenManager) Issue(p Principal) (string, error) {
	if p.UserID == 0 {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}
	now := time.Now()
	claims := &Claims{
		IsAdmin: p.IsAdmin,
		Role:    p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.validity)),
			Issuer:    "projectdesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate validates a token and returns its claims
func (tm *TokenManager) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID() < 1 {
		return nil, ErrInvalidToken
	}
	if claims.IsAdmin && !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	if tm.revoker != nil && claims.ID != "" {
		revoked, err := tm.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}

// Revoke blocks the token described by claims until it would expire anyway
func (tm *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if tm.revoker == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return tm.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
