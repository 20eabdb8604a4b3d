package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Email token purposes
const (
	PurposeConfirm = "confirm"
	PurposeReset   = "reset"
)

const (
	ConfirmTokenTTL = 24 * time.Hour
	ResetTokenTTL   = time.Hour
)

// EmailClaims are carried by the links sent in confirmation and reset mails
type EmailClaims struct {
	Purpose string `json:"pur"`
	Email   string `json:"email"`
	Binding string `json:"bnd,omitempty"`
	jwt.RegisteredClaims
}

// EmailTokens signs email tokens with a secret separate from session tokens
type EmailTokens struct {
	secret []byte
}

// NewEmailTokens creates an email token signer
func NewEmailTokens(secret []byte) *EmailTokens {
	return &EmailTokens{secret: secret}
}

// Issue signs a token for purpose. binding is an optional value the caller
// compares on verification, e.g. a password fingerprint.
func (e *EmailTokens) Issue(purpose, email, binding string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &EmailClaims{
		Purpose: purpose,
		Email:   email,
		Binding: binding,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
}

// Verify checks the signature, expiry and purpose of an email token
func (e *EmailTokens) Verify(purpose, tokenString string) (*EmailClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &EmailClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return e.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*EmailClaims)
	if !ok || !token.Valid || claims.Purpose != purpose || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
