package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
)

func setupRevoker(t *testing.T) *BoltRevoker {
	r, err := OpenBoltRevoker(filepath.Join(t.TempDir(), "revoked.db"))
	if err != nil {
		t.Fatalf("OpenBoltRevoker failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func setupTestRouter(tm *TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(tm).RegisterRoutes(r.Group("/v1/auth"))

	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/student", Middleware(tm), RequireStudent(), ok)
	r.GET("/admin", Middleware(tm), RequireAdmin(), ok)
	r.GET("/professor", Middleware(tm), RequireAdmin(models.AdminRoleRoot, models.AdminRoleProfessor), ok)
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}

	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}

	if Fingerprint(hash) == Fingerprint(hash+"x") {
		t.Error("Different hashes should have different fingerprints")
	}
}

func TestSessionToken(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), time.Hour, nil)

	token, err := tm.Issue(Principal{UserID: 7, IsAdmin: true, Role: models.AdminRoleTutor})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := tm.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID() != 7 {
		t.Errorf("Expected UserID 7, got %d", claims.UserID())
	}
	if !claims.IsAdmin || claims.Role != models.AdminRoleTutor {
		t.Errorf("Unexpected admin claims %+v", claims)
	}
	if claims.ID == "" {
		t.Error("Expected a token id")
	}
}

func TestSessionTokenRejections(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), time.Hour, nil)
	ctx := context.Background()

	if _, err := tm.Validate(ctx, "invalid-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}

	other := NewTokenManager([]byte("other"), time.Hour, nil)
	token, _ := other.Issue(Principal{UserID: 1})
	if _, err := tm.Validate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired := NewTokenManager([]byte("secret"), -time.Minute, nil)
	token, _ = expired.Issue(Principal{UserID: 1})
	if _, err := tm.Validate(ctx, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}

	if _, err := tm.Issue(Principal{UserID: 0}); err == nil {
		t.Error("Expected error issuing a token for user 0")
	}

	// hand-built token with a zero subject
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "0",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, _ := raw.SignedString([]byte("secret"))
	if _, err := tm.Validate(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for user id 0, got %v", err)
	}
}

func TestEmailTokens(t *testing.T) {
	et := NewEmailTokens([]byte("email-secret"))

	token, err := et.Issue(PurposeConfirm, "ada@uni.edu", "", ConfirmTokenTTL)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := et.Verify(PurposeConfirm, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Email != "ada@uni.edu" {
		t.Errorf("Expected email ada@uni.edu, got %s", claims.Email)
	}

	if _, err := et.Verify(PurposeReset, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Confirmation token must not work for reset, got %v", err)
	}

	expired, _ := et.Issue(PurposeReset, "ada@uni.edu", "fp", -time.Minute)
	if _, err := et.Verify(PurposeReset, expired); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}

	session := NewTokenManager([]byte("email-secret"), time.Hour, nil)
	sessionToken, _ := session.Issue(Principal{UserID: 1})
	if _, err := et.Verify(PurposeConfirm, sessionToken); err == nil {
		t.Error("Session token must not verify as an email token")
	}
}

func TestBoltRevoker(t *testing.T) {
	r := setupRevoker(t)
	ctx := context.Background()

	if err := r.Revoke(ctx, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := r.Revoke(ctx, "old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if revoked, _ := r.IsRevoked(ctx, "live"); !revoked {
		t.Error("Expected live token to be revoked")
	}
	if revoked, _ := r.IsRevoked(ctx, "old"); revoked {
		t.Error("Already expired token should not be stored")
	}
	if revoked, _ := r.IsRevoked(ctx, "unknown"); revoked {
		t.Error("Unknown token should not be revoked")
	}

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err := r.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 purged entry, got %d", removed)
	}
}

func TestRedisRevokerBadURL(t *testing.T) {
	if _, err := NewRedisRevoker(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for malformed redis url")
	}
}

func TestMiddlewareRoles(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), time.Hour, nil)
	router := setupTestRouter(tm)

	student, _ := tm.Issue(Principal{UserID: 1})
	tutor, _ := tm.Issue(Principal{UserID: 2, IsAdmin: true, Role: models.AdminRoleTutor})
	professor, _ := tm.Issue(Principal{UserID: 3, IsAdmin: true, Role: models.AdminRoleProfessor})

	cases := []struct {
		path, token string
		want        int
	}{
		{"/student", "", http.StatusUnauthorized},
		{"/student", "garbage", http.StatusUnauthorized},
		{"/student", student, http.StatusOK},
		{"/student", tutor, http.StatusForbidden},
		{"/admin", student, http.StatusForbidden},
		{"/admin", tutor, http.StatusOK},
		{"/professor", tutor, http.StatusForbidden},
		{"/professor", professor, http.StatusOK},
	}
	for _, tc := range cases {
		resp := doRequest(router, "GET", tc.path, tc.token)
		if resp.Code != tc.want {
			t.Errorf("GET %s: expected %d, got %d", tc.path, tc.want, resp.Code)
		}
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), time.Hour, nil)
	router := setupTestRouter(tm)

	req, _ := http.NewRequest("GET", "/student", nil)
	req.Header.Set("Authorization", "Token abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), time.Hour, setupRevoker(t))
	router := setupTestRouter(tm)

	token, _ := tm.Issue(Principal{UserID: 1})
	if resp := doRequest(router, "GET", "/student", token); resp.Code != http.StatusOK {
		t.Fatalf("Expected token to work before logout, got %d", resp.Code)
	}

	if resp := doRequest(router, "POST", "/v1/auth/logout", token); resp.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 from logout, got %d: %s", resp.Code, resp.Body.String())
	}

	if resp := doRequest(router, "GET", "/student", token); resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected revoked token to be rejected, got %d", resp.Code)
	}

	fresh, _ := tm.Issue(Principal{UserID: 1})
	if resp := doRequest(router, "GET", "/student", fresh); resp.Code != http.StatusOK {
		t.Errorf("A new token should still work, got %d", resp.Code)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(16)
	if err != nil {
		t.Fatalf("GeneratePassword failed: %v", err)
	}
	b, _ := GeneratePassword(16)
	if len(a) != 16 {
		t.Errorf("Expected 16 characters, got %d", len(a))
	}
	if a == b {
		t.Error("Two generated passwords should differ")
	}
}
