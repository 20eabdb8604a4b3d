package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/mikepea/projectdesk/pkg/projectdesk/testutil"
	"gorm.io/gorm"
)

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	revoker, err := auth.OpenBoltRevoker(filepath.Join(t.TempDir(), "revoked.db"))
	if err != nil {
		t.Fatalf("OpenBoltRevoker failed: %v", err)
	}
	t.Cleanup(func() { revoker.Close() })

	emailTokens := auth.NewEmailTokens([]byte("email-secret"))
	composer, err := mail.NewComposer(&mail.Recorder{}, emailTokens, "https://desk.example.edu")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	r := New(Deps{
		DB:                    db,
		Tokens:                auth.NewTokenManager([]byte("test-secret"), time.Hour, revoker),
		EmailTokens:           emailTokens,
		Mail:                  composer,
		Store:                 store,
		SkipEmailConfirmation: true,
		AuthRateLimit:         100,
	})
	return r, db
}

func login(t *testing.T, r *gin.Engine, path, email string) string {
	t.Helper()
	resp := testutil.Do(r, http.MethodPost, path, "", map[string]string{
		"email":    email,
		"password": testutil.Password,
	})
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var body struct {
		Token string `json:"token"`
	}
	testutil.Decode(t, resp, &body)
	if body.Token == "" {
		t.Fatal("Expected a token")
	}
	return "Bearer " + body.Token
}

func TestHealthEndpoints(t *testing.T) {
	r, db := setupServer(t)

	resp := testutil.Do(r, http.MethodGet, "/health", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Errorf("Expected ok status, got %s", resp.Body.String())
	}

	resp = testutil.Do(r, http.MethodGet, "/version", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)

	resp = testutil.Do(r, http.MethodGet, "/metrics", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "projectdesk_http_request_duration_seconds") {
		t.Errorf("Expected request duration metric in scrape output")
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	resp = testutil.Do(r, http.MethodGet, "/health", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusServiceUnavailable)

	resp = testutil.Do(r, http.MethodGet, "/health/live", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
}

func TestRequestsCarryLogID(t *testing.T) {
	r, _ := setupServer(t)

	resp := testutil.Do(r, http.MethodGet, "/health/live", "", nil)
	if resp.Header().Get("X-Log-Id") == "" {
		t.Error("Expected X-Log-Id header")
	}
}

func TestRoutesRequireMatchingAccount(t *testing.T) {
	r, db := setupServer(t)
	testutil.CreateStudent(t, db, "ana@uni.edu")
	testutil.CreateAdmin(t, db, "prof@uni.edu", models.AdminRoleProfessor)

	resp := testutil.Do(r, http.MethodGet, "/v1/students/groups", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusUnauthorized)

	studentAuth := login(t, r, "/v1/students/auth/login", "ana@uni.edu")
	adminAuth := login(t, r, "/v1/admins/auth/login", "prof@uni.edu")

	resp = testutil.Do(r, http.MethodGet, "/v1/admins/projects", studentAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusForbidden)

	resp = testutil.Do(r, http.MethodGet, "/v1/students/groups", adminAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusForbidden)
}

func TestLogoutRevokesToken(t *testing.T) {
	r, db := setupServer(t)
	testutil.CreateStudent(t, db, "ana@uni.edu")
	token := login(t, r, "/v1/students/auth/login", "ana@uni.edu")

	resp := testutil.Do(r, http.MethodGet, "/v1/students/users/me", token, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)

	resp = testutil.Do(r, http.MethodPost, "/v1/auth/logout", token, nil)
	testutil.ExpectStatus(t, resp, http.StatusNoContent)

	resp = testutil.Do(r, http.MethodGet, "/v1/students/users/me", token, nil)
	testutil.ExpectStatus(t, resp, http.StatusUnauthorized)
}

func TestProjectToGroupFlow(t *testing.T) {
	r, db := setupServer(t)
	testutil.CreateAdmin(t, db, "prof@uni.edu", models.AdminRoleProfessor)
	adminAuth := login(t, r, "/v1/admins/auth/login", "prof@uni.edu")

	resp := testutil.Do(r, http.MethodPost, "/v1/admins/projects", adminAuth, map[string]interface{}{
		"name":                "Compilers",
		"year":                2026,
		"max_student_uploads": 3,
		"max_group_size":      4,
	})
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var project models.Project
	testutil.Decode(t, resp, &project)

	resp = testutil.Do(r, http.MethodPost, "/v1/admins/security-codes", adminAuth, map[string]interface{}{
		"project_id": project.ID,
		"expiration": time.Now().Add(24 * time.Hour),
	})
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var code models.SecurityCode
	testutil.Decode(t, resp, &code)

	resp = testutil.Do(r, http.MethodPost, "/v1/students/auth/signup", "", map[string]string{
		"first_name":    "Ana",
		"last_name":     "Diaz",
		"email":         "ana@uni.edu",
		"university_id": "A001",
		"password":      testutil.Password,
	})
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	studentAuth := login(t, r, "/v1/students/auth/login", "ana@uni.edu")

	resp = testutil.Do(r, http.MethodPost, "/v1/students/groups", studentAuth, map[string]string{
		"name":          "Team Rocket",
		"security_code": code.Code,
	})
	testutil.ExpectStatus(t, resp, http.StatusCreated)

	resp = testutil.Do(r, http.MethodGet, fmt.Sprintf("/v1/admins/groups/projects/%d", project.ID), adminAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "Team Rocket") {
		t.Errorf("Expected the new group in the admin listing, got %s", resp.Body.String())
	}

	resp = testutil.Do(r, http.MethodGet, fmt.Sprintf("/v1/students/projects/%d/group-deliverables", project.ID), studentAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
}
