// Package testutil holds fixtures shared by the handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/database"
	"github.com/mikepea/projectdesk/pkg/projectdesk/migrations"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

// Password is the plain password of every seeded account
const Password = "password123"

var passwordHash string

func hash(t *testing.T) string {
	t.Helper()
	if passwordHash == "" {
		h, err := auth.HashPassword(Password)
		if err != nil {
			t.Fatalf("HashPassword failed: %v", err)
		}
		passwordHash = h
	}
	return passwordHash
}

// NewDB returns a migrated in-memory database
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := migrations.Run(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewTokens returns a token manager without revocation
func NewTokens() *auth.TokenManager {
	return auth.NewTokenManager([]byte("test-secret"), time.Hour, nil)
}

// NewRouter returns a gin engine in test mode
func NewRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// CreateStudent seeds a confirmed student
func CreateStudent(t *testing.T, db *gorm.DB, email string) models.Student {
	t.Helper()
	student := CreatePendingStudent(t, db, email)
	if err := db.Model(&student).Update("is_pending", false).Error; err != nil {
		t.Fatalf("Failed to confirm student: %v", err)
	}
	return student
}

// CreatePendingStudent seeds a student who has not confirmed their email
func CreatePendingStudent(t *testing.T, db *gorm.DB, email string) models.Student {
	t.Helper()
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	student := models.Student{
		FirstName:    "Student",
		LastName:     local,
		Email:        email,
		UniversityID: "U-" + local,
		PasswordHash: hash(t),
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}
	return student
}

// CreateAdmin seeds an admin with role
func CreateAdmin(t *testing.T, db *gorm.DB, email string, role models.AdminRoleID) models.Admin {
	t.Helper()
	admin := models.Admin{
		FirstName:    "Admin",
		LastName:     role.String(),
		Email:        email,
		PasswordHash: hash(t),
		AdminRoleID:  role,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}
	return admin
}

// CreateProject seeds an active project allowing groups of four and three uploads
func CreateProject(t *testing.T, db *gorm.DB, name string) models.Project {
	t.Helper()
	project := models.Project{Name: name, Year: 2025, MaxStudentUploads: 3, MaxGroupSize: 4}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return project
}

// AssignCoordinator links a coordinator admin to a project
func AssignCoordinator(t *testing.T, db *gorm.DB, admin models.Admin, project models.Project) {
	t.Helper()
	link := models.CoordinatorProject{AdminID: admin.ID, ProjectID: project.ID, AssignedAt: time.Now()}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("Failed to assign coordinator: %v", err)
	}
}

// CreateGroup seeds a group led by leader with the other students as members
func CreateGroup(t *testing.T, db *gorm.DB, project models.Project, name string, leader models.Student, members ...models.Student) models.Group {
	t.Helper()
	group := models.Group{ProjectID: project.ID, Name: name}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	AddMember(t, db, group, leader, models.StudentRoleGroupLeader)
	for _, m := range members {
		AddMember(t, db, group, m, models.StudentRoleMember)
	}
	return group
}

// AddMember puts a student in a group
func AddMember(t *testing.T, db *gorm.DB, group models.Group, student models.Student, role models.StudentRoleID) {
	t.Helper()
	m := models.GroupMember{GroupID: group.ID, StudentID: student.ID, StudentRoleID: role, JoinedAt: time.Now()}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
}

// StudentAuth returns an Authorization header value for student
func StudentAuth(t *testing.T, tm *auth.TokenManager, student models.Student) string {
	t.Helper()
	token, err := tm.Issue(auth.Principal{UserID: student.ID})
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return "Bearer " + token
}

// AdminAuth returns an Authorization header value for admin
func AdminAuth(t *testing.T, tm *auth.TokenManager, admin models.Admin) string {
	t.Helper()
	token, err := tm.Issue(auth.Principal{UserID: admin.ID, IsAdmin: true, Role: admin.AdminRoleID})
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return "Bearer " + token
}

// Do sends a request with an optional JSON body and Authorization header
func Do(r http.Handler, method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("marshal request body: %v", err))
		}
		reader = bytes.NewBuffer(data)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

// Decode unmarshals the response body into v
func Decode(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", resp.Body.String(), err)
	}
}

// ExpectStatus fails the test when the response has another status
func ExpectStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, resp.Code, resp.Body.String())
	}
}
