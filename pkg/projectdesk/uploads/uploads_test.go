package uploads

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/mikepea/projectdesk/pkg/projectdesk/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	r         *gin.Engine
	tm        *auth.TokenManager
	store     *storage.LocalStore
	project   models.Project
	student   models.Student
	selection models.StudentDeliverableSelection
}

func setup(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	f := &fixture{db: db, r: testutil.NewRouter(), tm: testutil.NewTokens(), store: store}
	h := NewHandler(db, store)
	h.RegisterStudentRoutes(f.r.Group("/v1/students", auth.Middleware(f.tm), auth.RequireStudent()))
	h.RegisterAdminRoutes(f.r.Group("/v1/admins", auth.Middleware(f.tm), auth.RequireAdmin()))

	f.project = testutil.CreateProject(t, db, "Compilers")
	db.Model(&f.project).Update("max_student_uploads", 2)
	f.student = testutil.CreateStudent(t, db, "alice@uni.edu")
	testutil.CreateGroup(t, db, f.project, "Team A", f.student)

	deliverable := models.StudentDeliverable{ProjectID: f.project.ID, Name: "Report"}
	if err := db.Create(&deliverable).Error; err != nil {
		t.Fatalf("Failed to create deliverable: %v", err)
	}
	f.selection = models.StudentDeliverableSelection{StudentID: f.student.ID, StudentDeliverableID: deliverable.ID}
	if err := db.Create(&f.selection).Error; err != nil {
		t.Fatalf("Failed to create selection: %v", err)
	}
	return f
}

func upload(r http.Handler, path, authHeader, name, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", name)
	part.Write([]byte(content))
	w.Close()

	req, _ := http.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", authHeader)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\notes v2.txt`, "notes_v2.txt"},
		{"..", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	key := Key(3, 7, "My Report.pdf")
	if !strings.HasPrefix(key, "projects/3/students/7/") || !strings.HasSuffix(key, "-My_Report.pdf") {
		t.Errorf("Unexpected key %q", key)
	}
	if _, err := storage.CleanKey(key); err != nil {
		t.Errorf("Key %q is not a valid storage key: %v", key, err)
	}
}

func TestUploadListDownloadDelete(t *testing.T) {
	f := setup(t)
	studentAuth := testutil.StudentAuth(t, f.tm, f.student)
	base := fmt.Sprintf("/v1/students/deliverable-selection/%d/uploads", f.selection.ID)

	resp := upload(f.r, base, studentAuth, "notes.txt", "hello world")
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var created UploadResponse
	testutil.Decode(t, resp, &created)
	if created.FileName != "notes.txt" || created.SizeBytes != 11 || !strings.HasPrefix(created.ContentType, "text/plain") {
		t.Errorf("Unexpected upload %+v", created)
	}

	var stored models.StudentUpload
	f.db.First(&stored, created.ID)
	if !strings.HasPrefix(stored.Path, fmt.Sprintf("projects/%d/students/%d/", f.project.ID, f.student.ID)) {
		t.Errorf("Unexpected storage path %q", stored.Path)
	}

	resp = testutil.Do(f.r, "GET", base, studentAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var list []UploadResponse
	testutil.Decode(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 upload, got %d", len(list))
	}

	download := fmt.Sprintf("/v1/students/uploads/%d", created.ID)
	resp = testutil.Do(f.r, "GET", download, studentAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	if resp.Body.String() != "hello world" {
		t.Errorf("Unexpected download body %q", resp.Body.String())
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), `"notes.txt"`) {
		t.Errorf("Unexpected Content-Disposition %q", resp.Header().Get("Content-Disposition"))
	}

	other := testutil.CreateStudent(t, f.db, "bob@uni.edu")
	resp = testutil.Do(f.r, "GET", download, testutil.StudentAuth(t, f.tm, other), nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(f.r, "DELETE", download, studentAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusNoContent)
	if _, err := f.store.Open(context.Background(), stored.Path); err == nil {
		t.Error("Expected stored file to be removed")
	}
}

func TestUploadLimit(t *testing.T) {
	f := setup(t)
	studentAuth := testutil.StudentAuth(t, f.tm, f.student)
	base := fmt.Sprintf("/v1/students/deliverable-selection/%d/uploads", f.selection.ID)

	for i := 0; i < 2; i++ {
		resp := upload(f.r, base, studentAuth, fmt.Sprintf("f%d.txt", i), "data")
		testutil.ExpectStatus(t, resp, http.StatusCreated)
	}
	resp := upload(f.r, base, studentAuth, "f2.txt", "data")
	testutil.ExpectStatus(t, resp, http.StatusConflict)
}

func TestUploadRequiresOwnSelection(t *testing.T) {
	f := setup(t)
	other := testutil.CreateStudent(t, f.db, "bob@uni.edu")
	base := fmt.Sprintf("/v1/students/deliverable-selection/%d/uploads", f.selection.ID)

	resp := upload(f.r, base, testutil.StudentAuth(t, f.tm, other), "x.txt", "data")
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(f.r, "POST", base, testutil.StudentAuth(t, f.tm, f.student), nil)
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)
}

func TestAdminListScoped(t *testing.T) {
	f := setup(t)
	resp := upload(f.r, fmt.Sprintf("/v1/students/deliverable-selection/%d/uploads", f.selection.ID),
		testutil.StudentAuth(t, f.tm, f.student), "notes.txt", "hello")
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var created UploadResponse
	testutil.Decode(t, resp, &created)

	professor := testutil.CreateAdmin(t, f.db, "prof@uni.edu", models.AdminRoleProfessor)
	resp = testutil.Do(f.r, "GET", fmt.Sprintf("/v1/admins/uploads?project_id=%d", f.project.ID), testutil.AdminAuth(t, f.tm, professor), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var list []AdminUploadResponse
	testutil.Decode(t, resp, &list)
	if len(list) != 1 || list[0].StudentEmail != f.student.Email || list[0].ProjectID != f.project.ID {
		t.Errorf("Unexpected uploads %+v", list)
	}

	coordinator := testutil.CreateAdmin(t, f.db, "coord@uni.edu", models.AdminRoleCoordinator)
	resp = testutil.Do(f.r, "GET", fmt.Sprintf("/v1/admins/uploads/%d", created.ID), testutil.AdminAuth(t, f.tm, coordinator), nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	testutil.AssignCoordinator(t, f.db, coordinator, f.project)
	resp = testutil.Do(f.r, "GET", fmt.Sprintf("/v1/admins/uploads/%d", created.ID), testutil.AdminAuth(t, f.tm, coordinator), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	if resp.Body.String() != "hello" {
		t.Errorf("Unexpected body %q", resp.Body.String())
	}
}
