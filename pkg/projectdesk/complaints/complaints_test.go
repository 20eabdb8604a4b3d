package complaints

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/testutil"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *gin.Engine, *auth.TokenManager) {
	db := testutil.NewDB(t)
	tm := testutil.NewTokens()
	r := testutil.NewRouter()
	h := NewHandler(db)
	h.RegisterStudentRoutes(r.Group("/v1/students", auth.Middleware(tm), auth.RequireStudent()))
	h.RegisterAdminRoutes(r.Group("/v1/admins", auth.Middleware(tm), auth.RequireAdmin()))
	return db, r, tm
}

func TestCreateComplaint(t *testing.T) {
	db, r, tm := setup(t)
	project := testutil.CreateProject(t, db, "Compilers")
	other := testutil.CreateProject(t, db, "Networks")

	alice := testutil.CreateStudent(t, db, "alice@uni.edu")
	member := testutil.CreateStudent(t, db, "member@uni.edu")
	bob := testutil.CreateStudent(t, db, "bob@uni.edu")
	carol := testutil.CreateStudent(t, db, "carol@uni.edu")
	from := testutil.CreateGroup(t, db, project, "Team A", alice, member)
	to := testutil.CreateGroup(t, db, project, "Team B", bob)
	elsewhere := testutil.CreateGroup(t, db, other, "Team C", carol)

	path := fmt.Sprintf("/v1/students/groups/%d/complaints", from.ID)
	memberAuth := testutil.StudentAuth(t, tm, member)

	tests := []struct {
		name string
		req  CreateComplaintRequest
		want int
	}{
		{"self", CreateComplaintRequest{ToGroupID: from.ID, Text: "hm"}, http.StatusUnprocessableEntity},
		{"other project", CreateComplaintRequest{ToGroupID: elsewhere.ID, Text: "hm"}, http.StatusUnprocessableEntity},
		{"unknown group", CreateComplaintRequest{ToGroupID: 999, Text: "hm"}, http.StatusNotFound},
		{"blank", CreateComplaintRequest{ToGroupID: to.ID, Text: "   "}, http.StatusBadRequest},
		{"too long", CreateComplaintRequest{ToGroupID: to.ID, Text: strings.Repeat("x", MaxTextLength+1)}, http.StatusBadRequest},
		{"ok", CreateComplaintRequest{ToGroupID: to.ID, Text: "They copied our parser"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(r, "POST", path, memberAuth, tt.req)
			testutil.ExpectStatus(t, resp, tt.want)
		})
	}

	resp := testutil.Do(r, "POST", path, testutil.StudentAuth(t, tm, bob), CreateComplaintRequest{ToGroupID: to.ID, Text: "x"})
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(r, "GET", path, testutil.StudentAuth(t, tm, alice), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var list []ComplaintResponse
	testutil.Decode(t, resp, &list)
	if len(list) != 1 || list[0].ToGroupName != "Team B" || list[0].ProjectID != project.ID {
		t.Errorf("Unexpected complaints %+v", list)
	}
}

func TestAdminComplaints(t *testing.T) {
	db, r, tm := setup(t)
	project := testutil.CreateProject(t, db, "Compilers")
	alice := testutil.CreateStudent(t, db, "alice@uni.edu")
	bob := testutil.CreateStudent(t, db, "bob@uni.edu")
	from := testutil.CreateGroup(t, db, project, "Team A", alice)
	to := testutil.CreateGroup(t, db, project, "Team B", bob)
	complaint := models.Complaint{FromGroupID: from.ID, ToGroupID: to.ID, Text: "noise"}
	db.Create(&complaint)

	tutor := testutil.CreateAdmin(t, db, "tutor@uni.edu", models.AdminRoleTutor)
	coordinator := testutil.CreateAdmin(t, db, "coord@uni.edu", models.AdminRoleCoordinator)
	root := testutil.CreateAdmin(t, db, "root@uni.edu", models.AdminRoleRoot)

	resp := testutil.Do(r, "GET", fmt.Sprintf("/v1/admins/complaints?project_id=%d", project.ID), testutil.AdminAuth(t, tm, tutor), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var list []ComplaintResponse
	testutil.Decode(t, resp, &list)
	if len(list) != 1 || list[0].Text != "noise" {
		t.Errorf("Unexpected complaints %+v", list)
	}

	resp = testutil.Do(r, "GET", "/v1/admins/complaints", testutil.AdminAuth(t, tm, coordinator), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("Expected unassigned coordinator to see nothing, got %d", len(list))
	}

	path := fmt.Sprintf("/v1/admins/complaints/%d", complaint.ID)
	resp = testutil.Do(r, "DELETE", path, testutil.AdminAuth(t, tm, tutor), nil)
	testutil.ExpectStatus(t, resp, http.StatusForbidden)

	resp = testutil.Do(r, "DELETE", path, testutil.AdminAuth(t, tm, coordinator), nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(r, "DELETE", path, testutil.AdminAuth(t, tm, root), nil)
	testutil.ExpectStatus(t, resp, http.StatusNoContent)
}
