package catalog

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/testutil"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *gin.Engine, string) {
	db := testutil.NewDB(t)
	tm := testutil.NewTokens()
	r := testutil.NewRouter()
	h := NewHandler(db)
	h.RegisterAdminRoutes(r.Group("/v1/admins", auth.Middleware(tm), auth.RequireAdmin()))
	h.RegisterStudentRoutes(r.Group("/v1/students", auth.Middleware(tm), auth.RequireStudent()))
	root := testutil.CreateAdmin(t, db, "root@uni.edu", models.AdminRoleRoot)
	return db, r, testutil.AdminAuth(t, tm, root)
}

func create(t *testing.T, r *gin.Engine, authHeader, path string, body interface{}) models.CatalogView {
	t.Helper()
	resp := testutil.Do(r, "POST", path, authHeader, body)
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var view models.CatalogView
	testutil.Decode(t, resp, &view)
	return view
}

func TestItemCRUD(t *testing.T) {
	db, r, rootAuth := setup(t)
	project := testutil.CreateProject(t, db, "Compilers")

	parser := create(t, r, rootAuth, "/v1/admins/group-deliverables", CreateItemRequest{ProjectID: project.ID, Name: "Parser"})
	if parser.Name != "Parser" || parser.Sellable != nil {
		t.Errorf("Unexpected deliverable %+v", parser)
	}

	resp := testutil.Do(r, "POST", "/v1/admins/group-deliverables", rootAuth, CreateItemRequest{ProjectID: project.ID, Name: "Parser"})
	testutil.ExpectStatus(t, resp, http.StatusConflict)

	resp = testutil.Do(r, "POST", "/v1/admins/group-deliverables", rootAuth, CreateItemRequest{ProjectID: 999, Name: "Lexer"})
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	yes := true
	lexer := create(t, r, rootAuth, "/v1/admins/group-deliverable-components", CreateItemRequest{ProjectID: project.ID, Name: "Lexer", Sellable: &yes})
	if lexer.Sellable == nil || !*lexer.Sellable {
		t.Errorf("Expected sellable component, got %+v", lexer)
	}

	no := false
	resp = testutil.Do(r, "PATCH", fmt.Sprintf("/v1/admins/group-deliverable-components/%d", lexer.ID), rootAuth, UpdateItemRequest{Sellable: &no})
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var updated models.CatalogView
	testutil.Decode(t, resp, &updated)
	if updated.Sellable == nil || *updated.Sellable {
		t.Errorf("Expected component to no longer be sellable, got %+v", updated)
	}

	resp = testutil.Do(r, "PATCH", fmt.Sprintf("/v1/admins/student-deliverables/%d", parser.ID), rootAuth, UpdateItemRequest{Sellable: &no})
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(r, "GET", fmt.Sprintf("/v1/admins/group-deliverables?project_id=%d", project.ID), rootAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var list []models.CatalogView
	testutil.Decode(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 deliverable, got %d", len(list))
	}

	resp = testutil.Do(r, "DELETE", fmt.Sprintf("/v1/admins/group-deliverables/%d", parser.ID), rootAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusNoContent)
	resp = testutil.Do(r, "GET", fmt.Sprintf("/v1/admins/group-deliverables/%d", parser.ID), rootAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)
}

func TestStudentScopeHasNoSellableFlag(t *testing.T) {
	db, r, rootAuth := setup(t)
	project := testutil.CreateProject(t, db, "Compilers")

	component := create(t, r, rootAuth, "/v1/admins/student-deliverable-components", CreateItemRequest{ProjectID: project.ID, Name: "Tests"})
	no := false
	resp := testutil.Do(r, "PATCH", fmt.Sprintf("/v1/admins/student-deliverable-components/%d", component.ID), rootAuth, UpdateItemRequest{Sellable: &no})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)
}

func TestLinks(t *testing.T) {
	db, r, rootAuth := setup(t)
	project := testutil.CreateProject(t, db, "Compilers")
	other := testutil.CreateProject(t, db, "Networks")

	deliverable := create(t, r, rootAuth, "/v1/admins/group-deliverables", CreateItemRequest{ProjectID: project.ID, Name: "Frontend"})
	lexer := create(t, r, rootAuth, "/v1/admins/group-deliverable-components", CreateItemRequest{ProjectID: project.ID, Name: "Lexer"})
	parser := create(t, r, rootAuth, "/v1/admins/group-deliverable-components", CreateItemRequest{ProjectID: project.ID, Name: "Parser"})
	foreign := create(t, r, rootAuth, "/v1/admins/group-deliverable-components", CreateItemRequest{ProjectID: other.ID, Name: "Socket"})

	path := "/v1/admins/group-deliverables-components"
	resp := testutil.Do(r, "POST", path, rootAuth, CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: lexer.ID, Quantity: 2})
	testutil.ExpectStatus(t, resp, http.StatusCreated)
	var link models.LinkView
	testutil.Decode(t, resp, &link)

	resp = testutil.Do(r, "POST", path, rootAuth, CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: parser.ID})
	testutil.ExpectStatus(t, resp, http.StatusCreated)

	resp = testutil.Do(r, "POST", path, rootAuth, CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: lexer.ID})
	testutil.ExpectStatus(t, resp, http.StatusConflict)

	resp = testutil.Do(r, "POST", path, rootAuth, CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: foreign.ID})
	testutil.ExpectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = testutil.Do(r, "POST", path, rootAuth, CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: parser.ID, Quantity: -1})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)

	resp = testutil.Do(r, "PATCH", fmt.Sprintf("%s/%d", path, link.ID), rootAuth, UpdateLinkRequest{Quantity: 5})
	testutil.ExpectStatus(t, resp, http.StatusOK)

	resp = testutil.Do(r, "GET", fmt.Sprintf("/v1/admins/group-deliverables/%d/components", deliverable.ID), rootAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var components []LinkedItem
	testutil.Decode(t, resp, &components)
	if len(components) != 2 || components[0].Item.Name != "Lexer" || components[0].Quantity != 5 {
		t.Errorf("Unexpected components %+v", components)
	}

	resp = testutil.Do(r, "GET", fmt.Sprintf("/v1/admins/group-deliverable-components/%d/deliverables", parser.ID), rootAuth, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var deliverables []LinkedItem
	testutil.Decode(t, resp, &deliverables)
	if len(deliverables) != 1 || deliverables[0].Item.ID != deliverable.ID || deliverables[0].Quantity != 1 {
		t.Errorf("Unexpected deliverables %+v", deliverables)
	}
}

func TestAdminRoutesRequireManager(t *testing.T) {
	db, r, _ := setup(t)
	tm := testutil.NewTokens()
	tutor := testutil.CreateAdmin(t, db, "tutor@uni.edu", models.AdminRoleTutor)

	resp := testutil.Do(r, "GET", "/v1/admins/group-deliverables", testutil.AdminAuth(t, tm, tutor), nil)
	testutil.ExpectStatus(t, resp, http.StatusForbidden)
}

func TestStudentProjectCatalog(t *testing.T) {
	db, r, rootAuth := setup(t)
	tm := testutil.NewTokens()
	project := testutil.CreateProject(t, db, "Compilers")
	leader := testutil.CreateStudent(t, db, "leader@uni.edu")
	outsider := testutil.CreateStudent(t, db, "outsider@uni.edu")
	testutil.CreateGroup(t, db, project, "Team A", leader)

	deliverable := create(t, r, rootAuth, "/v1/admins/student-deliverables", CreateItemRequest{ProjectID: project.ID, Name: "Report"})
	component := create(t, r, rootAuth, "/v1/admins/student-deliverable-components", CreateItemRequest{ProjectID: project.ID, Name: "Abstract"})
	resp := testutil.Do(r, "POST", "/v1/admins/student-deliverables-components", rootAuth,
		CreateLinkRequest{DeliverableID: deliverable.ID, ComponentID: component.ID})
	testutil.ExpectStatus(t, resp, http.StatusCreated)

	path := fmt.Sprintf("/v1/students/projects/%d/student-deliverables", project.ID)
	resp = testutil.Do(r, "GET", path, testutil.StudentAuth(t, tm, outsider), nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)

	resp = testutil.Do(r, "GET", path, testutil.StudentAuth(t, tm, leader), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
	var out []DeliverableResponse
	testutil.Decode(t, resp, &out)
	if len(out) != 1 || len(out[0].Components) != 1 || out[0].Components[0].Item.Name != "Abstract" {
		t.Errorf("Unexpected catalog %+v", out)
	}

	resp = testutil.Do(r, "GET", fmt.Sprintf("/v1/students/projects/%d/group-deliverables", project.ID), testutil.StudentAuth(t, tm, leader), nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)
}
