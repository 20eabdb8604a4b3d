package students

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	router      *gin.Engine
	tokens      *auth.TokenManager
	emailTokens *auth.EmailTokens
	outbox      *mail.Recorder
}

func setup(t *testing.T, opts Options) *fixture {
	db := testutil.NewDB(t)
	tm := testutil.NewTokens()
	emailTokens := auth.NewEmailTokens([]byte("email-secret"))
	outbox := &mail.Recorder{}
	composer, err := mail.NewComposer(outbox, emailTokens, "https://desk.example.edu")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}

	r := testutil.NewRouter()
	h := NewHandler(db, tm, emailTokens, composer, opts)
	h.RegisterAuthRoutes(r.Group("/v1/students/auth"), func(c *gin.Context) { c.Next() })
	h.RegisterRoutes(r.Group("/v1/students", auth.Middleware(tm), auth.RequireStudent()))

	return &fixture{db: db, router: r, tokens: tm, emailTokens: emailTokens, outbox: outbox}
}

func signupBody(email, universityID string) SignupRequest {
	return SignupRequest{
		FirstName:    "Ana",
		LastName:     "Diaz",
		Email:        email,
		UniversityID: universityID,
		Password:     "password123",
	}
}

func linkToken(t *testing.T, text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "https://") {
			u, err := url.Parse(field)
			if err != nil {
				t.Fatalf("Invalid link %q: %v", field, err)
			}
			return u.Query().Get("t")
		}
	}
	t.Fatalf("No link in %q", text)
	return ""
}

func TestDomainAllowed(t *testing.T) {
	tests := []struct {
		email   string
		allowed []string
		want    bool
	}{
		{"a@uni.edu", nil, true},
		{"a@uni.edu", []string{"uni.edu"}, true},
		{"a@UNI.edu", []string{"@uni.EDU"}, true},
		{"a@other.edu", []string{"uni.edu"}, false},
		{"a@sub.uni.edu", []string{"uni.edu"}, false},
		{"no-at", []string{"uni.edu"}, false},
	}
	for _, tt := range tests {
		if got := DomainAllowed(tt.email, tt.allowed); got != tt.want {
			t.Errorf("DomainAllowed(%q, %v) = %v, want %v", tt.email, tt.allowed, got, tt.want)
		}
	}
}

func TestAllowedDomainsEndpoint(t *testing.T) {
	f := setup(t, Options{AllowedDomains: []string{"uni.edu"}})

	resp := testutil.Do(f.router, "GET", "/v1/students/auth/allowed-domains", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)

	var body struct {
		Domains []string `json:"domains"`
	}
	testutil.Decode(t, resp, &body)
	if len(body.Domains) != 1 || body.Domains[0] != "uni.edu" {
		t.Errorf("Unexpected domains %v", body.Domains)
	}
}

func TestSignupConfirmFlow(t *testing.T) {
	f := setup(t, Options{AllowedDomains: []string{"uni.edu"}})

	resp := testutil.Do(f.router, "POST", "/v1/students/auth/signup", "", signupBody("ana@uni.edu", "A1"))
	testutil.ExpectStatus(t, resp, http.StatusCreated)

	var created StudentResponse
	testutil.Decode(t, resp, &created)
	if !created.IsPending {
		t.Error("New student should be pending")
	}

	msg, ok := f.outbox.Last()
	if !ok {
		t.Fatal("Expected a confirmation mail")
	}
	if msg.Subject != mail.SubjectConfirm || msg.To != "ana@uni.edu" {
		t.Errorf("Unexpected mail %q to %s", msg.Subject, msg.To)
	}

	token := linkToken(t, msg.Text)
	resp = testutil.Do(f.router, "GET", "/v1/students/auth/confirm?t="+token, "", nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)

	var student models.Student
	f.db.First(&student, created.ID)
	if student.IsPending {
		t.Error("Student should be confirmed")
	}
}

func TestSignupSkipConfirmation(t *testing.T) {
	f := setup(t, Options{SkipEmailConfirmation: true})

	resp := testutil.Do(f.router, "POST", "/v1/students/auth/signup", "", signupBody("ana@uni.edu", "A1"))
	testutil.ExpectStatus(t, resp, http.StatusCreated)

	var student models.Student
	f.db.Where("email = ?", "ana@uni.edu").First(&student)
	if student.IsPending {
		t.Error("Student should not be pending when confirmation is skipped")
	}
	if len(f.outbox.Messages()) != 0 {
		t.Error("No mail should be sent when confirmation is skipped")
	}
}

func TestSignupRejections(t *testing.T) {
	f := setup(t, Options{AllowedDomains: []string{"uni.edu"}})
	testutil.CreateStudent(t, f.db, "taken@uni.edu")
	f.db.Create(&models.BlacklistEntry{UniversityID: "BANNED"})

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"wrong domain", signupBody("ana@gmail.com", "A1"), http.StatusForbidden},
		{"blacklisted", signupBody("ana@uni.edu", "BANNED"), http.StatusForbidden},
		{"email taken", signupBody("taken@uni.edu", "A2"), http.StatusConflict},
		{"university id taken", signupBody("new@uni.edu", "U-taken"), http.StatusConflict},
		{"short password", SignupRequest{FirstName: "A", LastName: "B", Email: "x@uni.edu", UniversityID: "X", Password: "short"}, http.StatusBadRequest},
		{"missing fields", map[string]string{"email": "x@uni.edu"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(f.router, "POST", "/v1/students/auth/signup", "", tt.body)
			if resp.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestSignupMailFailure(t *testing.T) {
	f := setup(t, Options{})
	f.outbox.Err = errors.New("relay down")

	resp := testutil.Do(f.router, "POST", "/v1/students/auth/signup", "", signupBody("ana@uni.edu", "A1"))
	testutil.ExpectStatus(t, resp, http.StatusServiceUnavailable)
	if !strings.Contains(resp.Body.String(), "account created but confirmation email could not be sent") {
		t.Errorf("Unexpected body %s", resp.Body.String())
	}

	var count int64
	f.db.Model(&models.Student{}).Where("email = ?", "ana@uni.edu").Count(&count)
	if count != 1 {
		t.Error("Student should still have been created")
	}
}

func TestConfirmInvalidToken(t *testing.T) {
	f := setup(t, Options{})

	resp := testutil.Do(f.router, "GET", "/v1/students/auth/confirm?t=garbage", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)

	token, _ := f.emailTokens.Issue(auth.PurposeConfirm, "ghost@uni.edu", "", auth.ConfirmTokenTTL)
	resp = testutil.Do(f.router, "GET", "/v1/students/auth/confirm?t="+token, "", nil)
	testutil.ExpectStatus(t, resp, http.StatusNotFound)
}

func TestLogin(t *testing.T) {
	f := setup(t, Options{})
	student := testutil.CreateStudent(t, f.db, "ana@uni.edu")

	resp := testutil.Do(f.router, "POST", "/v1/students/auth/login", "", LoginRequest{Email: "ana@uni.edu", Password: testutil.Password})
	testutil.ExpectStatus(t, resp, http.StatusOK)

	var body AuthResponse
	testutil.Decode(t, resp, &body)
	if body.Token == "" || body.Student.ID != student.ID {
		t.Errorf("Unexpected login response %+v", body)
	}

	resp = testutil.Do(f.router, "GET", "/v1/students/users/me", "Bearer "+body.Token, nil)
	testutil.ExpectStatus(t, resp, http.StatusOK)

	resp = testutil.Do(f.router, "POST", "/v1/students/auth/login", "", LoginRequest{Email: "ana@uni.edu", Password: "wrong-password"})
	testutil.ExpectStatus(t, resp, http.StatusUnauthorized)

	resp = testutil.Do(f.router, "POST", "/v1/students/auth/login", "", LoginRequest{Email: "nobody@uni.edu", Password: testutil.Password})
	testutil.ExpectStatus(t, resp, http.StatusUnauthorized)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := setup(t, Options{})
	testutil.CreateStudent(t, f.db, "ana@uni.edu")

	resp := testutil.Do(f.router, "POST", "/v1/students/auth/forgot-password", "", ForgotPasswordRequest{Email: "nobody@uni.edu"})
	testutil.ExpectStatus(t, resp, http.StatusNoContent)
	if len(f.outbox.Messages()) != 0 {
		t.Fatal("No mail should go to unknown addresses")
	}

	resp = testutil.Do(f.router, "POST", "/v1/students/auth/forgot-password", "", ForgotPasswordRequest{Email: "ana@uni.edu"})
	testutil.ExpectStatus(t, resp, http.StatusNoContent)
	msg, ok := f.outbox.Last()
	if !ok || msg.Subject != mail.SubjectReset {
		t.Fatalf("Expected a reset mail, got %+v", msg)
	}
	token := linkToken(t, msg.Text)

	resp = testutil.Do(f.router, "POST", "/v1/students/auth/reset-password?t="+token, "", ResetPasswordRequest{Password: "newpassword1"})
	testutil.ExpectStatus(t, resp, http.StatusOK)

	resp = testutil.Do(f.router, "POST", "/v1/students/auth/login", "", LoginRequest{Email: "ana@uni.edu", Password: "newpassword1"})
	testutil.ExpectStatus(t, resp, http.StatusOK)

	// the link is bound to the old password
	resp = testutil.Do(f.router, "POST", "/v1/students/auth/reset-password?t="+token, "", ResetPasswordRequest{Password: "another-one"})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)
}

func TestResetRejectsConfirmToken(t *testing.T) {
	f := setup(t, Options{})
	testutil.CreateStudent(t, f.db, "ana@uni.edu")

	token, _ := f.emailTokens.Issue(auth.PurposeConfirm, "ana@uni.edu", "", auth.ConfirmTokenTTL)
	resp := testutil.Do(f.router, "POST", "/v1/students/auth/reset-password?t="+token, "", ResetPasswordRequest{Password: "newpassword1"})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)
}

func TestUpdateMe(t *testing.T) {
	f := setup(t, Options{})
	student := testutil.CreateStudent(t, f.db, "ana@uni.edu")
	authHeader := testutil.StudentAuth(t, f.tokens, student)

	first := "Anabel"
	resp := testutil.Do(f.router, "PATCH", "/v1/students/users/me", authHeader, UpdateMeRequest{FirstName: &first})
	testutil.ExpectStatus(t, resp, http.StatusOK)

	var body StudentResponse
	testutil.Decode(t, resp, &body)
	if body.FirstName != "Anabel" {
		t.Errorf("Expected first name Anabel, got %s", body.FirstName)
	}

	empty := " "
	resp = testutil.Do(f.router, "PATCH", "/v1/students/users/me", authHeader, UpdateMeRequest{LastName: &empty})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)

	short := "short"
	resp = testutil.Do(f.router, "PATCH", "/v1/students/users/me", authHeader, UpdateMeRequest{Password: &short})
	testutil.ExpectStatus(t, resp, http.StatusBadRequest)
}

func TestMeRequiresStudentToken(t *testing.T) {
	f := setup(t, Options{})
	admin := testutil.CreateAdmin(t, f.db, "root@uni.edu", models.AdminRoleRoot)

	resp := testutil.Do(f.router, "GET", "/v1/students/users/me", "", nil)
	testutil.ExpectStatus(t, resp, http.StatusUnauthorized)

	resp = testutil.Do(f.router, "GET", "/v1/students/users/me", testutil.AdminAuth(t, f.tokens, admin), nil)
	testutil.ExpectStatus(t, resp, http.StatusForbidden)
}
