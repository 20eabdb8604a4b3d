// Package server assembles the HTTP API from the feature packages.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/admins"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/blacklist"
	"github.com/mikepea/projectdesk/pkg/projectdesk/catalog"
	"github.com/mikepea/projectdesk/pkg/projectdesk/complaints"
	"github.com/mikepea/projectdesk/pkg/projectdesk/database"
	"github.com/mikepea/projectdesk/pkg/projectdesk/fairs"
	"github.com/mikepea/projectdesk/pkg/projectdesk/groups"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/metrics"
	"github.com/mikepea/projectdesk/pkg/projectdesk/projects"
	"github.com/mikepea/projectdesk/pkg/projectdesk/ratelimit"
	"github.com/mikepea/projectdesk/pkg/projectdesk/securitycodes"
	"github.com/mikepea/projectdesk/pkg/projectdesk/selections"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/mikepea/projectdesk/pkg/projectdesk/students"
	"github.com/mikepea/projectdesk/pkg/projectdesk/uploads"
	"gorm.io/gorm"
)

// Version is set at build time with -ldflags "-X .../server.Version=..."
var Version = "dev"

// Deps are the services the API is built on
type Deps struct {
	DB          *gorm.DB
	Tokens      *auth.TokenManager
	EmailTokens *auth.EmailTokens
	Mail        *mail.Composer
	Store       storage.Store
	Sink        logging.Sink

	AllowedSignupDomains  []string
	SkipEmailConfirmation bool
	// AuthRateLimit is requests per minute per client on the auth
	// endpoints. Zero disables limiting.
	AuthRateLimit int
}

// New builds the gin engine with every route mounted
func New(d Deps) *gin.Engine {
	sink := d.Sink
	if sink == nil {
		sink = logging.LoggerSink{}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(sink))
	r.Use(metrics.Middleware())

	r.GET("/health", health(d.DB))
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limit := func(c *gin.Context) { c.Next() }
	if d.AuthRateLimit > 0 {
		limit = ratelimit.New(d.AuthRateLimit).Middleware()
	}

	studentHandler := students.NewHandler(d.DB, d.Tokens, d.EmailTokens, d.Mail, students.Options{
		AllowedDomains:        d.AllowedSignupDomains,
		SkipEmailConfirmation: d.SkipEmailConfirmation,
	})
	adminHandler := admins.NewHandler(d.DB, d.Tokens, d.EmailTokens, d.Mail)
	projectHandler := projects.NewHandler(d.DB)
	codeHandler := securitycodes.NewHandler(d.DB)
	groupHandler := groups.NewHandler(d.DB)
	catalogHandler := catalog.NewHandler(d.DB)
	selectionHandler := selections.NewHandler(d.DB, d.Store)
	fairHandler := fairs.NewHandler(d.DB)
	complaintHandler := complaints.NewHandler(d.DB)

	v1 := r.Group("/v1")
	auth.NewHandler(d.Tokens).RegisterRoutes(v1.Group("/auth"))

	studentHandler.RegisterAuthRoutes(v1.Group("/students/auth"), limit)
	adminHandler.RegisterAuthRoutes(v1.Group("/admins/auth"), limit)

	student := v1.Group("/students", auth.Middleware(d.Tokens), auth.RequireStudent())
	studentHandler.RegisterRoutes(student)
	projectHandler.RegisterStudentRoutes(student)
	codeHandler.RegisterStudentRoutes(student)
	groupHandler.RegisterStudentRoutes(student)
	catalogHandler.RegisterStudentRoutes(student)
	selectionHandler.RegisterStudentRoutes(student)
	fairHandler.RegisterStudentRoutes(student)
	complaintHandler.RegisterStudentRoutes(student)

	admin := v1.Group("/admins", auth.Middleware(d.Tokens), auth.RequireAdmin())
	adminHandler.RegisterRoutes(admin)
	projectHandler.RegisterAdminRoutes(admin)
	codeHandler.RegisterAdminRoutes(admin)
	blacklist.NewHandler(d.DB).RegisterRoutes(admin)
	groupHandler.RegisterAdminRoutes(admin)
	catalogHandler.RegisterAdminRoutes(admin)
	selectionHandler.RegisterAdminRoutes(admin)
	fairHandler.RegisterAdminRoutes(admin)
	complaintHandler.RegisterAdminRoutes(admin)

	if d.Store != nil {
		uploadHandler := uploads.NewHandler(d.DB, d.Store)
		uploadHandler.RegisterStudentRoutes(student)
		uploadHandler.RegisterAdminRoutes(admin)
	}

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
