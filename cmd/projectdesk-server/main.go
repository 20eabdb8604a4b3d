package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/admins"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/config"
	"github.com/mikepea/projectdesk/pkg/projectdesk/database"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/mail"
	"github.com/mikepea/projectdesk/pkg/projectdesk/migrations"
	"github.com/mikepea/projectdesk/pkg/projectdesk/server"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/shrimpsizemoose/trekker/logger"
)

// requestLogBuffer is how many request records may wait for the Mongo sink
const requestLogBuffer = 1024

func main() {
	configPath := flag.String("config", "", "path to config.toml (default $CONFIG_FILE or ./config.toml)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		logger.Error.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Workers > 0 {
		runtime.GOMAXPROCS(cfg.Workers)
	}
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Connect(cfg.DBURL); err != nil {
		logger.Error.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetDB()

	ran, err := migrations.Run(db)
	if err != nil {
		logger.Error.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info.Printf("Database migrations completed (%d applied)", ran)

	if _, err := admins.EnsureRootAdmin(db, cfg.DefaultAdminEmail, cfg.DefaultAdminPassword); err != nil {
		logger.Error.Fatalf("Failed to ensure root admin exists: %v", err)
	}

	revoker, closeRevoker, err := openRevoker(ctx, cfg)
	if err != nil {
		logger.Error.Fatalf("Failed to open token revocation store: %v", err)
	}
	defer closeRevoker()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error.Fatalf("Failed to open upload storage: %v", err)
	}
	logger.Info.Printf("Uploads are stored in %s storage", store.Name())

	emailTokens := auth.NewEmailTokens([]byte(cfg.EmailTokenSecret))
	composer, err := mail.NewComposer(newMailer(cfg), emailTokens, cfg.AppBaseURL)
	if err != nil {
		logger.Error.Fatalf("Failed to load mail templates: %v", err)
	}

	sink := newSink(cfg)
	defer sink.Close()

	router := server.New(server.Deps{
		DB:                    db,
		Tokens:                auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTValidity(), revoker),
		EmailTokens:           emailTokens,
		Mail:                  composer,
		Store:                 store,
		Sink:                  sink,
		AllowedSignupDomains:  cfg.AllowedSignupDomains,
		SkipEmailConfirmation: cfg.SkipEmailConfirmation,
		AuthRateLimit:         cfg.AuthRateLimit,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info.Printf("Starting projectdesk %s on %s", server.Version, cfg.ListenAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("Shutdown error: %v", err)
	}
}

// openRevoker prefers Redis so several instances share logouts, and falls
// back to a bbolt file in the data directory
func openRevoker(ctx context.Context, cfg *config.Config) (auth.Revoker, func(), error) {
	if cfg.RedisURL != "" {
		r, err := auth.NewRedisRevoker(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info.Printf("Token revocations are kept in Redis")
		return r, func() { r.Close() }, nil
	}

	r, err := auth.OpenBoltRevoker(filepath.Join(cfg.DataDir, "revoked_tokens.db"))
	if err != nil {
		return nil, nil, err
	}
	logger.Info.Printf("Token revocations are kept in %s", cfg.DataDir)
	return r, func() { r.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.B2Configured() {
		return storage.NewB2Store(ctx, cfg.B2AccountID, cfg.B2AccountKey, cfg.B2Bucket)
	}
	return storage.NewLocalStore(filepath.Join(cfg.DataDir, "uploads"))
}

func newMailer(cfg *config.Config) mail.Mailer {
	if !cfg.SMTPConfigured() {
		logger.Info.Printf("SMTP is not configured, outgoing mail is only logged")
		return mail.LogMailer{Accept: cfg.SkipEmailConfirmation}
	}
	m, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.EmailFrom,
	})
	if err != nil {
		logger.Error.Fatalf("Failed to set up SMTP: %v", err)
	}
	return m
}

func newSink(cfg *config.Config) logging.Sink {
	local := logging.LoggerSink{Verbose: cfg.Debug()}
	if cfg.LogsMongoURI == "" {
		return local
	}
	mongo, err := logging.DialMongo(cfg.LogsMongoURI, cfg.LogsDBName)
	if err != nil {
		logger.Error.Printf("Request logs stay local, MongoDB is unavailable: %v", err)
		return local
	}
	logger.Info.Printf("Request logs are stored in MongoDB database %s", cfg.LogsDBName)
	return logging.NewAsync(mongo, requestLogBuffer)
}
