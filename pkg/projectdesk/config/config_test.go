package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_URL", "test.db")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("EMAIL_TOKEN_SECRET", "email-secret")
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.toml")
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_VALIDITY_DAYS", "7")
	t.Setenv("ALLOWED_SIGNUP_DOMAINS", `["uni.edu","staff.uni.edu"]`)
	t.Setenv("SKIP_EMAIL_CONFIRMATION", "true")

	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Errorf("Unexpected listen address %s", cfg.ListenAddr())
	}
	if cfg.JWTValidity() != 7*24*time.Hour {
		t.Errorf("Unexpected validity %v", cfg.JWTValidity())
	}
	if len(cfg.AllowedSignupDomains) != 2 || cfg.AllowedSignupDomains[1] != "staff.uni.edu" {
		t.Errorf("Unexpected domains %v", cfg.AllowedSignupDomains)
	}
	if !cfg.SkipEmailConfirmation {
		t.Error("Expected email confirmation to be skipped")
	}
	if cfg.SMTPConfigured() || cfg.B2Configured() {
		t.Error("Nothing external should be configured")
	}
}

func TestTOMLOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
port = 7000
workers = 4
allowed_signup_domains = ["school.org"]
smtp_host = "smtp.school.org"
smtp_username = "noreply@school.org"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("Expected toml port 7000, got %d", cfg.Port)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.DBURL != "test.db" {
		t.Errorf("Env values not in the file should stay, got %q", cfg.DBURL)
	}
	if !cfg.SMTPConfigured() {
		t.Error("Expected SMTP to be configured")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("EMAIL_TOKEN_SECRET", "")

	_, err := Load(missingFile(t))
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, field := range []string{"DBURL", "JWTSecret", "EmailTokenSecret"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Expected error to mention %s: %v", field, err)
		}
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("PORT", "eighty")
	if _, err := Load(missingFile(t)); err == nil {
		t.Error("Expected error for non-numeric port")
	}

	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_SIGNUP_DOMAINS", "uni.edu")
	if _, err := Load(missingFile(t)); err == nil {
		t.Error("Expected error for non-JSON domain list")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PROJECTDESK_DOTENV_CHECK=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROJECTDESK_DOTENV_CHECK", "")
	os.Unsetenv("PROJECTDESK_DOTENV_CHECK")

	if err := LoadDotEnv(path, missingFile(t)); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if os.Getenv("PROJECTDESK_DOTENV_CHECK") != "loaded" {
		t.Error("Expected variable from .env file")
	}
}
