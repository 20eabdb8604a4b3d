package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shrimpsizemoose/trekker/logger"
)

// Config is the runtime configuration. Values come from defaults, then the
// environment, then config.toml, each layer overriding the previous one.
type Config struct {
	Address string `toml:"address" validate:"required"`
	Port    int    `toml:"port" validate:"min=1,max=65535"`
	Workers int    `toml:"workers" validate:"min=0"`

	DBURL           string `toml:"db_url" validate:"required"`
	JWTSecret       string `toml:"jwt_secret" validate:"required"`
	JWTValidityDays int    `toml:"jwt_validity_days" validate:"min=1"`

	LogsMongoURI string `toml:"logs_mongo_uri"`
	LogsDBName   string `toml:"logs_db_name" validate:"required_with=LogsMongoURI"`

	DefaultAdminEmail    string `toml:"default_admin_email" validate:"omitempty,email"`
	DefaultAdminPassword string `toml:"default_admin_password" validate:"required_with=DefaultAdminEmail"`

	AllowedSignupDomains []string `toml:"allowed_signup_domains"`

	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port" validate:"min=0,max=65535"`
	SMTPUsername string `toml:"smtp_username" validate:"omitempty,email"`
	SMTPPassword string `toml:"smtp_password"`

	AppBaseURL            string `toml:"app_base_url" validate:"required,url"`
	EmailFrom             string `toml:"email_from" validate:"required"`
	EmailTokenSecret      string `toml:"email_token_secret" validate:"required"`
	SkipEmailConfirmation bool   `toml:"skip_email_confirmation"`

	DataDir  string `toml:"data_dir" validate:"required"`
	RedisURL string `toml:"redis_url"`

	B2AccountID  string `toml:"b2_account_id"`
	B2AccountKey string `toml:"b2_account_key" validate:"required_with=B2AccountID"`
	B2Bucket     string `toml:"b2_bucket" validate:"required_with=B2AccountID"`

	AuthRateLimit int    `toml:"auth_rate_limit" validate:"min=0"`
	LogLevel      string `toml:"log_level" validate:"oneof=debug info"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() Config {
	return Config{
		Address:         "0.0.0.0",
		Port:            8080,
		JWTValidityDays: 1,
		SMTPPort:        587,
		AppBaseURL:      "http://localhost:3000",
		EmailFrom:       "Advanced Programming",
		DataDir:         "./data",
		AuthRateLimit:   30,
		LogLevel:        "info",
	}
}

// LoadDotEnv loads variables from the given env files, skipping missing ones
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration. An empty path means CONFIG_FILE or
// config.toml; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if path == "" {
		path = getenv("CONFIG_FILE", "config.toml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		logger.Info.Printf("Loaded config file %s", path)
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug.Printf("No config file at %s, using environment only", path)
	default:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every failing field
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ListenAddr is the host:port the HTTP server binds
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// JWTValidity is how long session tokens stay valid
func (c *Config) JWTValidity() time.Duration {
	return time.Duration(c.JWTValidityDays) * 24 * time.Hour
}

// SMTPConfigured reports whether outgoing mail can be sent
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != ""
}

// B2Configured reports whether uploads go to Backblaze B2
func (c *Config) B2Configured() bool {
	return c.B2AccountID != ""
}

// Debug reports whether debug logging is on
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func applyEnv(c *Config) error {
	c.Address = getenv("ADDRESS", c.Address)
	c.DBURL = getenv("DB_URL", c.DBURL)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.LogsMongoURI = getenv("LOGS_MONGO_URI", c.LogsMongoURI)
	c.LogsDBName = getenv("LOGS_DB_NAME", c.LogsDBName)
	c.DefaultAdminEmail = getenv("DEFAULT_ADMIN_EMAIL", c.DefaultAdminEmail)
	c.DefaultAdminPassword = getenv("DEFAULT_ADMIN_PASSWORD", c.DefaultAdminPassword)
	c.SMTPHost = getenv("SMTP_HOST", c.SMTPHost)
	c.SMTPUsername = getenv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getenv("SMTP_PASSWORD", c.SMTPPassword)
	c.AppBaseURL = getenv("APP_BASE_URL", c.AppBaseURL)
	c.EmailFrom = getenv("EMAIL_FROM", c.EmailFrom)
	c.EmailTokenSecret = getenv("EMAIL_TOKEN_SECRET", c.EmailTokenSecret)
	c.DataDir = getenv("DATA_DIR", c.DataDir)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)
	c.B2AccountID = getenv("B2_ACCOUNT_ID", c.B2AccountID)
	c.B2AccountKey = getenv("B2_ACCOUNT_KEY", c.B2AccountKey)
	c.B2Bucket = getenv("B2_BUCKET", c.B2Bucket)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.Port, err = getenvInt("PORT", c.Port); err != nil {
		return err
	}
	if c.Workers, err = getenvInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.JWTValidityDays, err = getenvInt("JWT_VALIDITY_DAYS", c.JWTValidityDays); err != nil {
		return err
	}
	if c.SMTPPort, err = getenvInt("SMTP_PORT", c.SMTPPort); err != nil {
		return err
	}
	if c.AuthRateLimit, err = getenvInt("AUTH_RATE_LIMIT", c.AuthRateLimit); err != nil {
		return err
	}
	if c.SkipEmailConfirmation, err = getenvBool("SKIP_EMAIL_CONFIRMATION", c.SkipEmailConfirmation); err != nil {
		return err
	}
	if c.AllowedSignupDomains, err = getenvList("ALLOWED_SIGNUP_DOMAINS", c.AllowedSignupDomains); err != nil {
		return err
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return parsed, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, val)
	}
	return parsed, nil
}

// getenvList reads a JSON array of strings, e.g. ["uni.edu","staff.uni.edu"]
func getenvList(key string, fallback []string) ([]string, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON array of strings: %w", key, err)
	}
	return list, nil
}
