// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionSecret is the development signing secret. It is public, so
// Validate rejects it outside dev mode.
const DefaultSessionSecret = "devsessionsecret"

var ErrInsecureSessionSecret = errors.New("SESSION_SECRET must be set to a non-default value when DEV is off")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Mail     MailConfig
	Limits   LimitsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds record store connection settings.
// Driver is "postgres" (default) or "sqlite".
type DatabaseConfig struct {
	Driver     string
	URLRaw     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev         bool
	Migrations  bool
	LogLevel    string
	LogFormat   string
	AdminEmails []string
}

// AuthConfig holds session verification settings.
type AuthConfig struct {
	SessionSecret string
}

// MailConfig holds both notification transports. Either may be left empty.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	ResendAPIKey string
	ResendFrom   string
	SendTimeout  time.Duration
}

// LimitsConfig holds per-user quotas and outbound call budgets.
type LimitsConfig struct {
	DailySubmissions  int
	PhotoFetchTimeout time.Duration
	PhotoPrivateHosts bool
}

// DSN returns the PostgreSQL connection string in key=value format.
// DATABASE_URL, when set, wins over the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URLRaw != "" {
		return d.URLRaw
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	if d.URLRaw != "" {
		return d.URLRaw
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS (case-insensitive).
func (a AppConfig) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, e := range a.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// Validate rejects settings that are only safe in dev mode. Session tokens
// carry the admin claim, so a known secret would let anyone mint admin tokens.
func (c *Config) Validate() error {
	if c.App.Dev {
		return nil
	}
	if s := strings.TrimSpace(c.Auth.SessionSecret); s == "" || s == DefaultSessionSecret {
		return ErrInsecureSessionSecret
	}
	return nil
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			URLRaw:     getEnv("DATABASE_URL", ""),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "reports"),
			Password:   getEnv("DB_PASSWORD", "reports123"),
			DBName:     getEnv("DB_NAME", "reports"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "reports.db"),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:         getEnvBool("DEV", true),
			Migrations:  getEnvBool("MIGRATIONS", false),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
			AdminEmails: getEnvList("ADMIN_EMAILS"),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		},
		Mail: MailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@srm-sm.com"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			ResendFrom:   getEnv("RESEND_FROM", getEnv("SMTP_FROM", "noreply@srm-sm.com")),
			SendTimeout:  getEnvDuration("MAIL_SEND_TIMEOUT", 10*time.Second),
		},
		Limits: LimitsConfig{
			DailySubmissions:  getEnvInt("DAILY_SUBMISSION_LIMIT", 15),
			PhotoFetchTimeout: getEnvDuration("PHOTO_FETCH_TIMEOUT", 5*time.Second),
			PhotoPrivateHosts: getEnvBool("PHOTO_ALLOW_PRIVATE_HOSTS", false),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration accepts Go duration syntax ("5s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
