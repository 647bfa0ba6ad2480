// Package config holds the application configuration, resolved once at startup
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// API contains API server configuration
	API APIConfig
	// Auth contains session token and password hashing configuration
	Auth AuthConfig
	// Security contains lockout, CSRF and reset token configuration
	Security SecurityConfig
	// Database contains database configuration
	Database DatabaseConfig
	// Email contains email service configuration
	Email EmailConfig

	// RateLimit is the global per-IP limit applied to the whole API
	RateLimit struct {
		Requests int // Number of requests allowed per window
		Window   int // Time window in seconds
		Burst    int // Maximum burst size
	}
}

// APIConfig contains API server settings
type APIConfig struct {
	// Port is the server port to listen on
	Port string
}

// AuthConfig contains session token and password hashing settings
type AuthConfig struct {
	// JWTSecret is the secret key used to sign session tokens
	JWTSecret string
	// SessionTTL is how long an issued session token stays valid
	SessionTTL time.Duration
	// BcryptCost is the cost factor for the password hash
	BcryptCost int
}

// SecurityConfig contains the credential security layer settings
type SecurityConfig struct {
	// LockoutThreshold is the number of failed logins before an account locks
	LockoutThreshold int
	// LockoutDuration is how long a locked account stays locked
	LockoutDuration time.Duration
	// LockoutRecordTTL is how long an idle, unlocked failure record is kept
	LockoutRecordTTL time.Duration
	// CSRFTokenTTL is how long an issued CSRF token stays valid
	CSRFTokenTTL time.Duration
	// ResetTokenTTL is how long a password reset token stays valid
	ResetTokenTTL time.Duration
	// ResetRequestLimit is the number of reset tokens a user may request per window
	ResetRequestLimit int
	// ResetRequestWindow is the rolling window for ResetRequestLimit
	ResetRequestWindow time.Duration
	// TimingDelay is the fixed delay applied on not-found paths so response
	// latency does not reveal whether an account exists
	TimingDelay time.Duration
	// SweepSchedule is the cron schedule for background expiry sweeps
	SweepSchedule string

	// LoginLimit applies to the login route, failed outcomes only
	LoginLimit RouteLimit
	// RegisterLimit applies to the registration route, failed outcomes only
	RegisterLimit RouteLimit
	// GenericLimit applies to the remaining auth routes
	GenericLimit RouteLimit
}

// RouteLimit describes a fixed-window request budget for one route class
type RouteLimit struct {
	// Requests is the number of requests allowed per window
	Requests int
	// Window is the length of the fixed window
	Window time.Duration
	// RefundOnSuccess gives the budget unit back when the request succeeds
	RefundOnSuccess bool
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string
	// Port is the database server port
	Port int
	// User is the database username
	User string
	// Password is the database password
	Password string
	// DBName is the database name
	DBName string
	// SSLMode is the SSL mode for the database connection
	SSLMode string
	// MigrationsPath is the path to database migrations
	MigrationsPath string
}

// EmailConfig contains email service settings
type EmailConfig struct {
	// SMTPHost is the SMTP server hostname
	SMTPHost string
	// SMTPPort is the SMTP server port
	SMTPPort int
	// SMTPUsername is the SMTP authentication username
	SMTPUsername string
	// SMTPPassword is the SMTP authentication password
	SMTPPassword string
	// FromAddress is the email address used as sender
	FromAddress string
	// AppURL is the base URL of the application
	AppURL string
}

// LoadFromEnv retrieves configuration from environment variables
func (c *Config) LoadFromEnv() error {
	c.API = APIConfig{
		Port: getEnvOrDefault("API_PORT", "8080"),
	}
	c.Database = DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:         getEnvOrDefault("DB_NAME", "guestbooklet"),
		SSLMode:        getEnvOrDefault("DB_SSL_MODE", "disable"),
		MigrationsPath: "migrations",
	}
	c.Auth = AuthConfig{
		JWTSecret:  os.Getenv("JWT_SECRET"),
		SessionTTL: getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost: getEnvAsInt("BCRYPT_COST", 12),
	}
	c.Security = SecurityConfig{
		LockoutThreshold:   getEnvAsInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:    getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
		LockoutRecordTTL:   getEnvAsDuration("LOCKOUT_RECORD_TTL", time.Hour),
		CSRFTokenTTL:       getEnvAsDuration("CSRF_TOKEN_TTL", time.Hour),
		ResetTokenTTL:      getEnvAsDuration("RESET_TOKEN_TTL", 30*time.Minute),
		ResetRequestLimit:  getEnvAsInt("RESET_REQUEST_LIMIT", 3),
		ResetRequestWindow: getEnvAsDuration("RESET_REQUEST_WINDOW", time.Hour),
		TimingDelay:        getEnvAsDuration("TIMING_DELAY", 100*time.Millisecond),
		SweepSchedule:      getEnvOrDefault("SWEEP_SCHEDULE", "0 * * * *"),
		LoginLimit: RouteLimit{
			Requests:        getEnvAsInt("LOGIN_LIMIT_REQUESTS", 5),
			Window:          getEnvAsDuration("LOGIN_LIMIT_WINDOW", 15*time.Minute),
			RefundOnSuccess: true,
		},
		RegisterLimit: RouteLimit{
			Requests:        getEnvAsInt("REGISTER_LIMIT_REQUESTS", 3),
			Window:          getEnvAsDuration("REGISTER_LIMIT_WINDOW", time.Hour),
			RefundOnSuccess: true,
		},
		GenericLimit: RouteLimit{
			Requests:        getEnvAsInt("GENERIC_LIMIT_REQUESTS", 20),
			Window:          getEnvAsDuration("GENERIC_LIMIT_WINDOW", 15*time.Minute),
			RefundOnSuccess: false,
		},
	}
	c.Email = EmailConfig{
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromAddress:  os.Getenv("SMTP_FROM"),
		AppURL:       os.Getenv("APP_URL"),
	}

	// Load global rate limit configuration
	c.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 1000)
	c.RateLimit.Window = getEnvAsInt("RATE_LIMIT_WINDOW", 60)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 50)

	// Validate required fields
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsDuration retrieves an environment variable and parses it as a duration
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
