package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverDynamo   = "dynamo"
)

// Notifier drivers.
const (
	NotifierSMTP = "smtp"
	NotifierSNS  = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	StoreDriver string
	DatabaseURL string
	DBMaxConns  int
	AutoMigrate bool

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SessionSecret       string
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	OTPTTL time.Duration

	Notifier          string
	SMTPHost          string
	SMTPPort          string
	SMTPFrom          string
	SMTPUsername      string
	SMTPPassword      string
	SMTPTimeout       time.Duration
	SMTPRequireTLS    bool
	MailBrand         string
	MailRetryAttempts int
	SNSRegion         string
	SNSTopicARN       string

	MailTemplateBucket string
	MailTemplateKey    string

	CleanupSchedule string

	RateLimitRPS   float64
	RateLimitBurst int

	TrustProxyHeaders bool // honour X-Forwarded-For / X-Real-Ip; only behind a trusted proxy

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts string
	OTPCodes string
	Sessions string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts: getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			OTPCodes: getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},

		SessionSecret:       getEnv("SESSION_SECRET", ""),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "session"),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),

		OTPTTL: getEnvDuration("OTP_TTL", 5*time.Minute),

		Notifier:          getEnv("NOTIFIER", NotifierSMTP),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPTimeout:       getEnvDuration("SMTP_TIMEOUT", 15*time.Second),
		SMTPRequireTLS:    getEnvBool("SMTP_REQUIRE_TLS", true),
		MailBrand:         getEnv("MAIL_BRAND", "TLE Fighters"),
		MailRetryAttempts: getEnvInt("MAIL_RETRY_ATTEMPTS", 1),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:       getEnv("SNS_TOPIC_ARN", ""),

		MailTemplateBucket: getEnv("MAIL_TEMPLATE_BUCKET", ""),
		MailTemplateKey:    getEnv("MAIL_TEMPLATE_KEY", "templates/otp_email.html"),

		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Validate reports configuration that makes the server unsafe or unable to start.
func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverDynamo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.Notifier {
	case NotifierSMTP:
	case NotifierSNS:
		if c.SNSTopicARN == "" {
			errs = append(errs, errors.New("SNS_TOPIC_ARN is required for the sns notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.SMTPTimeout <= 0 {
		errs = append(errs, errors.New("SMTP_TIMEOUT must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
