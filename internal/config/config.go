package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	UseMemoryStore     bool
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	SessionTTL         time.Duration
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	AdminJWTSecret     string

	// Business profile and hours policy
	BusinessName       string
	BusinessProfileTag string
	ReferenceTimezone  string
	BusinessHoursFile  string
	Services           []string
	SlotDuration       time.Duration
	SlotCapacity       int

	// Widget behaviour
	ReplyLimited      bool
	ReplyLimit        int
	ReplyTimeout      time.Duration
	WelcomeText       string
	WidgetIdleTimeout time.Duration

	// BookingEndpointURL sends appointment requests to an external booking
	// endpoint instead of the in-process one.
	BookingEndpointURL string

	// Reply service
	ReplyServiceURL string
	GeminiAPIKey    string
	GeminiModelID   string
	BedrockModelID  string

	// AWS
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	BookingEventsQueueURL string

	// Email notifications to the business
	EmailProvider     string
	NotifyEmail       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
}

// Load reads configuration from environment variables. A .env file (or the file
// named by ENV_FILE) is read first when present; real environment values win.
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		UseMemoryStore:     getEnvAsBool("USE_MEMORY_STORE", false),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		BusinessName:       getEnv("BUSINESS_NAME", "Studio"),
		BusinessProfileTag: getEnv("BUSINESS_PROFILE_TAG", "default"),
		ReferenceTimezone:  getEnv("REFERENCE_TIMEZONE", "Asia/Kolkata"),
		BusinessHoursFile:  getEnv("BUSINESS_HOURS_FILE", ""),
		Services:           getEnvAsList("SERVICES", []string{"Website Design", "SEO", "Branding", "Marketing Automation"}),
		SlotDuration:       getEnvAsDuration("SLOT_DURATION", 3*time.Hour),
		SlotCapacity:       getEnvAsInt("SLOT_CAPACITY", 0),

		ReplyLimited:      getEnvAsBool("REPLY_LIMITED", true),
		ReplyLimit:        getEnvAsInt("REPLY_LIMIT", 4),
		ReplyTimeout:      getEnvAsDuration("REPLY_TIMEOUT", 12*time.Second),
		WelcomeText:       getEnv("WELCOME_TEXT", ""),
		WidgetIdleTimeout: getEnvAsDuration("WIDGET_IDLE_TIMEOUT", 30*time.Minute),

		BookingEndpointURL: getEnv("BOOKING_ENDPOINT_URL", ""),

		ReplyServiceURL: getEnv("REPLY_SERVICE_URL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", ""),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		NotifyEmail:       getEnv("NOTIFY_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Intake"),
	}
	cfg.SESFromEmail = getEnv("SES_FROM_EMAIL", cfg.SendGridFromEmail)
	cfg.SESFromName = getEnv("SES_FROM_NAME", cfg.SendGridFromName)
	return cfg
}

// NeedsAWS reports whether any AWS-backed integration is configured.
func (c *Config) NeedsAWS() bool {
	return c.BookingEventsQueueURL != "" || c.EmailProvider == "ses" || c.BedrockModelID != ""
}

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load(path)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
