package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port                 string
	DatabaseURL          string
	JWTSecret            string
	CORSAllowedOrigins   []string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioVoiceNumber    string
	OpenAIAPIKey         string
	LocalTimezone        *time.Location

	// TickInterval is the cadence of the due-reminder scan.
	TickInterval time.Duration
	// FallbackAfter is how long an unacknowledged alert rings before the
	// escalation call fires.
	FallbackAfter time.Duration
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	return &Config{
		Port:                 getenvDefault("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            getenvDefault("JWT_SECRET", "dev-secret"),
		CORSAllowedOrigins:   splitCommaList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioVoiceNumber:    os.Getenv("TWILIO_VOICE_NUMBER"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		LocalTimezone:        location,
		TickInterval:         time.Duration(ParseIntEnv("TICK_INTERVAL_SECONDS", 10)) * time.Second,
		FallbackAfter:        time.Duration(ParseIntEnv("FALLBACK_AFTER_SECONDS", 30)) * time.Second,
	}
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

func splitCommaList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}
