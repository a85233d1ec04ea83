package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL          string
	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	CredentialsFile string
	LogLevel        string
}

type ServerConfig struct {
	Port               string
	JWTSecret          string
	TokenTTL           time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	TrustProxy         bool
	AdminEmail         string
	AdminPassword      string
	LogLevel           string
}

// TelemetryConfig drives tracing for both binaries. An empty Endpoint
// keeps spans local.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
}

// LoadEnv reads a .env file from the working directory when present.
// A missing file is not an error; the process environment still applies.
func LoadEnv() bool {
	return godotenv.Load() == nil
}

func Load() Config {
	return Config{
		APIURL:          strings.TrimRight(readString("TURNERO_API_URL", "http://localhost:5000"), "/"),
		HTTPTimeout:     readDuration("TURNERO_HTTP_TIMEOUT", 10*time.Second),
		RefreshInterval: readDuration("TURNERO_REFRESH_INTERVAL", 30*time.Second),
		CredentialsFile: readString("TURNERO_CREDENTIALS_FILE", defaultCredentialsFile()),
		LogLevel:        readString("TURNERO_LOG_LEVEL", "warn"),
	}
}

func LoadServer() ServerConfig {
	return ServerConfig{
		Port:               readString("PORT", "5000"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           time.Duration(readInt("TOKEN_TTL_MINUTES", 480)) * time.Minute,
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		TrustProxy:         readBool("TRUST_PROXY", false),
		AdminEmail:         readString("ADMIN_EMAIL", "admin@turnero.com"),
		AdminPassword:      readString("ADMIN_PASSWORD", "admin123"),
		LogLevel:           readString("LOG_LEVEL", "info"),
	}
}

func LoadTelemetry(serviceName string) TelemetryConfig {
	ratio := readFloat("OTEL_TRACES_SAMPLER_ARG", 1)
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	return TelemetryConfig{
		ServiceName:    serviceName,
		ServiceVersion: readString("TURNERO_VERSION", "dev"),
		Endpoint:       readString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Insecure:       readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		SampleRatio:    ratio,
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".turnero-credentials.yaml"
	}
	return filepath.Join(dir, "turnero", "credentials.yaml")
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// readDuration accepts Go durations ("45s") or bare seconds ("45").
func readDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
