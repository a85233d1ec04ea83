package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TURNERO_API_URL", "")
	t.Setenv("TURNERO_HTTP_TIMEOUT", "")
	t.Setenv("TURNERO_REFRESH_INTERVAL", "")
	t.Setenv("TURNERO_CREDENTIALS_FILE", "/tmp/creds.yaml")

	cfg := Load()
	assert.Equal(t, "http://localhost:5000", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "/tmp/creds.yaml", cfg.CredentialsFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TURNERO_API_URL", "https://turnos.example.com/")
	t.Setenv("TURNERO_HTTP_TIMEOUT", "3")
	t.Setenv("TURNERO_REFRESH_INTERVAL", "1m")

	cfg := Load()
	assert.Equal(t, "https://turnos.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
}

func TestReadDurationRejectsGarbage(t *testing.T) {
	t.Setenv("TURNERO_REFRESH_INTERVAL", "soon")
	assert.Equal(t, 30*time.Second, Load().RefreshInterval)
	t.Setenv("TURNERO_REFRESH_INTERVAL", "-5")
	assert.Equal(t, 30*time.Second, Load().RefreshInterval)
}

func TestLoadServer(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL_MINUTES", "60")
	t.Setenv("RATE_LIMIT_BURST", "x")
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("TRUST_PROXY", "yes")

	cfg := LoadServer()
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30, cfg.RateLimitBurst)
	assert.Equal(t, "admin@turnero.com", cfg.AdminEmail)
	assert.False(t, cfg.TrustProxy)

	t.Setenv("TRUST_PROXY", "true")
	assert.True(t, LoadServer().TrustProxy)
}

func TestLoadTelemetry(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("TURNERO_VERSION", "")

	cfg := LoadTelemetry("turnero")
	assert.Equal(t, "turnero", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 0.25, cfg.SampleRatio)

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "7")
	assert.Equal(t, 1.0, LoadTelemetry("turnero").SampleRatio)
}
