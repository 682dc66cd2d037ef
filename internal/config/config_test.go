package config

import (
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("API_BASE_URL", "https://gateway.example.com")
}

func clearOptionalEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GATEWAY_TIMEOUT", "SESSION_STATE_TTL", "VIEWER_IDLE_TTL", "AVAILABILITY_CONCURRENCY",
		"MARKET_CATALOG_PATH", "RATE_LIMIT_GENERAL", "RATE_LIMIT_WRITE", "ATTACHMENT_MAX_SIZE",
		"ATTACHMENT_TIMEOUT", "LOG_LEVEL", "SERVER_PORT", "BASE_URL", "COOKIE_DOMAIN",
		"CORS_ALLOWED_ORIGIN", "AVAILABILITY_TTL", "UPLOAD_MAX_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	clearOptionalEnvVars(t)
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.APIBaseURL != "https://gateway.example.com" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "https://gateway.example.com")
	}
}

func TestLoad_TrailingSlashIsTrimmed(t *testing.T) {
	clearOptionalEnvVars(t)
	t.Setenv("API_BASE_URL", "http://127.0.0.1:8000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8000" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "http://127.0.0.1:8000")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearOptionalEnvVars(t)
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GatewayTimeout != 10*time.Second {
		t.Errorf("GatewayTimeout = %v, want %v", cfg.GatewayTimeout, 10*time.Second)
	}
	if cfg.SessionStateTTL != 30*time.Second {
		t.Errorf("SessionStateTTL = %v, want %v", cfg.SessionStateTTL, 30*time.Second)
	}
	if cfg.ViewerIdleTTL != 30*time.Minute {
		t.Errorf("ViewerIdleTTL = %v, want %v", cfg.ViewerIdleTTL, 30*time.Minute)
	}
	if cfg.AvailabilityConcurrency != 4 {
		t.Errorf("AvailabilityConcurrency = %d, want %d", cfg.AvailabilityConcurrency, 4)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.RateLimitWrite != 20 {
		t.Errorf("RateLimitWrite = %d, want %d", cfg.RateLimitWrite, 20)
	}
	if cfg.AttachmentMaxSize != 20<<20 {
		t.Errorf("AttachmentMaxSize = %d, want %d", cfg.AttachmentMaxSize, 20<<20)
	}
	if cfg.AvailabilityTTL != 10*time.Minute {
		t.Errorf("AvailabilityTTL = %v, want %v", cfg.AvailabilityTTL, 10*time.Minute)
	}
	if cfg.UploadMaxSize != 50<<20 {
		t.Errorf("UploadMaxSize = %d, want %d", cfg.UploadMaxSize, 50<<20)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for http BaseURL")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:3000")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearOptionalEnvVars(t)
	setRequiredEnvVars(t)

	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("SESSION_STATE_TTL", "5s")
	t.Setenv("VIEWER_IDLE_TTL", "1h")
	t.Setenv("AVAILABILITY_CONCURRENCY", "8")
	t.Setenv("MARKET_CATALOG_PATH", "/etc/orbit/catalog.yaml")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("RATE_LIMIT_WRITE", "5")
	t.Setenv("ATTACHMENT_MAX_SIZE", "1048576")
	t.Setenv("AVAILABILITY_TTL", "2m")
	t.Setenv("UPLOAD_MAX_SIZE", "2097152")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("BASE_URL", "https://orbit.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GatewayTimeout != 3*time.Second {
		t.Errorf("GatewayTimeout = %v, want %v", cfg.GatewayTimeout, 3*time.Second)
	}
	if cfg.SessionStateTTL != 5*time.Second {
		t.Errorf("SessionStateTTL = %v, want %v", cfg.SessionStateTTL, 5*time.Second)
	}
	if cfg.ViewerIdleTTL != time.Hour {
		t.Errorf("ViewerIdleTTL = %v, want %v", cfg.ViewerIdleTTL, time.Hour)
	}
	if cfg.AvailabilityConcurrency != 8 {
		t.Errorf("AvailabilityConcurrency = %d, want %d", cfg.AvailabilityConcurrency, 8)
	}
	if cfg.MarketCatalogPath != "/etc/orbit/catalog.yaml" {
		t.Errorf("MarketCatalogPath = %q", cfg.MarketCatalogPath)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 60)
	}
	if cfg.RateLimitWrite != 5 {
		t.Errorf("RateLimitWrite = %d, want %d", cfg.RateLimitWrite, 5)
	}
	if cfg.AttachmentMaxSize != 1048576 {
		t.Errorf("AttachmentMaxSize = %d, want %d", cfg.AttachmentMaxSize, 1048576)
	}
	if cfg.AvailabilityTTL != 2*time.Minute {
		t.Errorf("AvailabilityTTL = %v, want %v", cfg.AvailabilityTTL, 2*time.Minute)
	}
	if cfg.UploadMaxSize != 2<<20 {
		t.Errorf("UploadMaxSize = %d, want %d", cfg.UploadMaxSize, 2<<20)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if cfg.BaseURL != "https://orbit.example.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://orbit.example.com")
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https BaseURL")
	}
}

func TestLoad_InvalidNumber_FallsBackToDefault(t *testing.T) {
	clearOptionalEnvVars(t)
	setRequiredEnvVars(t)
	t.Setenv("RATE_LIMIT_GENERAL", "many")
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Errorf("GatewayTimeout = %v, want %v", cfg.GatewayTimeout, 10*time.Second)
	}
}

func TestLoad_ZeroConcurrency_ClampedToOne(t *testing.T) {
	clearOptionalEnvVars(t)
	setRequiredEnvVars(t)
	t.Setenv("AVAILABILITY_CONCURRENCY", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AvailabilityConcurrency != 1 {
		t.Errorf("AvailabilityConcurrency = %d, want 1", cfg.AvailabilityConcurrency)
	}
}

func TestLoad_MissingAPIBaseURL_ReturnsError(t *testing.T) {
	clearOptionalEnvVars(t)
	t.Setenv("API_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing API_BASE_URL, got nil")
	}
}

func TestLoad_RelativeAPIBaseURL_ReturnsError(t *testing.T) {
	clearOptionalEnvVars(t)
	t.Setenv("API_BASE_URL", "/gateway")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for relative API_BASE_URL, got nil")
	}
}
