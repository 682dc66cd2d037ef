package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Gateway
	APIBaseURL     string
	GatewayTimeout time.Duration

	// Session
	SessionStateTTL time.Duration

	// Market
	ViewerIdleTTL           time.Duration
	AvailabilityConcurrency int
	AvailabilityTTL         time.Duration
	MarketCatalogPath       string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitWrite   int

	// Attachment
	AttachmentMaxSize int64
	AttachmentTimeout time.Duration

	// Upload（フォーム送信1回あたりのリクエストボディ上限）
	UploadMaxSize int64

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、またはAPI_BASE_URLが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL must be an absolute http(s) URL: %q", cfg.APIBaseURL)
	}

	// Optional fields with defaults
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.SessionStateTTL = getEnvDuration("SESSION_STATE_TTL", 30*time.Second)
	cfg.ViewerIdleTTL = getEnvDuration("VIEWER_IDLE_TTL", 30*time.Minute)
	cfg.AvailabilityConcurrency = getEnvInt("AVAILABILITY_CONCURRENCY", 4)
	cfg.AvailabilityTTL = getEnvDuration("AVAILABILITY_TTL", 10*time.Minute)
	cfg.MarketCatalogPath = getEnvString("MARKET_CATALOG_PATH", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 20)
	cfg.AttachmentMaxSize = getEnvInt64("ATTACHMENT_MAX_SIZE", 20<<20)
	cfg.AttachmentTimeout = getEnvDuration("ATTACHMENT_TIMEOUT", 30*time.Second)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 50<<20)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:8080"), "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.AvailabilityConcurrency < 1 {
		cfg.AvailabilityConcurrency = 1
	}
	if cfg.UploadMaxSize <= 0 {
		cfg.UploadMaxSize = 50 << 20
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
