// Package config loads harness settings from the environment and an optional .env file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/govqa/portalharness/internal/browser"
)

const (
	DefaultBaseURL = "https://demo.karnataka.gov.in/zpshivamogga.karnataka.gov.in/public/back/index"
	DefaultTitle   = "Zilla Panchayat Shivamogga"

	minLocateTimeoutMS = 100
)

// Credentials is one back-office login.
type Credentials struct {
	User     string
	Password string
}

// Config holds everything a portal run needs.
type Config struct {
	// Portal under test
	BaseURL    string
	Title      string
	Creator    Credentials
	Moderator  Credentials
	Approver   Credentials
	UploadFile string
	DataFile   string

	// Output
	EvidenceDir        string
	ResultsDir         string
	EventsDir          string
	EventBufferSize    int
	EventMaxFileSizeMB int

	// Browser
	LocateTimeoutMS int
	Headless        bool
	WindowSize      string
	BrowserPath     string
	CDPAddress      string
	CDPPort         int

	// Process
	LogLevel         string
	LogFile          string
	ReportBindAddr   string
	PortAutoFallback bool
	NtfyEndpoint     string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BaseURL: getEnvOrDefault("PORTAL_BASE_URL", DefaultBaseURL),
		Title:   getEnvOrDefault("PORTAL_TITLE", DefaultTitle),
		Creator: Credentials{
			User:     getEnvOrDefault("PORTAL_CREATOR_USER", "creator@site.com"),
			Password: getEnvOrDefault("PORTAL_CREATOR_PASSWORD", "01123"),
		},
		Moderator: Credentials{
			User:     getEnvOrDefault("PORTAL_MODERATOR_USER", "moderator@site.com"),
			Password: getEnvOrDefault("PORTAL_MODERATOR_PASSWORD", "01123"),
		},
		Approver: Credentials{
			User:     getEnvOrDefault("PORTAL_APPROVER_USER", "approver@site.com"),
			Password: getEnvOrDefault("PORTAL_APPROVER_PASSWORD", "01123"),
		},
		UploadFile: os.Getenv("PORTAL_UPLOAD_FILE"),
		DataFile:   os.Getenv("PORTAL_DATA_FILE"),

		EvidenceDir:        getEnvOrDefault("HARNESS_EVIDENCE_DIR", "screenshots"),
		ResultsDir:         getEnvOrDefault("HARNESS_RESULTS_DIR", "allure-results"),
		EventsDir:          getEnvOrDefault("HARNESS_EVENTS_DIR", "run_events"),
		EventBufferSize:    getEnvIntOrDefault("HARNESS_EVENT_BUFFER_SIZE", 1024),
		EventMaxFileSizeMB: getEnvIntOrDefault("HARNESS_EVENT_MAX_FILE_SIZE_MB", 50),

		LocateTimeoutMS: getEnvIntOrDefault("HARNESS_LOCATE_TIMEOUT_MS", 10000),
		Headless:        getEnvBoolOrDefault("HARNESS_HEADLESS", false),
		WindowSize:      getEnvOrDefault("HARNESS_WINDOW_SIZE", "1920,1080"),
		BrowserPath:     os.Getenv("HARNESS_BROWSER_PATH"),
		CDPAddress:      getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("CHROMIUM_CDP_PORT", 0),

		LogLevel:         strings.ToLower(getEnvOrDefault("HARNESS_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("HARNESS_LOG_FILE", "logs/portalrun.log"),
		ReportBindAddr:   getEnvOrDefault("REPORT_BIND_ADDR", "127.0.0.1:8190"),
		PortAutoFallback: getEnvBoolOrDefault("REPORT_PORT_AUTO_FALLBACK", true),
		NtfyEndpoint:     os.Getenv("NTFY_ENDPOINT"),
	}
	if cfg.LocateTimeoutMS < minLocateTimeoutMS {
		cfg.LocateTimeoutMS = minLocateTimeoutMS
	}
	return cfg, nil
}

// LocateTimeout is the bound applied to every element wait.
func (c *Config) LocateTimeout() time.Duration {
	return time.Duration(c.LocateTimeoutMS) * time.Millisecond
}

// Browser returns the launcher settings.
func (c *Config) Browser() browser.Config {
	return browser.Config{
		Path:       c.BrowserPath,
		Headless:   c.Headless,
		WindowSize: c.WindowSize,
		CDPAddress: c.CDPAddress,
		CDPPort:    c.CDPPort,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
