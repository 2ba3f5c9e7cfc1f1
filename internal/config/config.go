package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Native control modes.
const (
	NativeModeBrowser = "browser"
	NativeModeAPI     = "api"
)

// Config holds application configuration.
type Config struct {
	// GraphQLBaseURL is the prefix every operation URL is built from.
	GraphQLBaseURL string `json:"graphql_base_url"`

	// BearerToken is the public web-client bearer sent with every call.
	BearerToken string `json:"bearer_token"`

	// CSRFToken and AuthToken are static session credentials used when
	// no browser session is attached.
	CSRFToken string `json:"csrf_token,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`

	// NativeMode selects how the native bookmark control is driven:
	// "browser" clicks the button in a rod-controlled page, "api" calls
	// CreateBookmark/DeleteBookmark directly.
	NativeMode string `json:"native_mode"`

	// BrowserControlURL attaches to a running Chromium (ws://...). Empty launches one.
	BrowserControlURL  string `json:"browser_control_url,omitempty"`
	BrowserUserDataDir string `json:"browser_user_data_dir,omitempty"`
	BrowserHeadless    bool   `json:"browser_headless,omitempty"`
	HomeURL            string `json:"home_url"`

	NativeTimeoutMS int `json:"native_timeout_ms"`
	NativePollMS    int `json:"native_poll_ms"`

	// RateLimitDefaultWaitSeconds is used when a 429 carries no reset header.
	RateLimitDefaultWaitSeconds int `json:"rate_limit_default_wait_seconds"`

	// LedgerMaxEntries caps the archived-post ledger; oldest entries are evicted.
	LedgerMaxEntries int `json:"ledger_max_entries"`

	ExportPageCeiling             int      `json:"export_page_ceiling"`
	ExportDelayMinMS              int      `json:"export_delay_min_ms"`
	ExportDelayMaxMS              int      `json:"export_delay_max_ms"`
	ExportRateLimitRetries        int      `json:"export_rate_limit_retries"`
	ExportMaxRateLimitWaitSeconds int      `json:"export_max_rate_limit_wait_seconds"`
	ExportFormats                 []string `json:"export_formats,omitempty"`

	// CapturedBodyTTLMinutes bounds how long observed request bodies stay in memory.
	CapturedBodyTTLMinutes int `json:"captured_body_ttl_minutes"`

	HTTPBind string `json:"http_bind"`
	HTTPPort int    `json:"http_port"`

	// LogFormat is "text" (tint) or "json".
	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "archive", "state", "operation", "export".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		GraphQLBaseURL:                "https://x.com/i/api/graphql",
		BearerToken:                   "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA",
		NativeMode:                    NativeModeBrowser,
		HomeURL:                       "https://x.com/home",
		NativeTimeoutMS:               3500,
		NativePollMS:                  80,
		RateLimitDefaultWaitSeconds:   60,
		LedgerMaxEntries:              5000,
		ExportPageCeiling:             100,
		ExportDelayMinMS:              5000,
		ExportDelayMaxMS:              10000,
		ExportRateLimitRetries:        3,
		ExportMaxRateLimitWaitSeconds: 900,
		ExportFormats:                 []string{"json"},
		CapturedBodyTTLMinutes:        60,
		HTTPBind:                      "127.0.0.1",
		HTTPPort:                      7411,
		LogFormat:                     "text",
		LogLevel:                      "info",
	}
}

// NativeTimeout returns the native action timeout as a duration.
func (c *Config) NativeTimeout() time.Duration {
	return time.Duration(c.NativeTimeoutMS) * time.Millisecond
}

// NativePollInterval returns the native poll interval as a duration.
func (c *Config) NativePollInterval() time.Duration {
	return time.Duration(c.NativePollMS) * time.Millisecond
}

// Load loads configuration from baseDir/config.json and applies environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tweetsift.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides session settings from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TWEETSIFT_CSRF_TOKEN"); v != "" {
		cfg.CSRFToken = v
	}
	if v := os.Getenv("TWEETSIFT_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("TWEETSIFT_BROWSER_URL"); v != "" {
		cfg.BrowserControlURL = v
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		GraphQLBaseURL:     pickString(overlay.GraphQLBaseURL, base.GraphQLBaseURL),
		BearerToken:        pickString(overlay.BearerToken, base.BearerToken),
		CSRFToken:          pickString(overlay.CSRFToken, base.CSRFToken),
		AuthToken:          pickString(overlay.AuthToken, base.AuthToken),
		NativeMode:         pickString(overlay.NativeMode, base.NativeMode),
		BrowserControlURL:  pickString(overlay.BrowserControlURL, base.BrowserControlURL),
		BrowserUserDataDir: pickString(overlay.BrowserUserDataDir, base.BrowserUserDataDir),
		HomeURL:            pickString(overlay.HomeURL, base.HomeURL),
		HTTPBind:           pickString(overlay.HTTPBind, base.HTTPBind),
		LogFormat:          pickString(overlay.LogFormat, base.LogFormat),
		LogLevel:           pickString(overlay.LogLevel, base.LogLevel),

		NativeTimeoutMS:               pickInt(overlay.NativeTimeoutMS, base.NativeTimeoutMS),
		NativePollMS:                  pickInt(overlay.NativePollMS, base.NativePollMS),
		RateLimitDefaultWaitSeconds:   pickInt(overlay.RateLimitDefaultWaitSeconds, base.RateLimitDefaultWaitSeconds),
		LedgerMaxEntries:              pickInt(overlay.LedgerMaxEntries, base.LedgerMaxEntries),
		ExportPageCeiling:             pickInt(overlay.ExportPageCeiling, base.ExportPageCeiling),
		ExportDelayMinMS:              pickInt(overlay.ExportDelayMinMS, base.ExportDelayMinMS),
		ExportDelayMaxMS:              pickInt(overlay.ExportDelayMaxMS, base.ExportDelayMaxMS),
		ExportRateLimitRetries:        pickInt(overlay.ExportRateLimitRetries, base.ExportRateLimitRetries),
		ExportMaxRateLimitWaitSeconds: pickInt(overlay.ExportMaxRateLimitWaitSeconds, base.ExportMaxRateLimitWaitSeconds),
		CapturedBodyTTLMinutes:        pickInt(overlay.CapturedBodyTTLMinutes, base.CapturedBodyTTLMinutes),
		HTTPPort:                      pickInt(overlay.HTTPPort, base.HTTPPort),
		DBMaxOpenConns:                pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:                pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.BrowserHeadless = base.BrowserHeadless || overlay.BrowserHeadless

	// Export formats replace rather than merge: an overlay picks its own set.
	result.ExportFormats = base.ExportFormats
	if len(overlay.ExportFormats) > 0 {
		result.ExportFormats = mergeStringSlice(nil, overlay.ExportFormats)
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
