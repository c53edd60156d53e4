package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Capture sources accepted in Config.CaptureSource.
const (
	CaptureDisplay = "display"
	CaptureBrowser = "browser"
	CaptureFile    = "file"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvObjective    = "LEARNING_OBJECTIVE"
	EnvVisitedURLs  = "VISITED_URLS"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvHome         = "MATE_HOME"
)

// Config holds application configuration.
type Config struct {
	// Provider selects the hosted model backend: "anthropic" or "gemini".
	Provider string `json:"provider,omitempty"`

	// APIKeyPath is a file holding the API key (trimmed).
	// Relative paths resolve against the base directory.
	APIKeyPath string `json:"api_key_path,omitempty"`

	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string `json:"base_url,omitempty"`

	// VisionModel analyzes screenshots.
	VisionModel string `json:"vision_model,omitempty"`

	// InsightModel reconciles the summary and suggests links.
	InsightModel string `json:"insight_model,omitempty"`

	AnalysisMaxTokens int `json:"analysis_max_tokens,omitempty"`
	SummaryMaxTokens  int `json:"summary_max_tokens,omitempty"`
	InsightMaxTokens  int `json:"insight_max_tokens,omitempty"`

	// RequestTimeoutSeconds bounds one model HTTP round trip.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	// RequestsPerSecond paces outbound model calls.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// CaptureIntervalSeconds is the period of the capture + extract cycle.
	CaptureIntervalSeconds int `json:"capture_interval_seconds,omitempty"`

	// LinkIntervalSeconds is the minimum spacing between reconcile + link cycles.
	LinkIntervalSeconds int `json:"link_interval_seconds,omitempty"`

	// CaptureSource is "display", "browser" or "file".
	CaptureSource string `json:"capture_source,omitempty"`

	// DisplayIndex picks the monitor for display capture.
	DisplayIndex int `json:"display_index,omitempty"`

	// BrowserControlURL is the DevTools websocket for browser capture.
	BrowserControlURL string `json:"browser_control_url,omitempty"`

	// CaptureFile is the PNG read by file capture.
	CaptureFile string `json:"capture_file,omitempty"`

	// SaveScreenshots writes every capture to ScreenshotsDir.
	SaveScreenshots bool   `json:"save_screenshots,omitempty"`
	ScreenshotsDir  string `json:"screenshots_dir,omitempty"`

	// DisableContextHistory stops persisting extracted documents to SQLite.
	DisableContextHistory bool `json:"disable_context_history,omitempty"`

	// SummaryFile holds the rolling summary verbatim.
	SummaryFile string `json:"summary_file,omitempty"`

	// WebBind and WebPort configure the dashboard. WebPort 0 disables it under `mate run`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`
	LogFile  string `json:"log_file,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Runtime values, never read from the file.
	BaseDir     string `json:"-"`
	Objective   string `json:"-"`
	VisitedSeed string `json:"-"`
	APIKey      string `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:               ProviderAnthropic,
		APIKeyPath:             "api_key.txt",
		VisionModel:            "claude-sonnet-4-5",
		InsightModel:           "claude-haiku-4-5-20251001",
		AnalysisMaxTokens:      1500,
		SummaryMaxTokens:       2000,
		InsightMaxTokens:       1000,
		RequestTimeoutSeconds:  120,
		RequestsPerSecond:      1,
		CaptureIntervalSeconds: 10,
		LinkIntervalSeconds:    60,
		CaptureSource:          CaptureDisplay,
		ScreenshotsDir:         "screenshots",
		SummaryFile:            "summary_history.txt",
		WebBind:                "127.0.0.1",
		WebPort:                8765,
		LogLevel:               "warn",
	}
}

// DefaultBaseDir returns $MATE_HOME or ~/.mate.
func DefaultBaseDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mate"), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.mate.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = baseDir
	return cfg, nil
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
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
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
		Provider:          pickString(overlay.Provider, base.Provider),
		APIKeyPath:        pickString(overlay.APIKeyPath, base.APIKeyPath),
		BaseURL:           pickString(overlay.BaseURL, base.BaseURL),
		VisionModel:       pickString(overlay.VisionModel, base.VisionModel),
		InsightModel:      pickString(overlay.InsightModel, base.InsightModel),
		CaptureSource:     pickString(overlay.CaptureSource, base.CaptureSource),
		BrowserControlURL: pickString(overlay.BrowserControlURL, base.BrowserControlURL),
		CaptureFile:       pickString(overlay.CaptureFile, base.CaptureFile),
		ScreenshotsDir:    pickString(overlay.ScreenshotsDir, base.ScreenshotsDir),
		SummaryFile:       pickString(overlay.SummaryFile, base.SummaryFile),
		WebBind:           pickString(overlay.WebBind, base.WebBind),
		LogLevel:          pickString(overlay.LogLevel, base.LogLevel),
		LogFile:           pickString(overlay.LogFile, base.LogFile),

		AnalysisMaxTokens:      pickInt(overlay.AnalysisMaxTokens, base.AnalysisMaxTokens),
		SummaryMaxTokens:       pickInt(overlay.SummaryMaxTokens, base.SummaryMaxTokens),
		InsightMaxTokens:       pickInt(overlay.InsightMaxTokens, base.InsightMaxTokens),
		RequestTimeoutSeconds:  pickInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds),
		CaptureIntervalSeconds: pickInt(overlay.CaptureIntervalSeconds, base.CaptureIntervalSeconds),
		LinkIntervalSeconds:    pickInt(overlay.LinkIntervalSeconds, base.LinkIntervalSeconds),
		DisplayIndex:           pickInt(overlay.DisplayIndex, base.DisplayIndex),
		WebPort:                pickInt(overlay.WebPort, base.WebPort),
		DBMaxOpenConns:         pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:         pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.RequestsPerSecond = overlay.RequestsPerSecond
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = base.RequestsPerSecond
	}

	// Booleans: overlay wins if true, else base
	result.SaveScreenshots = base.SaveScreenshots || overlay.SaveScreenshots
	result.DisableContextHistory = base.DisableContextHistory || overlay.DisableContextHistory

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	result.BaseDir = pickString(overlay.BaseDir, base.BaseDir)
	result.Objective = pickString(overlay.Objective, base.Objective)
	result.VisitedSeed = pickString(overlay.VisitedSeed, base.VisitedSeed)
	result.APIKey = pickString(overlay.APIKey, base.APIKey)

	return result
}

// ApplyEnv copies environment-provided values onto cfg.
// getenv is os.Getenv outside tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvObjective)); v != "" {
		cfg.Objective = v
	}
	if v := getenv(EnvVisitedURLs); v != "" {
		cfg.VisitedSeed = v
	}

	keyVar := EnvAnthropicKey
	if cfg.Provider == ProviderGemini {
		keyVar = EnvGeminiKey
	}
	if v := strings.TrimSpace(getenv(keyVar)); v != "" {
		cfg.APIKey = v
	}
}

// LoadAPIKey fills cfg.APIKey from APIKeyPath when no key came from the environment.
func LoadAPIKey(cfg *Config) error {
	if cfg.APIKey != "" {
		return nil
	}
	path := cfg.Path(cfg.APIKeyPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load api key from %s: %w", path, err)
	}
	cfg.APIKey = strings.TrimSpace(string(data))
	if cfg.APIKey == "" {
		return fmt.Errorf("api key file %s is empty", path)
	}
	return nil
}

// Validate checks values the scheduler and gateway depend on.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.CaptureSource {
	case CaptureDisplay, CaptureBrowser, CaptureFile:
	default:
		return fmt.Errorf("unknown capture_source %q", c.CaptureSource)
	}
	if c.CaptureSource == CaptureBrowser && c.BrowserControlURL == "" {
		return fmt.Errorf("capture_source %q requires browser_control_url", c.CaptureSource)
	}
	if c.CaptureSource == CaptureFile && c.CaptureFile == "" {
		return fmt.Errorf("capture_source %q requires capture_file", c.CaptureSource)
	}
	if c.CaptureIntervalSeconds <= 0 {
		return fmt.Errorf("capture_interval_seconds must be positive")
	}
	if c.LinkIntervalSeconds <= 0 {
		return fmt.Errorf("link_interval_seconds must be positive")
	}
	if c.AnalysisMaxTokens <= 0 || c.SummaryMaxTokens <= 0 || c.InsightMaxTokens <= 0 {
		return fmt.Errorf("max token settings must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// Path resolves p against BaseDir unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// SummaryPath is the resolved rolling-summary file.
func (c *Config) SummaryPath() string { return c.Path(c.SummaryFile) }

// ScreenshotsPath is the resolved screenshot directory.
func (c *Config) ScreenshotsPath() string { return c.Path(c.ScreenshotsDir) }

// CaptureInterval returns CaptureIntervalSeconds as a duration.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalSeconds) * time.Second
}

// LinkInterval returns LinkIntervalSeconds as a duration.
func (c *Config) LinkInterval() time.Duration {
	return time.Duration(c.LinkIntervalSeconds) * time.Second
}

// RequestTimeout returns RequestTimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
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

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
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
