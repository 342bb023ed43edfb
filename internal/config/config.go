package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for caloriebot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Provider ProviderConfig `json:"provider"`
	Analysis AnalysisConfig `json:"analysis"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel     string `json:"logLevel"`
	LogFile      string `json:"logFile,omitempty"`      // optional log file path
	Locale       string `json:"locale"`                 // "en" | "ru"
	MessagesFile string `json:"messagesFile,omitempty"` // optional YAML overlay for the locale pack
}

type TelegramConfig struct {
	Token       string         `json:"token"`
	AllowFrom   FlexStringList `json:"allowFrom"`
	ParseMode   string         `json:"parseMode"`
	PollTimeout int            `json:"pollTimeout"` // long-polling timeout in seconds
}

type ProviderConfig struct {
	Name    string `json:"name"` // "openai" | "gemini"
	APIBase string `json:"apiBase,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

// AnalysisConfig holds the ingress and estimation tunables.
type AnalysisConfig struct {
	MinPhotoBytes       int     `json:"minPhotoBytes"`
	MaxImageDimension   int     `json:"maxImageDimension"`
	MaxImagePixels      int     `json:"maxImagePixels"`
	JPEGQuality         int     `json:"jpegQuality"`
	ImageDetail         string  `json:"imageDetail"`
	PhotoMaxTokens      int     `json:"photoMaxTokens"`
	TextMaxTokens       int     `json:"textMaxTokens"`
	Temperature         float64 `json:"temperature"`
	PhotoTimeoutSeconds float64 `json:"photoTimeoutSeconds"`
	TextTimeoutSeconds  float64 `json:"textTimeoutSeconds"`
}

// PhotoTimeout returns the provider deadline for photo analysis.
func (a AnalysisConfig) PhotoTimeout() time.Duration {
	return time.Duration(a.PhotoTimeoutSeconds * float64(time.Second))
}

// TextTimeout returns the provider deadline for text analysis.
func (a AnalysisConfig) TextTimeout() time.Duration {
	return time.Duration(a.TextTimeoutSeconds * float64(time.Second))
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen"`
	Endpoint string `json:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// Environment variables overlaid on top of the config file.
const (
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvProvider      = "CALORIEBOT_PROVIDER"
)

// DefaultConfigDir returns the default config directory (~/.caloriebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".caloriebot"
	}
	return filepath.Join(home, ".caloriebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the config file at path, overlays the environment and validates
// the result. A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path, true)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.General.MessagesFile = ExpandPath(cfg.General.MessagesFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFile reads the config file over the defaults exactly as written: no
// ${VAR} expansion and no environment overlay. Use it when the result is
// saved back, so secrets from the environment do not end up in the file.
func LoadFile(path string) (*Config, error) {
	return readFile(path, false)
}

func readFile(path string, expand bool) (*Config, error) {
	path = ExpandPath(path)

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if expand {
		data = []byte(ExpandEnvVars(string(data)))
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays credentials and the provider choice from the environment.
// Non-empty environment values win over the file.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	keyVar := EnvOpenAIKey
	if cfg.Provider.Name == "gemini" {
		keyVar = EnvGeminiKey
	}
	if v := os.Getenv(keyVar); v != "" {
		cfg.Provider.APIKey = v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	// Credentials may live in the file.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. Credentials are checked
// separately by RequireCredentials because not every command needs them.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.Locale {
	case "en", "ru":
	default:
		errs = append(errs, "general.locale must be one of: en, ru")
	}
	switch cfg.Provider.Name {
	case "openai", "gemini":
	default:
		errs = append(errs, "provider.name must be one of: openai, gemini")
	}
	if cfg.Telegram.PollTimeout < 0 || cfg.Telegram.PollTimeout > 600 {
		errs = append(errs, "telegram.pollTimeout must be between 0 and 600")
	}

	a := cfg.Analysis
	if a.MinPhotoBytes < 1 {
		errs = append(errs, "analysis.minPhotoBytes must be >= 1")
	}
	if a.MaxImageDimension < 64 || a.MaxImageDimension > 4096 {
		errs = append(errs, "analysis.maxImageDimension must be between 64 and 4096")
	}
	if a.MaxImagePixels < a.MaxImageDimension*a.MaxImageDimension {
		errs = append(errs, "analysis.maxImagePixels must be at least maxImageDimension squared")
	}
	if a.JPEGQuality < 1 || a.JPEGQuality > 100 {
		errs = append(errs, "analysis.jpegQuality must be between 1 and 100")
	}
	switch a.ImageDetail {
	case "low", "high", "auto":
	default:
		errs = append(errs, "analysis.imageDetail must be one of: low, high, auto")
	}
	if a.PhotoMaxTokens < 1 || a.TextMaxTokens < 1 {
		errs = append(errs, "analysis.photoMaxTokens and analysis.textMaxTokens must be >= 1")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, "analysis.temperature must be between 0 and 2")
	}
	if a.PhotoTimeoutSeconds <= 0 || a.TextTimeoutSeconds <= 0 {
		errs = append(errs, "analysis timeouts must be > 0")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			errs = append(errs, "metrics.listen is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
			errs = append(errs, "metrics.endpoint must start with /")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireCredentials fails when a credential needed at startup is missing.
// The chat token is only demanded when the Telegram transport will run.
func RequireCredentials(cfg *Config, needChat bool) error {
	var missing []string
	if needChat && strings.TrimSpace(cfg.Telegram.Token) == "" {
		missing = append(missing, EnvTelegramToken)
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		if cfg.Provider.Name == "gemini" {
			missing = append(missing, EnvGeminiKey)
		} else {
			missing = append(missing, EnvOpenAIKey)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
