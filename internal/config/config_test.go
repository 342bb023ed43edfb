package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.Name = "ollama"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestValidate_UnknownLocale(t *testing.T) {
	cfg := Defaults()
	cfg.General.Locale = "de"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported locale")
	}
}

func TestValidate_JPEGQuality_Boundary(t *testing.T) {
	cfg := Defaults()

	cfg.Analysis.JPEGQuality = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("jpegQuality=1 should be valid: %v", err)
	}
	cfg.Analysis.JPEGQuality = 100
	if err := Validate(cfg); err != nil {
		t.Fatalf("jpegQuality=100 should be valid: %v", err)
	}
	cfg.Analysis.JPEGQuality = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for jpegQuality=0")
	}
}

func TestValidate_MinPhotoBytesFloor(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.MinPhotoBytes = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("minPhotoBytes=1 should be valid: %v", err)
	}
	cfg.Analysis.MinPhotoBytes = 0
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "analysis.minPhotoBytes") {
		t.Fatalf("expected minPhotoBytes error, got %v", err)
	}
}

func TestValidate_MaxImagePixels(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.MaxImagePixels = 1024 * 1024
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxImagePixels equal to dimension squared should be valid: %v", err)
	}
	cfg.Analysis.MaxImagePixels = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxImagePixels=0")
	}
}

func TestValidate_NonPositiveTimeouts(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.TextTimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for zero text timeout")
	}
}

func TestValidate_InvalidImageDetail(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.ImageDetail = "ultra"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid image detail")
	}
}

func TestValidate_MetricsEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for endpoint without leading slash")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	cfg.Analysis.Temperature = 5
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "logLevel") || !strings.Contains(err.Error(), "temperature") {
		t.Fatalf("expected both violations reported, got: %v", err)
	}
}

// --- Credentials ---

func TestRequireCredentials_MissingBoth(t *testing.T) {
	cfg := Defaults()
	err := RequireCredentials(cfg, true)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), EnvTelegramToken) || !strings.Contains(err.Error(), EnvOpenAIKey) {
		t.Fatalf("expected both variables named, got: %v", err)
	}
}

func TestRequireCredentials_ChatTokenOptionalWithoutTelegram(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.APIKey = "sk-test"
	if err := RequireCredentials(cfg, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RequireCredentials(cfg, true); err == nil {
		t.Fatal("expected error when telegram token is required")
	}
}

func TestRequireCredentials_GeminiNamesGeminiKey(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.Name = "gemini"
	err := RequireCredentials(cfg, false)
	if err == nil || !strings.Contains(err.Error(), EnvGeminiKey) {
		t.Fatalf("expected %s in error, got: %v", EnvGeminiKey, err)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Analysis.JPEGQuality = 70
	original.General.Locale = "ru"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Analysis.JPEGQuality != 70 {
		t.Fatalf("expected 70, got %d", loaded.Analysis.JPEGQuality)
	}
	if loaded.General.Locale != "ru" {
		t.Fatalf("expected 'ru', got %q", loaded.General.Locale)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.MinPhotoBytes != 1000 {
		t.Fatalf("expected default minPhotoBytes, got %d", cfg.Analysis.MinPhotoBytes)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Fatalf("expected env key overlay, got %q", cfg.Provider.APIKey)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"analysis": {"jpegQuality": 0}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgFile); err == nil {
		t.Fatal("expected validation error for jpegQuality=0")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgFile, []byte(`{"analysis": {"textTimeoutSeconds": 3}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.TextTimeout() != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.Analysis.TextTimeout())
	}
	if cfg.Analysis.PhotoTimeout() != 15*time.Second {
		t.Fatalf("expected default 15s photo timeout, got %v", cfg.Analysis.PhotoTimeout())
	}
}

func TestLoad_EnvOverridesFileCredentials(t *testing.T) {
	t.Setenv(EnvTelegramToken, "env-token")
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgFile, []byte(`{"telegram": {"token": "file-token"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected env token, got %q", cfg.Telegram.Token)
	}
}

func TestLoad_GeminiReadsGeminiKey(t *testing.T) {
	t.Setenv(EnvProvider, "gemini")
	t.Setenv(EnvGeminiKey, "gm-key")
	t.Setenv(EnvOpenAIKey, "sk-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.APIKey != "gm-key" {
		t.Fatalf("expected gemini key, got %q", cfg.Provider.APIKey)
	}
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	t.Setenv(EnvTelegramToken, "env-token")
	t.Setenv("CALORIEBOT_TEST_LEVEL", "debug")
	cfgFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgFile, []byte(`{"general": {"logLevel": "${CALORIEBOT_TEST_LEVEL}"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "" {
		t.Fatalf("environment token must not be applied, got %q", cfg.Telegram.Token)
	}
	if cfg.General.LogLevel != "${CALORIEBOT_TEST_LEVEL}" {
		t.Fatalf("placeholders must be kept verbatim, got %q", cfg.General.LogLevel)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "provider.name")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "openai" {
		t.Fatalf("expected 'openai', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "nonexistent.path"); err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_StringValue(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "provider.name", "gemini"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Provider.Name != "gemini" {
		t.Fatalf("expected 'gemini', got %q", cfg.Provider.Name)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics.enabled=true")
	}
}

func TestSetByPath_NumberConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "analysis.jpegQuality", "90"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Analysis.JPEGQuality != 90 {
		t.Fatalf("expected 90, got %d", cfg.Analysis.JPEGQuality)
	}
	if err := SetByPath(cfg, "analysis.temperature", "0.3"); err != nil {
		t.Fatalf("set float: %v", err)
	}
	if cfg.Analysis.Temperature != 0.3 {
		t.Fatalf("expected 0.3, got %v", cfg.Analysis.Temperature)
	}
}

func TestSetByPath_MisspelledKeyRejected(t *testing.T) {
	cfg := Defaults()
	err := SetByPath(cfg, "analysis.jpegQualty", "90")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	if cfg.Analysis.JPEGQuality != 85 {
		t.Fatalf("config must be unchanged, jpegQuality=%d", cfg.Analysis.JPEGQuality)
	}
	if _, err := GetByPath(cfg, "analysis.jpegQualty"); err == nil {
		t.Fatal("GetByPath must reject the same key")
	}
}

func TestSetByPath_SectionRejected(t *testing.T) {
	cfg := Defaults()
	err := SetByPath(cfg, "analysis", "90")
	if err == nil || !strings.Contains(err.Error(), "section") {
		t.Fatalf("expected section error, got %v", err)
	}
}

func TestSetByPath_BadValueLeavesConfigUntouched(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "analysis.jpegQuality", "high"); err == nil {
		t.Fatal("expected conversion error")
	}
	if err := SetByPath(cfg, "metrics.enabled", "maybe"); err == nil {
		t.Fatal("expected bool conversion error")
	}
	if cfg.Analysis.JPEGQuality != 85 || cfg.Metrics.Enabled {
		t.Fatalf("config changed on error: %+v", cfg)
	}
}

func TestSetByPath_NumericStringField(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "telegram.token", "123456"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Telegram.Token != "123456" {
		t.Fatalf("expected token 123456, got %q", cfg.Telegram.Token)
	}
}

func TestSetByPath_OptionalFieldAndList(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "provider.model", "gpt-4o-mini"); err != nil {
		t.Fatalf("set optional: %v", err)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Fatalf("expected model set, got %q", cfg.Provider.Model)
	}
	if err := SetByPath(cfg, "telegram.allowFrom", "111, 222,"); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if len(cfg.Telegram.AllowFrom) != 2 || cfg.Telegram.AllowFrom[1] != "222" {
		t.Fatalf("unexpected allowFrom %v", cfg.Telegram.AllowFrom)
	}
}

func TestGetByPath_UnsetOptionalField(t *testing.T) {
	val, err := GetByPath(Defaults(), "general.logFile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty string, got %v", val)
	}
}

func TestKeys_SortedAndComplete(t *testing.T) {
	ks := Keys()
	if !sort.StringsAreSorted(ks) {
		t.Fatal("keys must be sorted")
	}
	want := map[string]bool{"analysis.maxImagePixels": false, "provider.apiBase": false, "metrics.endpoint": false}
	for _, k := range ks {
		if _, ok := want[k]; ok {
			want[k] = true
		}
		if k == "analysis" || k == "telegram" {
			t.Errorf("section %q listed as a key", k)
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing key %s", k)
		}
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"
	cfg.Provider.APIKey = "sk-1234567890abcdefghijklmnop"

	sanitized := Sanitize(cfg)

	if sanitized.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	if sanitized.Provider.APIKey != "sk-1****mnop" {
		t.Fatalf("unexpected masked key %q", sanitized.Provider.APIKey)
	}
	if cfg.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "short"
	if got := Sanitize(cfg).Telegram.Token; got != "***" {
		t.Fatalf("short secret should be '***', got %q", got)
	}
}

// --- ListPaths ---

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, expected := range []string{"general.logLevel", "analysis.minPhotoBytes", "metrics.enabled", "provider.model"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var list FlexStringList
	if err := json.Unmarshal([]byte(`["hello", 123, "world", 456.0]`), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 items, got %d", len(list))
	}
	if list[1] != "123" || list[3] != "456" {
		t.Fatalf("number conversion mismatch: %v", list)
	}
}

func TestFlexStringList_InvalidJSON(t *testing.T) {
	var list FlexStringList
	if err := json.Unmarshal([]byte(`not json`), &list); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc123")
	result := ExpandEnvVars(`{"apiKey": "${TEST_API_KEY}"}`)
	if result != `{"apiKey": "sk-abc123"}` {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"listen": "${NONEXISTENT_VAR_12345:-:9464}"}`)
	if result != `{"listen": ":9464"}` {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	input := `"${TOTALLY_UNSET_VAR_XYZ}"`
	if result := ExpandEnvVars(input); result != input {
		t.Fatalf("expected %q, got %q", input, result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `"$HOME is not substituted"`
	if result := ExpandEnvVars(input); result != input {
		t.Fatalf("expected no change for bare $VAR, got %q", result)
	}
}
