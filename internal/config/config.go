// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/nbassist/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nbassist configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Gateway is how the assistant reaches the backend service.
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`

	// Server configures `nbassist serve`.
	Server ServerConfig `toml:"server" json:"server"`

	// Assistant tunes the conversation engine.
	Assistant AssistantConfig `toml:"assistant" json:"assistant"`

	// Settings selects where the backend/model/credential selection lives.
	Settings SettingsConfig `toml:"settings" json:"settings"`

	// Providers holds the LLM endpoints used by the backend service.
	Providers ProvidersConfig `toml:"providers" json:"providers"`

	Log LogConfig `toml:"log" json:"log"`
	UI  UIConfig  `toml:"ui" json:"ui"`
}

// GatewayConfig contains backend service client configuration.
type GatewayConfig struct {
	// URL is the notebook server root; endpoints live under ai-assistant/.
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds each request; zero leaves it to the caller's context.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// Token is sent as "Authorization: token <Token>" when set.
	Token string `toml:"token" json:"token,omitempty"`
}

// Timeout returns the request timeout as a duration.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// ServerConfig contains backend service configuration.
type ServerConfig struct {
	Addr             string `toml:"addr" json:"addr"`
	ReadTimeoutSecs  int    `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs int    `toml:"write_timeout_secs" json:"write_timeout_secs"`
	// Token, when set, is required on every request.
	Token string `toml:"token" json:"token,omitempty"`
	// AllowedOrigins enables CORS for browser frontends; "*" allows any.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins,omitempty"`
}

// AssistantConfig tunes fix-all fan-out.
type AssistantConfig struct {
	// FixConcurrency bounds parallel fix requests (1 = sequential).
	FixConcurrency int `toml:"fix_concurrency" json:"fix_concurrency"`
	// FixRate is fix requests per second; 0 means unlimited.
	FixRate  float64 `toml:"fix_rate" json:"fix_rate"`
	FixBurst int     `toml:"fix_burst" json:"fix_burst"`
}

// SettingsConfig selects the selection store.
type SettingsConfig struct {
	// Store is "file", "sqlite" or "memory".
	Store string `toml:"store" json:"store"`
	// Path of the file or database; empty uses the default under ConfigDir.
	Path       string `toml:"path" json:"path"`
	DebounceMS int    `toml:"debounce_ms" json:"debounce_ms"`
	// PassphraseEnv names the environment variable holding the passphrase
	// used to seal credentials at rest. The passphrase is never stored.
	PassphraseEnv string `toml:"passphrase_env" json:"passphrase_env"`
	// Watch reloads the selection when the settings file changes on disk.
	Watch bool `toml:"watch" json:"watch"`
}

// Passphrase returns the sealing passphrase, or "" when unset.
func (s SettingsConfig) Passphrase() string {
	if s.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(s.PassphraseEnv)
}

// Debounce returns the write debounce as a duration.
func (s SettingsConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// ProvidersConfig contains LLM provider endpoints and keys.
type ProvidersConfig struct {
	OpenAIKey       string  `toml:"openai_key" json:"openai_key,omitempty"`
	OpenAIURL       string  `toml:"openai_url" json:"openai_url"`
	AnthropicKey    string  `toml:"anthropic_key" json:"anthropic_key,omitempty"`
	AnthropicURL    string  `toml:"anthropic_url" json:"anthropic_url"`
	GeminiKey       string  `toml:"gemini_key" json:"gemini_key,omitempty"`
	OllamaURL       string  `toml:"ollama_url" json:"ollama_url"`
	TimeoutSecs     int     `toml:"timeout_secs" json:"timeout_secs"`
	MaxTokens       int     `toml:"max_tokens" json:"max_tokens"`
	ChatTemperature float64 `toml:"chat_temperature" json:"chat_temperature"`
	FixTemperature  float64 `toml:"fix_temperature" json:"fix_temperature"`
	// LocalOnly hides cloud backends and requires a loopback OllamaURL.
	LocalOnly bool `toml:"local_only" json:"local_only"`
}

// Timeout returns the provider request timeout as a duration.
func (p ProvidersConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `toml:"format" json:"format"`
	// File, when set, receives log output instead of stderr.
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal panel configuration.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" json:"theme"`
	// Clipboard is "auto", "system", "osc52" or "none".
	Clipboard   string `toml:"clipboard" json:"clipboard"`
	CompactMode bool   `toml:"compact_mode" json:"compact_mode"`
	ShowModel   bool   `toml:"show_model" json:"show_model"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Gateway: GatewayConfig{
			URL: "http://127.0.0.1:8888/",
		},

		Server: ServerConfig{
			Addr:             "127.0.0.1:8888",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 180, // covers a slow provider plus one fallback
		},

		Assistant: AssistantConfig{
			FixConcurrency: 4,
			FixRate:        0,
			FixBurst:       1,
		},

		Settings: SettingsConfig{
			Store:         "file",
			DebounceMS:    250,
			PassphraseEnv: "NBASSIST_PASSPHRASE",
		},

		Providers: ProvidersConfig{
			OpenAIURL:       "https://api.openai.com/v1",
			AnthropicURL:    "https://api.anthropic.com",
			OllamaURL:       "http://127.0.0.1:11434",
			TimeoutSecs:     120,
			MaxTokens:       4000,
			ChatTemperature: 0.7,
			FixTemperature:  0.2,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},

		UI: UIConfig{
			Theme:     "dark",
			Clipboard: "auto",
			ShowModel: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nbassist configuration directory path.
// NBASSIST_HOME overrides the default ~/.nbassist.
func ConfigDir() (string, error) {
	if dir := os.Getenv("NBASSIST_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nbassist"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SettingsPath returns the selection store location for the configured
// store kind.
func (c *Config) SettingsPath() (string, error) {
	if c.Settings.Path != "" {
		return c.Settings.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Settings.Store == "sqlite" {
		return filepath.Join(dir, "settings.db"), nil
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600, since it may hold
// provider keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory. It tries TOML first,
// then JSON, and falls back to defaults. Environment overrides are applied
// last. A file that fails to decode is reported alongside the defaults.
func Load() (*Config, error) {
	var loadErr error

	candidates := []struct {
		path func() (string, error)
		load func(*Config, string) error
		kind string
	}{
		{ConfigPathTOML, LoadTOML, "TOML"},
		{ConfigPathJSON, LoadJSON, "JSON"},
	}
	for _, c := range candidates {
		path, err := c.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := c.load(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", c.kind, err)
			continue
		}
		return finish(cfg)
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are JSON; everything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	if c.Gateway.URL == "" {
		c.Gateway.URL = d.Gateway.URL
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = d.Server.ReadTimeoutSecs
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = d.Server.WriteTimeoutSecs
	}

	if c.Assistant.FixConcurrency == 0 {
		c.Assistant.FixConcurrency = d.Assistant.FixConcurrency
	}
	if c.Assistant.FixBurst == 0 {
		c.Assistant.FixBurst = d.Assistant.FixBurst
	}

	if c.Settings.Store == "" {
		c.Settings.Store = d.Settings.Store
	}
	if c.Settings.DebounceMS == 0 {
		c.Settings.DebounceMS = d.Settings.DebounceMS
	}

	if c.Providers.OpenAIURL == "" {
		c.Providers.OpenAIURL = d.Providers.OpenAIURL
	}
	if c.Providers.AnthropicURL == "" {
		c.Providers.AnthropicURL = d.Providers.AnthropicURL
	}
	if c.Providers.OllamaURL == "" {
		c.Providers.OllamaURL = d.Providers.OllamaURL
	}
	if c.Providers.TimeoutSecs == 0 {
		c.Providers.TimeoutSecs = d.Providers.TimeoutSecs
	}
	if c.Providers.MaxTokens == 0 {
		c.Providers.MaxTokens = d.Providers.MaxTokens
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.Clipboard == "" {
		c.UI.Clipboard = d.UI.Clipboard
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# nbassist configuration file")
	fmt.Fprintln(&buf, "# Generated by nbassist - edit with care")
	fmt.Fprintln(&buf, "")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration. The returned error, if any, is a
// ValidateErrors listing every problem.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if err := validateHTTPURL(c.Gateway.URL); err != nil {
		add("gateway.url", "%v", err)
	}
	if c.Gateway.TimeoutSecs < 0 {
		add("gateway.timeout_secs", "cannot be negative")
	}

	// Server
	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr", "cannot be empty")
	}
	if c.Server.ReadTimeoutSecs < 0 {
		add("server.read_timeout_secs", "cannot be negative")
	}
	if c.Server.WriteTimeoutSecs < 0 {
		add("server.write_timeout_secs", "cannot be negative")
	}

	// Assistant
	if c.Assistant.FixConcurrency < 1 || c.Assistant.FixConcurrency > 64 {
		add("assistant.fix_concurrency", "must be between 1 and 64, got %d", c.Assistant.FixConcurrency)
	}
	if c.Assistant.FixRate < 0 {
		add("assistant.fix_rate", "cannot be negative")
	}
	if c.Assistant.FixBurst < 0 {
		add("assistant.fix_burst", "cannot be negative")
	}

	// Settings
	validStores := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validStores[strings.ToLower(c.Settings.Store)] {
		add("settings.store", "invalid store '%s', must be one of: file, sqlite, memory", c.Settings.Store)
	}
	if c.Settings.DebounceMS < 0 {
		add("settings.debounce_ms", "cannot be negative")
	}

	// Providers
	for field, raw := range map[string]string{
		"providers.openai_url":    c.Providers.OpenAIURL,
		"providers.anthropic_url": c.Providers.AnthropicURL,
		"providers.ollama_url":    c.Providers.OllamaURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			add(field, "%v", err)
		}
	}
	if c.Providers.TimeoutSecs < 0 {
		add("providers.timeout_secs", "cannot be negative")
	}
	if c.Providers.MaxTokens < 0 {
		add("providers.max_tokens", "cannot be negative")
	}
	for field, t := range map[string]float64{
		"providers.chat_temperature": c.Providers.ChatTemperature,
		"providers.fix_temperature":  c.Providers.FixTemperature,
	} {
		if t < 0 || t > 2 {
			add(field, "must be between 0 and 2, got %g", t)
		}
	}

	// Log
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	validClipboards := map[string]bool{"auto": true, "system": true, "osc52": true, "none": true}
	if !validClipboards[strings.ToLower(c.UI.Clipboard)] {
		add("ui.clipboard", "invalid clipboard '%s', must be one of: auto, system, osc52, none", c.UI.Clipboard)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - NBASSIST_GATEWAY_URL, NBASSIST_GATEWAY_TOKEN
//   - NBASSIST_ADDR, NBASSIST_SERVER_TOKEN
//   - NBASSIST_FIX_CONCURRENCY
//   - NBASSIST_SETTINGS_STORE, NBASSIST_SETTINGS_PATH
//   - NBASSIST_LOG_LEVEL, NBASSIST_LOG_FORMAT
//   - OPENAI_API_KEY, OPENAI_BASE_URL
//   - ANTHROPIC_API_KEY
//   - GEMINI_API_KEY (GOOGLE_API_KEY as a fallback)
//   - OLLAMA_HOST (scheme optional), NBASSIST_LOCAL_ONLY
func (c *Config) ApplyEnvOverrides() {
	setString := func(dst *string, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Gateway.URL, "NBASSIST_GATEWAY_URL")
	setString(&c.Gateway.Token, "NBASSIST_GATEWAY_TOKEN")
	setString(&c.Server.Addr, "NBASSIST_ADDR")
	setString(&c.Server.Token, "NBASSIST_SERVER_TOKEN")
	setString(&c.Settings.Store, "NBASSIST_SETTINGS_STORE")
	setString(&c.Settings.Path, "NBASSIST_SETTINGS_PATH")
	setString(&c.Log.Level, "NBASSIST_LOG_LEVEL")
	setString(&c.Log.Format, "NBASSIST_LOG_FORMAT")

	if v := os.Getenv("NBASSIST_FIX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Assistant.FixConcurrency = n
		}
	}

	setString(&c.Providers.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.Providers.OpenAIURL, "OPENAI_BASE_URL")
	setString(&c.Providers.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&c.Providers.GeminiKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if v := os.Getenv("NBASSIST_LOCAL_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Providers.LocalOnly = b
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Providers.OllamaURL = host
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "log.level").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// equivalent, compared case-insensitively.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"gateway.url",
		"gateway.timeout_secs",
		"gateway.token",
		"server.addr",
		"server.read_timeout_secs",
		"server.write_timeout_secs",
		"server.token",
		"server.allowed_origins",
		"assistant.fix_concurrency",
		"assistant.fix_rate",
		"assistant.fix_burst",
		"settings.store",
		"settings.path",
		"settings.debounce_ms",
		"settings.passphrase_env",
		"settings.watch",
		"providers.openai_key",
		"providers.openai_url",
		"providers.anthropic_key",
		"providers.anthropic_url",
		"providers.gemini_key",
		"providers.ollama_url",
		"providers.timeout_secs",
		"providers.max_tokens",
		"providers.chat_temperature",
		"providers.fix_temperature",
		"providers.local_only",
		"log.level",
		"log.format",
		"log.file",
		"ui.theme",
		"ui.clipboard",
		"ui.compact_mode",
		"ui.show_model",
	}
}

// IsSecretKey reports whether key holds a credential that must not be
// printed.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, "_key") || strings.HasSuffix(key, ".token")
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering with every secret redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for _, s := range []*string{
		&safe.Gateway.Token,
		&safe.Server.Token,
		&safe.Providers.OpenAIKey,
		&safe.Providers.AnthropicKey,
		&safe.Providers.GeminiKey,
	} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
