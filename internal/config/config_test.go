// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears every
// variable ApplyEnvOverrides reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NBASSIST_HOME", dir)
	for _, name := range []string{
		"NBASSIST_GATEWAY_URL", "NBASSIST_GATEWAY_TOKEN", "NBASSIST_ADDR",
		"NBASSIST_SERVER_TOKEN", "NBASSIST_SETTINGS_STORE", "NBASSIST_SETTINGS_PATH",
		"NBASSIST_LOG_LEVEL", "NBASSIST_LOG_FORMAT", "NBASSIST_FIX_CONCURRENCY",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(name, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}
	if cfg.Gateway.URL != "http://127.0.0.1:8888/" {
		t.Errorf("Expected default gateway URL, got '%s'", cfg.Gateway.URL)
	}
	if cfg.Gateway.Timeout() != 0 {
		t.Errorf("Expected no default gateway timeout, got %v", cfg.Gateway.Timeout())
	}
	if cfg.Assistant.FixConcurrency != 4 {
		t.Errorf("Expected fix concurrency 4, got %d", cfg.Assistant.FixConcurrency)
	}
	if cfg.Settings.Store != "file" {
		t.Errorf("Expected file settings store, got '%s'", cfg.Settings.Store)
	}
	if cfg.Settings.Debounce() != 250*time.Millisecond {
		t.Errorf("Expected 250ms debounce, got %v", cfg.Settings.Debounce())
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"valid default", func(*Config) {}, "", false},
		{"bad gateway scheme", func(c *Config) { c.Gateway.URL = "ftp://host/" }, "gateway.url", true},
		{"gateway without host", func(c *Config) { c.Gateway.URL = "http://" }, "gateway.url", true},
		{"empty server addr", func(c *Config) { c.Server.Addr = " " }, "server.addr", true},
		{"zero concurrency", func(c *Config) { c.Assistant.FixConcurrency = 0 }, "assistant.fix_concurrency", true},
		{"sequential concurrency", func(c *Config) { c.Assistant.FixConcurrency = 1 }, "", false},
		{"negative rate", func(c *Config) { c.Assistant.FixRate = -1 }, "assistant.fix_rate", true},
		{"unknown store", func(c *Config) { c.Settings.Store = "redis" }, "settings.store", true},
		{"sqlite store", func(c *Config) { c.Settings.Store = "sqlite" }, "", false},
		{"bad ollama url", func(c *Config) { c.Providers.OllamaURL = "localhost:11434" }, "providers.ollama_url", true},
		{"temperature too high", func(c *Config) { c.Providers.FixTemperature = 3 }, "providers.fix_temperature", true},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level", true},
		{"json log format", func(c *Config) { c.Log.Format = "json" }, "", false},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme", true},
		{"bad clipboard", func(c *Config) { c.UI.Clipboard = "xclip" }, "ui.clipboard", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error for %s, got %v", tt.field, err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.UI.Theme = "neon"

	var verrs ValidateErrors
	if !errors.As(cfg.Validate(), &verrs) {
		t.Fatal("expected ValidateErrors")
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(verrs.Error(), "; ") {
		t.Errorf("expected joined message, got %q", verrs.Error())
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoad_TOMLPreferredOverJSON(t *testing.T) {
	dir := isolate(t)

	toml := "[log]\nlevel = \"debug\"\n\n[assistant]\nfix_concurrency = 2\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}
	json := `{"log": {"level": "error"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(json), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected TOML level debug, got %s", cfg.Log.Level)
	}
	if cfg.Assistant.FixConcurrency != 2 {
		t.Errorf("expected fix_concurrency 2, got %d", cfg.Assistant.FixConcurrency)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("unset fields keep defaults, got format %s", cfg.Log.Format)
	}
}

func TestLoad_BrokenTOMLFallsBackToJSON(t *testing.T) {
	dir := isolate(t)

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[log\nlevel="), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"ui": {"theme": "light"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("expected JSON theme light, got %s", cfg.UI.Theme)
	}
}

func TestLoad_BrokenFileReturnsDefaultsAndError(t *testing.T) {
	dir := isolate(t)

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = = toml"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected a load error to be reported")
	}
	if cfg == nil || cfg.Log.Level != "info" {
		t.Fatalf("expected defaults alongside the error, got %+v", cfg)
	}
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[settings]\nstore = \"etcd\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestLoadTOML_FixesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("version = \"1.0.0\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadTOML(Default(), path); err != nil {
		t.Fatalf("LoadTOML error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %o", info.Mode().Perm())
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Gateway.URL = "http://notebook.local:9999/"
	cfg.Assistant.FixRate = 2.5
	cfg.UI.CompactMode = true

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# nbassist configuration file") {
		t.Errorf("expected header comment, got %q", string(data[:40]))
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	if loaded.Gateway.URL != cfg.Gateway.URL || loaded.Assistant.FixRate != 2.5 || !loaded.UI.CompactMode {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NBASSIST_GATEWAY_URL", "http://10.0.0.2:8888/")
	t.Setenv("NBASSIST_FIX_CONCURRENCY", "1")
	t.Setenv("NBASSIST_LOG_FORMAT", "json")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-fallback")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Gateway.URL != "http://10.0.0.2:8888/" {
		t.Errorf("gateway url = %s", cfg.Gateway.URL)
	}
	if cfg.Assistant.FixConcurrency != 1 {
		t.Errorf("fix concurrency = %d", cfg.Assistant.FixConcurrency)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %s", cfg.Log.Format)
	}
	if cfg.Providers.OpenAIKey != "sk-test" {
		t.Errorf("openai key not applied")
	}
	if cfg.Providers.GeminiKey != "g-fallback" {
		t.Errorf("GOOGLE_API_KEY should be used when GEMINI_API_KEY is unset")
	}
	if cfg.Providers.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("ollama url = %s", cfg.Providers.OllamaURL)
	}
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("assistant.fix_concurrency", "8"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if cfg.Assistant.FixConcurrency != 8 {
		t.Errorf("expected 8, got %d", cfg.Assistant.FixConcurrency)
	}
	if err := cfg.Set("ui.compact_mode", "yes"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !cfg.UI.CompactMode {
		t.Error("expected compact mode on")
	}
	if err := cfg.Set("providers.openai_url", "http://proxy:8080/v1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	v, err := cfg.Get("providers.openai_url")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if v != "http://proxy:8080/v1" {
		t.Errorf("Get returned %v", v)
	}

	if _, err := cfg.Get("gateway"); err == nil {
		t.Error("expected an error for a section key")
	}
	if _, err := cfg.Get("nope.field"); err == nil {
		t.Error("expected an error for an unknown key")
	}
	if err := cfg.Set("assistant.fix_rate", "fast"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %s does not resolve: %v", key, err)
		}
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Providers.OpenAIKey = "sk-very-secret"
	cfg.Gateway.Token = "tok-123"

	s := cfg.String()
	if strings.Contains(s, "sk-very-secret") || strings.Contains(s, "tok-123") {
		t.Errorf("String() leaked a secret: %s", s)
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
	if cfg.Providers.OpenAIKey != "sk-very-secret" {
		t.Error("String() must not modify the original")
	}
}

func TestConfig_SettingsPath(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	p, err := cfg.SettingsPath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(dir, "settings.toml") {
		t.Errorf("file store path = %s", p)
	}

	cfg.Settings.Store = "sqlite"
	p, _ = cfg.SettingsPath()
	if p != filepath.Join(dir, "settings.db") {
		t.Errorf("sqlite store path = %s", p)
	}

	cfg.Settings.Path = "/tmp/x.db"
	p, _ = cfg.SettingsPath()
	if p != "/tmp/x.db" {
		t.Errorf("explicit path = %s", p)
	}
}

func TestSettingsConfig_Passphrase(t *testing.T) {
	t.Setenv("NBASSIST_PASSPHRASE", "hunter2")
	s := Default().Settings
	if s.Passphrase() != "hunter2" {
		t.Errorf("expected passphrase from env")
	}
	s.PassphraseEnv = ""
	if s.Passphrase() != "" {
		t.Errorf("expected no passphrase when env name is empty")
	}
}

func TestIsSecretKey(t *testing.T) {
	for key, want := range map[string]bool{
		"providers.openai_key": true,
		"gateway.token":        true,
		"log.level":            false,
		"ui.theme":             false,
	} {
		if got := IsSecretKey(key); got != want {
			t.Errorf("IsSecretKey(%s) = %v, want %v", key, got, want)
		}
	}
}
