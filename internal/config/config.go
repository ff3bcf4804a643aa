// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads Anvyl's typed application configuration from
// environment variables (prefix ANVYL_) using viper, with literal
// defaults matching the external interfaces table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig is the full set of settings every Anvyl service reads at
// startup.
type AppConfig struct {
	StateDir string `mapstructure:"state_dir"`
	DBPath   string `mapstructure:"db_path"`

	InfraPort int `mapstructure:"infra_port"`
	MCPPort   int `mapstructure:"mcp_port"`
	AgentPort int `mapstructure:"agent_port"`

	InfraURL         string `mapstructure:"infra_url"`
	MCPURL           string `mapstructure:"mcp_url"`
	ModelProviderURL string `mapstructure:"model_provider_url"`
	Model            string `mapstructure:"model"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

func defaultConfig() *AppConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stateDir := filepath.Join(home, ".anvyl")
	return &AppConfig{
		StateDir:          stateDir,
		DBPath:            filepath.Join(stateDir, "db.sqlite"),
		InfraPort:         4200,
		MCPPort:           4201,
		AgentPort:         4202,
		InfraURL:          "http://localhost:4200",
		MCPURL:            "http://localhost:4201/mcp",
		ModelProviderURL:  "http://localhost:11434/v1",
		Model:             "llama-3.2-3b-instruct",
		ReconcileInterval: 15 * time.Second,
		LogLevel:          "info",
	}
}

// secondsToDuration decodes a bare integer string into that many
// seconds, so ANVYL_RECONCILE_INTERVAL=15 means 15s.
func secondsToDuration(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	if n, err := strconv.Atoi(reflect.ValueOf(data).String()); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return data, nil
}

// Load builds an AppConfig from defaults overridden by ANVYL_* env
// vars.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ANVYL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("state_dir", def.StateDir)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("infra_port", def.InfraPort)
	v.SetDefault("mcp_port", def.MCPPort)
	v.SetDefault("agent_port", def.AgentPort)
	v.SetDefault("infra_url", def.InfraURL)
	v.SetDefault("mcp_url", def.MCPURL)
	v.SetDefault("model_provider_url", def.ModelProviderURL)
	v.SetDefault("model", def.Model)
	v.SetDefault("reconcile_interval", def.ReconcileInterval)
	v.SetDefault("log_level", def.LogLevel)

	// The db_path default is derived from state_dir; if the caller
	// overrode state_dir without also overriding db_path, recompute
	// the default so the two stay consistent.
	if sd := os.Getenv("ANVYL_STATE_DIR"); sd != "" && os.Getenv("ANVYL_DB_PATH") == "" {
		v.SetDefault("db_path", filepath.Join(expandPath(sd), "db.sqlite"))
	}

	cfg := &AppConfig{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(secondsToDuration),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandPaths(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandPaths(cfg *AppConfig) {
	cfg.StateDir = expandPath(cfg.StateDir)
	cfg.DBPath = expandPath(cfg.DBPath)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func validate(cfg *AppConfig) error {
	if !filepath.IsAbs(cfg.StateDir) {
		return fmt.Errorf("ANVYL_STATE_DIR must be an absolute path, got %q", cfg.StateDir)
	}
	if !filepath.IsAbs(cfg.DBPath) {
		return fmt.Errorf("ANVYL_DB_PATH must be an absolute path, got %q", cfg.DBPath)
	}
	for name, port := range map[string]int{
		"ANVYL_INFRA_PORT": cfg.InfraPort,
		"ANVYL_MCP_PORT":   cfg.MCPPort,
		"ANVYL_AGENT_PORT": cfg.AgentPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be a valid TCP port, got %d", name, port)
		}
	}
	if cfg.ReconcileInterval <= 0 {
		return fmt.Errorf("ANVYL_RECONCILE_INTERVAL must be positive, got %s", cfg.ReconcileInterval)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("ANVYL_LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel)
	}
	return nil
}

// PIDDir and LogDir are the fixed layout under StateDir the Service
// Supervisor and Infrastructure Service agree on.
func (c *AppConfig) PIDDir() string { return filepath.Join(c.StateDir, "pids") }
func (c *AppConfig) LogDir() string { return filepath.Join(c.StateDir, "logs") }
