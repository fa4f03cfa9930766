// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for toolshop.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.toolshop/config.toml
//   - ~/.toolshop/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/toolshop-ai/toolshop/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete toolshop configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Tools   ToolsConfig   `toml:"tools" json:"tools"`
	Shell   ShellConfig   `toml:"shell" json:"shell"`
	SQL     SQLConfig     `toml:"sql" json:"sql"`
	Web     WebConfig     `toml:"web" json:"web"`
	Python  PythonConfig  `toml:"python" json:"python"`
	Session SessionConfig `toml:"session" json:"session"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Server  ServerConfig  `toml:"server" json:"server"`
}

// ToolsConfig controls the tool registry and the executor.
type ToolsConfig struct {
	// Enabled lists the tools to register. Empty registers all of them.
	Enabled []string `toml:"enabled" json:"enabled"`

	// TimeoutSeconds bounds a single tool call.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`

	// MaxOutputBytes truncates tool output returned to the caller.
	MaxOutputBytes int `toml:"max_output_bytes" json:"max_output_bytes"`

	// RateLimitPerSecond caps tool calls per second (0 = unlimited).
	RateLimitPerSecond float64 `toml:"rate_limit_per_second" json:"rate_limit_per_second"`
	RateBurst          int     `toml:"rate_burst" json:"rate_burst"`

	// RequireConfirmation overrides the per-tool confirmation flag.
	RequireConfirmation map[string]bool `toml:"require_confirmation" json:"require_confirmation"`

	// ReturnResult overrides whether a tool's result goes back to the caller.
	ReturnResult map[string]bool `toml:"return_result" json:"return_result"`
}

// ShellConfig configures the shell tool.
type ShellConfig struct {
	Shell           string   `toml:"shell" json:"shell"`
	WorkDir         string   `toml:"work_dir" json:"work_dir"`
	BlockedCommands []string `toml:"blocked_commands" json:"blocked_commands"`
}

// SQLConfig configures the sql tool.
type SQLConfig struct {
	DefaultDriver string `toml:"default_driver" json:"default_driver"`
	MaxRows       int    `toml:"max_rows" json:"max_rows"`
}

// WebConfig configures the browse tool.
type WebConfig struct {
	TimeoutSeconds  int    `toml:"timeout_seconds" json:"timeout_seconds"`
	UserAgent       string `toml:"user_agent" json:"user_agent"`
	MaxBodyBytes    int64  `toml:"max_body_bytes" json:"max_body_bytes"`
	ConvertMarkdown bool   `toml:"convert_markdown" json:"convert_markdown"`
}

// PythonConfig configures the python_exec sandbox.
type PythonConfig struct {
	Interpreter    string `toml:"interpreter" json:"interpreter"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

// SessionConfig configures tool session state.
type SessionConfig struct {
	StorePath            string `toml:"store_path" json:"store_path"`
	WatchExternalChanges bool   `toml:"watch_external_changes" json:"watch_external_changes"`
	IdleTimeoutMinutes   int    `toml:"idle_timeout_minutes" json:"idle_timeout_minutes"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Preset string `toml:"preset" json:"preset"`
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file" json:"file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Tools: ToolsConfig{
			TimeoutSeconds:     120,
			MaxOutputBytes:     1 << 20,
			RateLimitPerSecond: 0, // unlimited
			RateBurst:          1,
		},

		Shell: ShellConfig{
			Shell: "bash",
			BlockedCommands: []string{
				"rm -rf /",
				"mkfs",
				":(){ :|:& };:",
			},
		},

		SQL: SQLConfig{
			DefaultDriver: "sqlite",
			MaxRows:       10000,
		},

		Web: WebConfig{
			TimeoutSeconds:  30,
			UserAgent:       "toolshop/1.0",
			MaxBodyBytes:    5 << 20,
			ConvertMarkdown: true,
		},

		Python: PythonConfig{
			Interpreter:    "python3",
			TimeoutSeconds: 60,
		},

		Session: SessionConfig{
			StorePath:          "~/.toolshop/sessions.db",
			IdleTimeoutMinutes: 30,
		},

		Logging: LoggingConfig{
			Preset: "minimal_verbose",
			Level:  "info",
		},

		Server: ServerConfig{
			Addr: "127.0.0.1:8088",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the toolshop configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".toolshop"), nil
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

// ExpandPath resolves a leading "~" against the home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
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
// validation. Values absent from the file keep their defaults.
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

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# toolshop configuration file\n")
	buf.WriteString("# Generated by toolshop - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Tools.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{"tools.timeout_seconds", "must not be negative"})
	}
	if c.Tools.MaxOutputBytes < 0 {
		errs = append(errs, ValidationError{"tools.max_output_bytes", "must not be negative"})
	}
	if c.Tools.RateLimitPerSecond < 0 {
		errs = append(errs, ValidationError{"tools.rate_limit_per_second", "must not be negative"})
	}
	if c.Tools.RateLimitPerSecond > 0 && c.Tools.RateBurst < 1 {
		errs = append(errs, ValidationError{"tools.rate_burst", "must be at least 1 when rate limiting is enabled"})
	}

	if strings.TrimSpace(c.Shell.Shell) == "" {
		errs = append(errs, ValidationError{"shell.shell", "must not be empty"})
	}
	if c.Shell.WorkDir != "" {
		if info, err := os.Stat(ExpandPath(c.Shell.WorkDir)); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{"shell.work_dir", fmt.Sprintf("'%s' is not a directory", c.Shell.WorkDir)})
		}
	}

	if c.SQL.MaxRows < 0 {
		errs = append(errs, ValidationError{"sql.max_rows", "must not be negative"})
	}

	if c.Web.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{"web.timeout_seconds", "must not be negative"})
	}
	if c.Web.MaxBodyBytes < 0 {
		errs = append(errs, ValidationError{"web.max_body_bytes", "must not be negative"})
	}

	if c.Python.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{"python.timeout_seconds", "must not be negative"})
	}

	if c.Session.IdleTimeoutMinutes < 0 {
		errs = append(errs, ValidationError{"session.idle_timeout_minutes", "must not be negative"})
	}

	validPresets := map[string]bool{"minimal_verbose": true, "classic_verbose": true}
	if !validPresets[strings.ToLower(c.Logging.Preset)] {
		errs = append(errs, ValidationError{
			Field:   "logging.preset",
			Message: fmt.Sprintf("invalid preset '%s', must be one of: minimal_verbose, classic_verbose", c.Logging.Preset),
		})
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			errs = append(errs, ValidationError{"server.addr", fmt.Sprintf("invalid address '%s': %v", c.Server.Addr, err)})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero setting.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Tools.TimeoutSeconds == 0 {
		c.Tools.TimeoutSeconds = defaults.Tools.TimeoutSeconds
	}
	if c.Tools.MaxOutputBytes == 0 {
		c.Tools.MaxOutputBytes = defaults.Tools.MaxOutputBytes
	}
	if c.Tools.RateBurst == 0 {
		c.Tools.RateBurst = defaults.Tools.RateBurst
	}
	if c.Shell.Shell == "" {
		c.Shell.Shell = defaults.Shell.Shell
	}
	if c.SQL.DefaultDriver == "" {
		c.SQL.DefaultDriver = defaults.SQL.DefaultDriver
	}
	if c.SQL.MaxRows == 0 {
		c.SQL.MaxRows = defaults.SQL.MaxRows
	}
	if c.Web.TimeoutSeconds == 0 {
		c.Web.TimeoutSeconds = defaults.Web.TimeoutSeconds
	}
	if c.Web.UserAgent == "" {
		c.Web.UserAgent = defaults.Web.UserAgent
	}
	if c.Web.MaxBodyBytes == 0 {
		c.Web.MaxBodyBytes = defaults.Web.MaxBodyBytes
	}
	if c.Python.Interpreter == "" {
		c.Python.Interpreter = defaults.Python.Interpreter
	}
	if c.Python.TimeoutSeconds == 0 {
		c.Python.TimeoutSeconds = defaults.Python.TimeoutSeconds
	}
	if c.Logging.Preset == "" {
		c.Logging.Preset = defaults.Logging.Preset
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TOOLSHOP_LOG_PRESET: overrides logging.preset
//   - TOOLSHOP_LOG_LEVEL: overrides logging.level
//   - TOOLSHOP_SHELL: overrides shell.shell
//   - TOOLSHOP_WORK_DIR: overrides shell.work_dir
//   - TOOLSHOP_SESSION_STORE: overrides session.store_path ("" disables persistence via "none")
//   - TOOLSHOP_SERVER_ADDR: overrides server.addr
//   - TOOLSHOP_TIMEOUT: overrides tools.timeout_seconds
func (c *Config) ApplyEnvOverrides() {
	if preset := os.Getenv("TOOLSHOP_LOG_PRESET"); preset != "" {
		c.Logging.Preset = preset
	}
	if level := os.Getenv("TOOLSHOP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if shell := os.Getenv("TOOLSHOP_SHELL"); shell != "" {
		c.Shell.Shell = shell
	}
	if dir := os.Getenv("TOOLSHOP_WORK_DIR"); dir != "" {
		c.Shell.WorkDir = dir
	}
	if store := os.Getenv("TOOLSHOP_SESSION_STORE"); store != "" {
		if store == "none" {
			c.Session.StorePath = ""
		} else {
			c.Session.StorePath = store
		}
	}
	if addr := os.Getenv("TOOLSHOP_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if timeout := os.Getenv("TOOLSHOP_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			c.Tools.TimeoutSeconds = secs
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "shell.work_dir").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "sql.max_rows").
func (c *Config) Set(key string, value interface{}) error {
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
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field := fieldByTag(v, part)
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag matches name.
func fieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
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
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
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

// GetAllKeys returns all leaf configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag := strings.Split(f.Tag.Get("toml"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			key := tag
			if prefix != "" {
				key = prefix + "." + tag
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, key)
				continue
			}
			keys = append(keys, key)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.Tools.Enabled = append([]string(nil), c.Tools.Enabled...)
	clone.Shell.BlockedCommands = append([]string(nil), c.Shell.BlockedCommands...)
	clone.Tools.RequireConfirmation = cloneBoolMap(c.Tools.RequireConfirmation)
	clone.Tools.ReturnResult = cloneBoolMap(c.Tools.ReturnResult)

	return &clone
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
