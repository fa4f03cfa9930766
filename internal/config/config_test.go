// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "bash", cfg.Shell.Shell)
	assert.Equal(t, "sqlite", cfg.SQL.DefaultDriver)
	assert.Equal(t, "minimal_verbose", cfg.Logging.Preset)
	assert.Equal(t, 120, cfg.Tools.TimeoutSeconds)
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[tools]
timeout_seconds = 5
enabled = ["read_file", "shell"]

[tools.require_confirmation]
shell = true

[logging]
preset = "classic_verbose"
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Tools.TimeoutSeconds)
	assert.Equal(t, []string{"read_file", "shell"}, cfg.Tools.Enabled)
	assert.True(t, cfg.Tools.RequireConfirmation["shell"])
	assert.Equal(t, "classic_verbose", cfg.Logging.Preset)
	// Untouched sections keep their defaults.
	assert.Equal(t, "python3", cfg.Python.Interpreter)
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sql": {"max_rows": 7}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.SQL.MaxRows)
	assert.Equal(t, "sqlite", cfg.SQL.DefaultDriver)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\npreset = \"loud\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.preset")
}

func TestLoadFromPath_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tools\n"), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TOOLSHOP_LOG_PRESET", "classic_verbose")
	t.Setenv("TOOLSHOP_SHELL", "sh")
	t.Setenv("TOOLSHOP_SESSION_STORE", "none")
	t.Setenv("TOOLSHOP_TIMEOUT", "9")
	t.Setenv("TOOLSHOP_SERVER_ADDR", "0.0.0.0:9000")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "classic_verbose", cfg.Logging.Preset)
	assert.Equal(t, "sh", cfg.Shell.Shell)
	assert.Empty(t, cfg.Session.StorePath)
	assert.Equal(t, 9, cfg.Tools.TimeoutSeconds)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestApplyEnvOverrides_BadTimeoutIgnored(t *testing.T) {
	t.Setenv("TOOLSHOP_TIMEOUT", "soon")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 120, cfg.Tools.TimeoutSeconds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative timeout", func(c *Config) { c.Tools.TimeoutSeconds = -1 }, "tools.timeout_seconds"},
		{"rate without burst", func(c *Config) { c.Tools.RateLimitPerSecond = 2; c.Tools.RateBurst = 0 }, "tools.rate_burst"},
		{"empty shell", func(c *Config) { c.Shell.Shell = " " }, "shell.shell"},
		{"missing work dir", func(c *Config) { c.Shell.WorkDir = "/definitely/not/here" }, "shell.work_dir"},
		{"bad level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"bad addr", func(c *Config) { c.Server.Addr = "nohostport" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Shell.BlockedCommands = []string{"shutdown"}
	cfg.Tools.ReturnResult = map[string]bool{"shell": false}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"shutdown"}, loaded.Shell.BlockedCommands)
	assert.False(t, loaded.Tools.ReturnResult["shell"])
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Web.UserAgent = "toolshop-test"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "toolshop-test", loaded.Web.UserAgent)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("sql.max_rows", "42"))
	v, err := cfg.Get("sql.max_rows")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	require.NoError(t, cfg.Set("web.convert_markdown", "false"))
	assert.False(t, cfg.Web.ConvertMarkdown)

	require.NoError(t, cfg.Set("tools.rate_limit_per_second", "2.5"))
	assert.Equal(t, 2.5, cfg.Tools.RateLimitPerSecond)

	require.NoError(t, cfg.Set("tools.enabled", "read_file, shell"))
	assert.Equal(t, []string{"read_file", "shell"}, cfg.Tools.Enabled)

	require.NoError(t, cfg.Set("shell.shell", "zsh"))
	assert.Equal(t, "zsh", cfg.Shell.Shell)

	_, err = cfg.Get("shell.nope")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("sql.max_rows", "many"))
	assert.Error(t, cfg.Set("shell.shell.inner", "x"))
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "shell.work_dir")
	assert.Contains(t, keys, "logging.preset")
	assert.NotContains(t, keys, "shell")
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.Tools.RequireConfirmation = map[string]bool{"shell": true}

	clone := cfg.Clone()
	clone.Tools.RequireConfirmation["shell"] = false
	clone.Shell.BlockedCommands[0] = "changed"

	assert.True(t, cfg.Tools.RequireConfirmation["shell"])
	assert.NotEqual(t, "changed", cfg.Shell.BlockedCommands[0])
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "~user", ExpandPath("~user"))
}
