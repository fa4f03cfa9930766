// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/toolshop-ai/toolshop/internal/config"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/ui"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigKeysCommand(),
		newConfigPathCommand(a),
		newConfigResetCommand(a),
	)
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "toml":
				return toml.NewEncoder(out).Encode(a.cfg)
			case "json":
				printLine(out, a.cfg.String())
				return nil
			default:
				return toolerr.New(toolerr.ErrInvalidArgument, "config show", "",
					"unknown format %q (want toml or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml or json")
	return cmd
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one configuration value",
		Example: "  toolshop config get shell.work_dir",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return toolerr.Wrap(toolerr.ErrInvalidArgument, "config get", "", err)
			}
			printLine(cmd.OutOrStdout(), formatConfigValue(v))
			return nil
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the configuration file",
		Long: `Change one value in the configuration file. Lists take comma-separated
values. The file is validated before it is written.`,
		Example: "  toolshop config set sql.max_rows 500\n" +
			"  toolshop config set tools.enabled read_file,histogram",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, base, err := a.editableConfig()
			if err != nil {
				return err
			}

			updated := base.Clone()
			if err := updated.Set(args[0], args[1]); err != nil {
				return toolerr.Wrap(toolerr.ErrInvalidArgument, "config set", "", err)
			}
			if err := updated.Validate(); err != nil {
				return toolerr.Wrap(toolerr.ErrInvalidArgument, "config set", "", err)
			}
			if err := saveConfig(updated, path); err != nil {
				return err
			}

			printLine(cmd.OutOrStdout(), ui.SuccessLine(fmt.Sprintf("%s = %s (%s)",
				args[0], formatConfigValue(mustGet(updated, args[0])), path)))
			return nil
		},
	}
}

func newConfigKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every configuration key",
		Args:  cobra.NoArgs,
		// Keys come from the struct, no file needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.GetAllKeys() {
				printLine(cmd.OutOrStdout(), k)
			}
		},
	}
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFile()
			if err != nil {
				return err
			}
			printLine(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFile()
			if err != nil {
				return err
			}
			if err := saveConfig(config.Default(), path); err != nil {
				return err
			}
			printLine(cmd.OutOrStdout(), ui.SuccessLine("configuration reset: "+path))
			return nil
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// configFile returns the file config edits go to: --config, else the
// existing default TOML or JSON file, else the default TOML path.
func (a *app) configFile() (string, error) {
	if a.configPath != "" {
		return config.ExpandPath(a.configPath), nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// editableConfig loads the config file without the command line overrides
// applied to a.cfg, so they are not written back.
func (a *app) editableConfig() (string, *config.Config, error) {
	path, err := a.configFile()
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(path); err != nil {
		cfg := config.Default()
		cfg.SetDefaults()
		return path, cfg, nil
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

func saveConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func mustGet(cfg *config.Config, key string) interface{} {
	v, _ := cfg.Get(key)
	return v
}

// formatConfigValue renders a value on one line. Lists come out comma
// separated, the form config set takes.
func formatConfigValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case map[string]bool:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%t", k, val[k]))
		}
		return strings.Join(pairs, ",")
	case nil:
		return ""
	default:
		if data, err := json.Marshal(val); err == nil && strings.HasPrefix(string(data), "{") {
			return string(data)
		}
		return fmt.Sprint(val)
	}
}
