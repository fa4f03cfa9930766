// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration management for toolshop.
//
// # Configuration Files
//
// Configuration is loaded in this order:
//   - ~/.toolshop/config.toml
//   - ~/.toolshop/config.json
//   - Built-in defaults
//
// Environment variables (TOOLSHOP_*) are applied on top.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := time.Duration(cfg.Tools.TimeoutSeconds) * time.Second
//
// Dot-notation access mirrors the TOML keys:
//
//	v, _ := cfg.Get("shell.work_dir")
//	_ = cfg.Set("sql.max_rows", "500")
package config
