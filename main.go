// toolshop - tool runtime for language model agents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/toolshop-ai/toolshop/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
