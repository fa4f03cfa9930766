// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// NAME FILTERS
// =============================================================================

// DefaultIgnorePrefixes are skipped for both files and directories unless
// the caller supplies a prefix list of its own.
var DefaultIgnorePrefixes = []string{".", "__"}

// NameFilter selects file or directory names by prefix and suffix.
// An allowlist and an ignorelist may not both be set on the same axis.
type NameFilter struct {
	PrefixAllow  []string
	PrefixIgnore []string
	SuffixAllow  []string
	SuffixIgnore []string
}

// Validate rejects an allowlist combined with an ignorelist on one axis.
func (nf NameFilter) Validate(kind string) error {
	if len(nf.PrefixAllow) > 0 && len(nf.PrefixIgnore) > 0 {
		return toolerr.New(toolerr.ErrPrecondition, NameReadDirectory, "",
			"Cannot specify both %s_prefix_allowlist and %s_prefix_ignorelist", kind, kind)
	}
	if len(nf.SuffixAllow) > 0 && len(nf.SuffixIgnore) > 0 {
		return toolerr.New(toolerr.ErrPrecondition, NameReadDirectory, "",
			"Cannot specify both %s_suffix_allowlist and %s_suffix_ignorelist", kind, kind)
	}
	return nil
}

// Match reports whether name passes the filter.
func (nf NameFilter) Match(name string) bool {
	if len(nf.PrefixAllow) > 0 && !anyPrefix(name, nf.PrefixAllow) {
		return false
	}
	if len(nf.SuffixAllow) > 0 && !anySuffix(name, nf.SuffixAllow) {
		return false
	}
	if anyPrefix(name, nf.PrefixIgnore) {
		return false
	}
	if anySuffix(name, nf.SuffixIgnore) {
		return false
	}
	return true
}

func anyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func anySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// filterFromParams builds the filter for kind ("files" or "dirs"). An
// omitted prefix ignorelist defaults to DefaultIgnorePrefixes unless a
// prefix allowlist is given.
func filterFromParams(params map[string]interface{}, kind string) (NameFilter, error) {
	key := func(axis, list string) string { return kind + "_" + axis + "_" + list }

	nf := NameFilter{
		PrefixAllow:  getStringListParam(params, key("prefix", "allowlist")),
		PrefixIgnore: getStringListParam(params, key("prefix", "ignorelist")),
		SuffixAllow:  getStringListParam(params, key("suffix", "allowlist")),
		SuffixIgnore: getStringListParam(params, key("suffix", "ignorelist")),
	}
	if !hasParam(params, key("prefix", "ignorelist")) && len(nf.PrefixAllow) == 0 {
		nf.PrefixIgnore = DefaultIgnorePrefixes
	}
	if err := nf.Validate(kind); err != nil {
		return NameFilter{}, err
	}
	return nf, nil
}

// =============================================================================
// DIRECTORY SCAN
// =============================================================================

// ScanOptions controls ScanDirectory.
type ScanOptions struct {
	Files           NameFilter
	Dirs            NameFilter
	LineNumbers     bool
	IncludeContents bool
}

// ScanDirectory walks root and renders every selected file under a
// "===== File: <path> =====" header. Directories rejected by the filter are
// not descended into. Within a directory its files come before its
// subdirectories, each group in name order.
//
// A file that cannot be read is rendered as an error line and the scan
// continues.
func ScanDirectory(ctx context.Context, store *linestore.Store, logger *zap.Logger, root string, opts ScanOptions) (string, int, error) {
	root = linestore.ExpandHome(root)
	fsys := store.Fs()

	info, err := fsys.Stat(root)
	if err != nil {
		return "", 0, toolerr.Wrap(toolerr.ErrNotFound, NameReadDirectory, root, err)
	}
	if !info.IsDir() {
		return "", 0, toolerr.New(toolerr.ErrInvalidArgument, NameReadDirectory, root, "%s is not a directory", root)
	}

	var paths []string
	if err := collectFiles(ctx, fsys, root, opts, &paths); err != nil {
		return "", 0, err
	}

	var b strings.Builder
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		fmt.Fprintf(&b, "===== File: %s =====\n", path)
		if !opts.IncludeContents {
			continue
		}

		contents, err := store.Read(path, linestore.ReadOptions{LineNumbers: opts.LineNumbers})
		if err != nil {
			logger.Error("Error reading file: "+path, zap.Error(err))
			fmt.Fprintf(&b, "Error reading file: %s\n\n", path)
			continue
		}
		b.WriteString(contents)
		b.WriteString("\n\n")
	}
	return b.String(), len(paths), nil
}

func collectFiles(ctx context.Context, fsys afero.Fs, dir string, opts ScanOptions, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if opts.Dirs.Match(name) {
				subdirs = append(subdirs, filepath.Join(dir, name))
			}
			continue
		}
		if opts.Files.Match(name) {
			*out = append(*out, filepath.Join(dir, name))
		}
	}

	for _, sub := range subdirs {
		if err := collectFiles(ctx, fsys, sub, opts, out); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// READ DIRECTORY TOOL
// =============================================================================

func (f *FileTools) readDirectoryTool() *Tool {
	list := func(name, desc string) Parameter {
		return Parameter{Name: name, Type: "array", Items: "string", Description: desc}
	}
	return &Tool{
		Name: NameReadDirectory,
		Description: `Reads the files in a directory recursively. Each file is preceded by a
"===== File: <path> =====" header. Files and directories whose names start
with "." or "__" are skipped by default. Use the prefix and suffix allow and
ignore lists to select names; an allowlist and an ignorelist cannot be
combined on the same axis.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The directory to read."},
			list("files_prefix_allowlist", "Only include files whose names start with one of these prefixes."),
			list("files_prefix_ignorelist", `Skip files whose names start with one of these prefixes. Defaults to [".", "__"].`),
			list("files_suffix_allowlist", "Only include files whose names end with one of these suffixes."),
			list("files_suffix_ignorelist", "Skip files whose names end with one of these suffixes."),
			list("dirs_prefix_allowlist", "Only descend into directories whose names start with one of these prefixes."),
			list("dirs_prefix_ignorelist", `Skip directories whose names start with one of these prefixes. Defaults to [".", "__"].`),
			list("dirs_suffix_allowlist", "Only descend into directories whose names end with one of these suffixes."),
			list("dirs_suffix_ignorelist", "Skip directories whose names end with one of these suffixes."),
			{Name: "include_line_numbers", Type: "boolean", Description: "Whether to number the lines of each file. Defaults to True.", Default: true},
			{Name: "include_contents", Type: "boolean", Description: "Whether to include file contents or only the headers. Defaults to True.", Default: true},
		}},
		ReturnResult: true,
		Executor:     &readDirectoryExecutor{f},
	}
}

type readDirectoryExecutor struct{ *FileTools }

func (e *readDirectoryExecutor) ValidateArgs(params map[string]interface{}) error {
	if _, err := filterFromParams(params, "files"); err != nil {
		return err
	}
	_, err := filterFromParams(params, "dirs")
	return err
}

func (e *readDirectoryExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	files, err := filterFromParams(params, "files")
	if err != nil {
		return Result{}, err
	}
	dirs, err := filterFromParams(params, "dirs")
	if err != nil {
		return Result{}, err
	}

	output, count, err := ScanDirectory(ctx, e.store, e.logger, getStringParam(params, "path", ""), ScanOptions{
		Files:           files,
		Dirs:            dirs,
		LineNumbers:     getBoolParam(params, "include_line_numbers", true),
		IncludeContents: getBoolParam(params, "include_contents", true),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output, LinesCount: count}, nil
}
