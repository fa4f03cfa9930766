// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"
)

// =============================================================================
// FILE FINGERPRINTS
// =============================================================================

// Fingerprint identifies the on-disk version of a file. Filesystem mtimes are
// coarse, so the content digest is what catches a rewrite landing in the same
// clock tick as the read.
type Fingerprint struct {
	Exists  bool      `json:"exists,omitempty"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
	Digest  string    `json:"digest,omitempty"`
}

// Equal reports whether f and other describe the same file version.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Exists == other.Exists &&
		f.Size == other.Size &&
		f.ModTime.Equal(other.ModTime) &&
		f.Digest == other.Digest
}

// StatFingerprint fingerprints path on the OS filesystem. A missing or
// unreadable file yields the zero Fingerprint.
func StatFingerprint(path string) Fingerprint {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Fingerprint{}
	}

	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}
	}
	return Fingerprint{
		Exists:  true,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Digest:  hex.EncodeToString(h.Sum(nil)),
	}
}
