// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the state shared by the tools of one session.
//
// The central piece is the staleness Tracker: it remembers when each file was
// last read and last written through the toolset, and refuses a mutating call
// until the caller has read the file again after the previous change. This
// forces a read, observe, mutate cycle so edits are never computed against
// line numbers that an earlier edit already shifted.
//
// # Key Types
//
//   - Tracker: per-path read/write timestamps and the freshness check
//   - State: tracker plus the pending result redirect, one per session
//   - Store: BoltDB persistence so separate processes share a session
//   - Watcher: fsnotify-based detection of changes made outside the toolset
//   - Manager: lifecycle of one State (persistence, idle expiry, status)
//
// # Usage
//
//	st := session.New()
//	st.RecordRead("/tmp/a.txt")
//	if err := st.AssertFresh("/tmp/a.txt"); err != nil {
//	    // re-read first
//	}
//	st.RecordWrite("/tmp/a.txt")
//
// A nil *State is accepted everywhere and disables tracking.
package session
