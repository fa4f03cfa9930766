// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolshop-ai/toolshop/internal/config"
	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/tools"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T, opts ...tools.ToolsetOption) (*httptest.Server, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/w/notes.txt", []byte("one\ntwo\n"), 0644))

	cfg := config.Default()
	cfg.Tools.Enabled = []string{
		tools.NameReadFile, tools.NameCreateFile, tools.NameInsertLines,
		tools.NameHistogram, tools.NameAuthGCP,
	}
	ts, err := tools.NewToolset(cfg, session.New(), append([]tools.ToolsetOption{tools.WithToolsetFs(fs)}, opts...)...)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer("", ts).Handler())
	t.Cleanup(srv.Close)
	return srv, fs
}

func call(t *testing.T, srv *httptest.Server, name, body string) (int, CallResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/tools/"+name, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out CallResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// =============================================================================
// READ ENDPOINT TESTS
// =============================================================================

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListTools(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []tools.ToolInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{
		tools.NameAuthGCP, tools.NameCreateFile, tools.NameHistogram,
		tools.NameInsertLines, tools.NameReadFile,
	}, names)
}

func TestGetTool(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tools/" + tools.NameHistogram)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info tools.ToolInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, tools.NameHistogram, info.Name)
	require.NotEmpty(t, info.Parameters)
	assert.Equal(t, "title", info.Parameters[0].Name)

	resp2, err := http.Get(srv.URL + "/tools/teleport")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/tools/histogram", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// =============================================================================
// CALL ENDPOINT TESTS
// =============================================================================

func TestCallTool_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := call(t, srv, tools.NameHistogram, `{"title": "Load", "data": [["a", 1], ["b", 2]]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, out.Error)
	assert.True(t, strings.HasPrefix(out.Output, "Load\n####\n"), out.Output)
	assert.NotEmpty(t, out.ID)
}

func TestCallTool_StatusMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		tool   string
		body   string
		status int
	}{
		{"unknown tool", "teleport", `{}`, http.StatusNotFound},
		{"bad json", tools.NameHistogram, `{"title":`, http.StatusBadRequest},
		{"not an object", tools.NameHistogram, `[1, 2]`, http.StatusBadRequest},
		{"missing argument", tools.NameHistogram, `{}`, http.StatusBadRequest},
		{"missing file", tools.NameReadFile, `{"path": "/w/missing.txt"}`, http.StatusNotFound},
		{"already exists", tools.NameCreateFile, `{"path": "/w/notes.txt", "text": "x\n"}`, http.StatusConflict},
		{"not read first", tools.NameInsertLines, `{"path": "/w/notes.txt", "text": "x\n", "insert_line": 1}`, http.StatusPreconditionFailed},
		{"denied", tools.NameAuthGCP, `{}`, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, out := call(t, srv, tc.tool, tc.body)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, out.Error)
			assert.Empty(t, out.Output)
		})
	}
}

func TestCallTool_FormatError(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := call(t, srv, tools.NameReadFile, `{"path": "/w/notes.txt"}`)
	require.Equal(t, http.StatusOK, status)

	status, out := call(t, srv, tools.NameInsertLines, `{"path": "/w/notes.txt", "text": "no newline", "insert_line": 1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, out.Error, "must end with a newline")
}

func TestCallTool_SharedSession(t *testing.T) {
	srv, fs := newTestServer(t)

	status, out := call(t, srv, tools.NameReadFile, `{"path": "/w/notes.txt"}`)
	require.Equal(t, http.StatusOK, status, out.Error)
	assert.Contains(t, out.Output, "one")

	status, out = call(t, srv, tools.NameInsertLines, `{"path": "/w/notes.txt", "text": "zero\n", "insert_line": 1}`)
	require.Equal(t, http.StatusOK, status, out.Error)

	data, err := afero.ReadFile(fs, "/w/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "zero\none\ntwo\n", string(data))
}

func TestCallTool_IdleSessionExpires(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/w/notes.txt", []byte("one\ntwo\n"), 0644))

	mgr, err := session.NewManager(session.Config{IdleTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer mgr.Close()

	cfg := config.Default()
	cfg.Tools.Enabled = []string{tools.NameReadFile, tools.NameInsertLines}
	ts, err := tools.NewToolset(cfg, mgr.State(), tools.WithToolsetFs(fs))
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer("", ts, WithSession(mgr)).Handler())
	defer srv.Close()

	status, out := call(t, srv, tools.NameReadFile, `{"path": "/w/notes.txt"}`)
	require.Equal(t, http.StatusOK, status, out.Error)

	time.Sleep(150 * time.Millisecond)

	status, out = call(t, srv, tools.NameInsertLines, `{"path": "/w/notes.txt", "text": "zero\n", "insert_line": 1}`)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Contains(t, out.Error, "must read the file")

	data, err := afero.ReadFile(fs, "/w/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestCallTool_ApprovedConfirmation(t *testing.T) {
	t.Setenv(tools.CredentialsEnv, "")
	srv, _ := newTestServer(t, tools.WithConfirmation(tools.AllowAllCallback()))

	// Approved, then fails its own precondition.
	status, out := call(t, srv, tools.NameAuthGCP, `{}`)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Contains(t, out.Error, tools.CredentialsEnv)
}

func TestCallTool_BodyTooLarge(t *testing.T) {
	ts, err := tools.NewToolset(config.Default(), nil)
	require.NoError(t, err)

	big := `{"title": "` + strings.Repeat("x", MaxRequestBodySize) + `", "data": []}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/"+tools.NameHistogram, strings.NewReader(big))
	NewServer("", ts).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

// =============================================================================
// STATUS MAPPING TESTS
// =============================================================================

func TestStatusForError(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{toolerr.ErrNotFound, http.StatusNotFound},
		{toolerr.ErrAlreadyExists, http.StatusConflict},
		{toolerr.ErrFormat, http.StatusUnprocessableEntity},
		{toolerr.ErrPrecondition, http.StatusPreconditionFailed},
		{toolerr.ErrConfirmationDenied, http.StatusForbidden},
		{toolerr.ErrInvalidArgument, http.StatusBadRequest},
	}
	for _, tc := range tests {
		err := toolerr.New(tc.kind, "op", "", "detail")
		assert.Equal(t, tc.want, StatusForError(err), tc.kind.Error())
		assert.Equal(t, tc.want, StatusForError(fmt.Errorf("wrapped: %w", err)))
	}
	assert.Equal(t, http.StatusInternalServerError, StatusForError(errors.New("boom")))
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServer_ServeAndShutdown(t *testing.T) {
	ts, err := tools.NewToolset(config.Default(), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer("", ts)
	assert.Equal(t, DefaultAddr, s.Addr())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logging.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
