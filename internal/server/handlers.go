// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/tools"
)

// CallResponse is the body of every POST /tools/{name} response.
type CallResponse struct {
	Output       string `json:"output"`
	Error        string `json:"error"`
	ID           string `json:"id,omitempty"`
	Truncated    bool   `json:"truncated,omitempty"`
	RedirectedTo string `json:"redirected_to,omitempty"`
}

// =============================================================================
// HELPERS
// =============================================================================

// writeJSON serialises data as JSON and writes it to the response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeError writes a CallResponse carrying only msg.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, CallResponse{Error: msg})
}

// StatusForError maps an error kind to its HTTP status code.
func StatusForError(err error) int {
	switch toolerr.KindOf(err) {
	case toolerr.ErrNotFound:
		return http.StatusNotFound
	case toolerr.ErrAlreadyExists:
		return http.StatusConflict
	case toolerr.ErrFormat:
		return http.StatusUnprocessableEntity
	case toolerr.ErrPrecondition:
		return http.StatusPreconditionFailed
	case toolerr.ErrConfirmationDenied:
		return http.StatusForbidden
	case toolerr.ErrInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.toolset.Registry.Manifest())
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tool := s.toolset.Registry.Get(name)
	if tool == nil {
		s.writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}
	s.writeJSON(w, http.StatusOK, tool.Info())
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if s.toolset.Registry.Get(name) == nil {
		s.writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := tools.ParseParams(strings.TrimSpace(string(body)))
	if err != nil {
		s.writeError(w, StatusForError(err), err.Error())
		return
	}

	if s.session != nil {
		if _, err := s.session.ExpireIfIdle(); err != nil {
			s.logger.Warn("failed to reset idle session", zap.Error(err))
		}
	}
	res := s.toolset.Executor.Execute(r.Context(), tools.ToolCall{Name: name, Params: params})
	if s.session != nil {
		if err := s.session.Touch(); err != nil {
			s.logger.Warn("failed to save session", zap.Error(err))
		}
	}

	resp := CallResponse{
		Output:       res.Output,
		Error:        res.Error,
		ID:           res.ID,
		Truncated:    res.Truncated,
		RedirectedTo: res.RedirectedTo,
	}
	status := http.StatusOK
	if !res.Success {
		status = StatusForError(res.Err)
	}
	s.writeJSON(w, status, resp)
}
