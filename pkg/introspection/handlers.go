// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package introspection

import (
	"errors"
	"net/http"
	"strings"
)

// handleIndex lists the available variable paths.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	paths := s.registry.Paths()

	prefix := "/debug/vars/"
	if strings.HasPrefix(r.URL.Path, "/status") {
		prefix = "/status/"
	}
	links := make([]string, len(paths))
	for i, path := range paths {
		links[i] = prefix + path
	}

	WriteJSON(w, map[string]any{
		"paths": paths,
		"links": links,
	})
}

func (s *Server) handleAllVars(w http.ResponseWriter, r *http.Request) {
	all, err := s.registry.All()
	if err != nil {
		s.logger.Warn("Failed to read variables", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, all)
}

// handleVar serves one variable, narrowed by ?field= when given.
func (s *Server) handleVar(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		s.handleIndex(w, r)
		return
	}

	value, err := s.registry.GetWithField(path, ParseFieldQuery(r))
	switch {
	case errors.Is(err, ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Warn("Failed to read variable", "path", path, "error", err)
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteJSON(w, value)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleReady returns 503 until the readiness check passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.handleHealth(w, r)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "no route for "+r.URL.Path)
}
