// Copyright 2025 Google LLC. All Rights Reserved.
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

package assets

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/transparency-dev/httpcert/api"
	"k8s.io/klog/v2"
)

// maxOriginsSize bounds the body of an alternative origins update.
const maxOriginsSize = 64 << 10

// Server serves a Table over HTTP. The table may be updated while serving.
type Server struct {
	mu    sync.RWMutex
	table Table
}

// NewServer returns a server for t. The server takes ownership of t.
func NewServer(t Table) *Server {
	if t == nil {
		t = Table{}
	}
	return &Server{table: t}
}

// Serve returns the response for rawURL.
func (s *Server) Serve(rawURL string) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Serve(s.table, rawURL)
}

// UpdateAlternativeOrigins replaces the alternative origins document.
func (s *Server) UpdateAlternativeOrigins(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[api.PathAlternativeOrigins] = NewAsset(JSON, []byte(content))
}

// Table returns a copy of the current table.
func (s *Server) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := make(Table, len(s.table))
	for k, v := range s.table {
		t[k] = v
	}
	return t
}

// Handler returns an HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(api.PathAlternativeOrigins, s.handleUpdateOrigins).Methods(http.MethodPut)
	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).HandlerFunc(s.handleGet)
	return r
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	resp := s.Serve(r.URL.Path)
	for k, v := range resp.Headers {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		klog.V(1).Infof("Failed to write response for %q: %v", r.URL.Path, err)
	}
}

func (s *Server) handleUpdateOrigins(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOriginsSize+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body) > maxOriginsSize {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	var origins api.AlternativeOrigins
	if err := json.Unmarshal(body, &origins); err != nil {
		http.Error(w, fmt.Sprintf("invalid alternative origins document: %v", err), http.StatusBadRequest)
		return
	}
	s.UpdateAlternativeOrigins(string(body))
	klog.Infof("Updated alternative origins: %v", origins.AlternativeOrigins)
	w.WriteHeader(http.StatusNoContent)
}
