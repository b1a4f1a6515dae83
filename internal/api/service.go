// Package api implements the backend HTTP endpoints: the stored-value
// reads and writes that go through the backend's own signing key, and the
// local file upload stub.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"metasnap.app/msc/internal/logger"
)

// ValueStore is the slice of the storage contract the backend exposes.
type ValueStore interface {
	Value(ctx context.Context) (uint64, error)
	SetValue(ctx context.Context, value uint64) error
}

// Service handles API requests
type Service struct {
	storage   ValueStore
	logger    *logger.Logger
	uploadDir string
}

// NewService creates a new API service
func NewService(storage ValueStore, logger *logger.Logger, uploadDir string) *Service {
	return &Service{
		storage:   storage,
		logger:    logger,
		uploadDir: uploadDir,
	}
}

// Register wires the service's routes into mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /value", s.HandleGetValue)
	mux.HandleFunc("POST /value", s.HandleSetValue)
	mux.HandleFunc("POST /upload", s.HandleUpload)
}

// CORS wraps a handler with permissive cross-origin headers so browser
// clients on another origin can call the backend.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
