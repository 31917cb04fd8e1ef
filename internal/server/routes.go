package server

import (
	"github.com/gorilla/mux"
)

// SetupRoutes registers all HTTP routes on the given router.
func (s *Server) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cache/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/cache/keys", s.handleKeys).Methods("GET")
	api.HandleFunc("/cache/{key}", s.handleGetEntry).Methods("GET")
	api.HandleFunc("/cache/{key}", s.handleDeleteEntry).Methods("DELETE")
	api.HandleFunc("/cache", s.handleClear).Methods("DELETE")
	api.HandleFunc("/complete", s.handleComplete).Methods("POST")
}
