// Package server exposes the memo cache and the LLM service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/krisalay/ttl-cache/api"
	"github.com/krisalay/ttl-cache/internal/observability"
	"github.com/krisalay/ttl-cache/llm"
)

// Cache is what the admin endpoints need from the memo cache.
type Cache interface {
	api.Cache[llm.Completion]
	api.Inspector
}

// Publisher broadcasts a key deletion to other instances.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// Server holds all dependencies for HTTP handlers.
type Server struct {
	Cache       Cache
	LLM         *llm.Service
	Invalidator Publisher    // optional
	Metrics     http.Handler // optional
	Logger      *slog.Logger
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse describes the memo cache.
type StatsResponse struct {
	Size              int     `json:"size"`
	MaxSize           int     `json:"max_size"`
	DefaultTTL        string  `json:"default_ttl"`
	DefaultTTLSeconds float64 `json:"default_ttl_seconds"`
}

// CompleteResponse is the answer to POST /api/complete.
type CompleteResponse struct {
	Key        string         `json:"key"`
	Completion llm.Completion `json:"completion"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ttl := s.Cache.DefaultTTL()
	respondWithJSON(w, http.StatusOK, StatsResponse{
		Size:              s.Cache.Size(),
		MaxSize:           s.Cache.MaxSize(),
		DefaultTTL:        ttl.String(),
		DefaultTTLSeconds: ttl.Seconds(),
	})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{"keys": s.Cache.Keys()})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	c, ok := s.Cache.Get(key)
	if !ok {
		respondWithError(w, http.StatusNotFound, "key not found")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if s.LLM != nil {
		if err := s.LLM.Forget(r.Context(), key); err != nil {
			// The local copy is already gone; the shared store will expire it.
			s.Logger.Warn("failed to delete from shared store", "key", key, "error", err)
		}
	} else {
		s.Cache.Delete(key)
	}

	if s.Invalidator != nil {
		if err := s.Invalidator.Publish(r.Context(), key); err != nil {
			s.Logger.Warn("failed to publish invalidation", "key", key, "error", err)
		}
	}

	s.Logger.Info("cache entry deleted", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.Cache.Clear()
	s.Logger.Info("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if s.LLM == nil {
		respondWithError(w, http.StatusServiceUnavailable, "llm service not configured")
		return
	}

	var req llm.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		respondWithError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	ctx, span := observability.StartServerSpan(r.Context(), "http.complete",
		observability.AttrRequestID.String(RequestIDFromContext(r.Context())),
	)
	defer span.End()

	c, err := s.LLM.Complete(ctx, req)
	if err != nil {
		observability.SetSpanError(span, err)
		var apiErr *llm.APIError
		switch {
		case errors.As(err, &apiErr), errors.Is(err, llm.ErrNoChoices):
			s.Logger.Warn("provider rejected completion", "error", err)
			respondWithError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respondWithError(w, http.StatusGatewayTimeout, "completion timed out")
		default:
			s.Logger.Error("completion failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "completion failed")
		}
		return
	}

	observability.SetSpanOK(span)
	respondWithJSON(w, http.StatusOK, CompleteResponse{Key: s.LLM.KeyFor(req), Completion: c})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}
