package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"karaoke-service/internal/cache"
)

type Provider interface {
	SearchVideos(ctx context.Context, query string, limit int) ([]VideoResult, error)
}

type Server struct {
	provider Provider
	cache    *cache.Cache
	log      zerolog.Logger
}

func NewServer(p Provider, c *cache.Cache, log zerolog.Logger) *Server {
	return &Server{provider: p, cache: c, log: log}
}

// HandleSearch serves video search results, preferring the hit-counting
// cache over a provider round-trip.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("query"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 25 {
			limit = v
		}
	}

	if s.cache != nil {
		if payload, ok := s.cache.Get(r.Context(), q); ok {
			var items []VideoResult
			if err := json.Unmarshal(payload, &items); err == nil {
				writeJSON(w, http.StatusOK, SearchResponse{Items: items})
				return
			}
		}
	}

	items, err := s.provider.SearchVideos(r.Context(), q, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("query", q).Msg("provider search")
		writeError(w, http.StatusBadGateway, "failed to query provider")
		return
	}

	if s.cache != nil {
		if payload, err := json.Marshal(items); err == nil {
			s.cache.Put(r.Context(), q, payload)
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Items: items})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
