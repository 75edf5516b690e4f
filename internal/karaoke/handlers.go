package karaoke

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"karaoke-service/internal/cache"
	"karaoke-service/internal/metrics"
)

// CacheStats is the read side of the search cache exposed to operators.
type CacheStats interface {
	Stats(ctx context.Context) (*cache.Stats, error)
}

type Server struct {
	svc     *Service
	metrics *metrics.Collector
	cache   CacheStats
	log     zerolog.Logger
}

func NewServer(svc *Service, collector *metrics.Collector, cacheStats CacheStats, log zerolog.Logger) *Server {
	return &Server{svc: svc, metrics: collector, cache: cacheStats, log: log}
}

// Router mounts the callable operations. Everything except health requires an
// authenticated identity.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}

		r.Post("/v1/accounts", s.handleCreateAccount)
		r.Patch("/v1/accounts/{id}", s.handleUpdateAccount)

		r.Post("/v1/sessions", s.handleCreateSession)
		r.Get("/v1/sessions/{id}", s.handleGetSession)
		r.Post("/v1/sessions/{id}/end", s.handleEndSession)

		r.Post("/v1/sessions/{id}/queue", s.handleEnqueue)
		r.Delete("/v1/sessions/{id}/queue/{itemId}", s.handleDequeue)

		r.Post("/v1/sessions/{id}/requests", s.handleToggleRequests)
		r.Patch("/v1/sessions/{id}/settings", s.handleUpdateSettings)

		r.Get("/v1/admin/metrics", s.handleAdminMetrics)
		r.Get("/v1/admin/cache", s.handleCacheStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "karaoke-service",
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "CreateAccount"
	identity, _ := IdentityFromContext(r.Context())

	var body struct {
		AccountID   string     `json:"accountId"`
		Email       string     `json:"email"`
		Role        string     `json:"role"`
		DisplayName string     `json:"displayName"`
		MaxSessions int        `json:"maxConcurrentSessions"`
		ExpiresAt   *time.Time `json:"expirationInstant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, op, invalidArgument("invalid JSON body"))
		return
	}

	a, err := s.svc.CreateAccount(r.Context(), identity, CreateAccountInput{
		AccountID:   body.AccountID,
		Email:       body.Email,
		Role:        Role(body.Role),
		DisplayName: body.DisplayName,
		MaxSessions: body.MaxSessions,
		ExpiresAt:   body.ExpiresAt,
	})
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"accountId": a.ID,
	})
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "UpdateAccount"
	identity, _ := IdentityFromContext(r.Context())
	accountID := chi.URLParam(r, "id")

	var body struct {
		Updates map[string]any `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, op, invalidArgument("invalid JSON body"))
		return
	}

	if err := s.svc.UpdateAccount(r.Context(), identity, accountID, body.Updates); err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	const op = "CreateSession"
	identity, _ := IdentityFromContext(r.Context())

	var body struct {
		SessionName string `json:"sessionName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, op, invalidArgument("invalid JSON body"))
		return
	}

	sess, err := s.svc.CreateSession(r.Context(), identity, body.SessionName)
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"sessionId": sess.ID,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	const op = "GetSession"
	identity, _ := IdentityFromContext(r.Context())

	sess, err := s.svc.GetSession(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	const op = "EndSession"
	identity, _ := IdentityFromContext(r.Context())

	if err := s.svc.EndSession(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	const op = "Enqueue"
	identity, _ := IdentityFromContext(r.Context())

	var body struct {
		Title           string `json:"title"`
		SourceURL       string `json:"sourceUrl"`
		ThumbnailURL    string `json:"thumbnailUrl"`
		DurationSeconds int    `json:"durationSeconds"`
		Priority        int    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, op, invalidArgument("invalid JSON body"))
		return
	}

	item, err := s.svc.Enqueue(r.Context(), identity, chi.URLParam(r, "id"), EnqueueInput{
		Title:           body.Title,
		SourceURL:       body.SourceURL,
		ThumbnailURL:    body.ThumbnailURL,
		DurationSeconds: body.DurationSeconds,
		Priority:        body.Priority,
	})
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"queueItemId": item.ID,
	})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	const op = "Dequeue"
	identity, _ := IdentityFromContext(r.Context())

	err := s.svc.Dequeue(r.Context(), identity, chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleToggleRequests(w http.ResponseWriter, r *http.Request) {
	const op = "ToggleRequests"
	identity, _ := IdentityFromContext(r.Context())

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		s.fail(w, op, invalidArgument("enabled is required"))
		return
	}

	if err := s.svc.ToggleRequests(r.Context(), identity, chi.URLParam(r, "id"), *body.Enabled); err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "UpdateSessionSettings"
	identity, _ := IdentityFromContext(r.Context())

	var body struct {
		AutoPlay       *bool `json:"autoPlay"`
		InterSongDelay *int  `json:"interSongDelaySeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, op, invalidArgument("invalid JSON body"))
		return
	}

	err := s.svc.UpdateSettings(r.Context(), identity, chi.URLParam(r, "id"), SettingsInput{
		AutoPlay:       body.AutoPlay,
		InterSongDelay: body.InterSongDelay,
	})
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "AdminMetrics"
	identity, _ := IdentityFromContext(r.Context())

	m, err := s.svc.Metrics(r.Context(), identity)
	if err != nil {
		s.fail(w, op, err)
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	const op = "CacheStats"
	identity, _ := IdentityFromContext(r.Context())

	if err := s.svc.RequireOperator(r.Context(), identity); err != nil {
		s.fail(w, op, err)
		return
	}

	if s.cache == nil {
		writeJSON(w, http.StatusOK, &cache.Stats{})
		return
	}
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.fail(w, op, internal("reading cache stats", err))
		return
	}

	s.record(op)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) record(op string) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		s.log.Error().Err(err).Str("op", op).Msg("operation failed")
	}
	if s.metrics != nil {
		s.metrics.RecordOperationError(op, string(kind))
	}
	writeErrorKind(w, kind, MessageOf(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorKind(w http.ResponseWriter, kind Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"kind":    string(kind),
		"error":   msg,
	})
}
