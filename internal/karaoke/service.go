package karaoke

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	colAccounts = "accounts"
	colSessions = "sessions"
)

// Service implements the session and queue orchestration core. Every
// operation resolves the caller's account fresh and checks authorization
// before touching the session document.
type Service struct {
	store  Store
	events *Publisher
	log    zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store Store, events *Publisher, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// resolveAccount loads the caller's account record. A missing record means
// the identity is not registered, which is an authentication failure, not a
// permission one.
func (s *Service) resolveAccount(ctx context.Context, identityID string) (*Account, error) {
	if identityID == "" {
		return nil, unauthenticated("caller is not authenticated")
	}
	var a Account
	err := s.store.GetDoc(ctx, colAccounts, identityID, &a)
	if errors.Is(err, ErrDocNotFound) {
		return nil, unauthenticated("no account for this identity")
	}
	if err != nil {
		return nil, internal("loading account", err)
	}
	return &a, nil
}

func (s *Service) getSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	err := s.store.GetDoc(ctx, colSessions, sessionID, &sess)
	if errors.Is(err, ErrDocNotFound) {
		return nil, notFound("session not found")
	}
	if err != nil {
		return nil, internal("loading session", err)
	}
	return &sess, nil
}

// requireMutable loads the session and verifies the caller may mutate it.
func (s *Service) requireMutable(ctx context.Context, identityID, sessionID string) (*Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	acct, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !CanMutateSession(identityID, acct, sess) {
		return nil, denied("cannot modify this session")
	}
	return sess, nil
}

// hasQuota counts the identity's currently active sessions against its
// quota. Advisory only: two near-simultaneous creates can both pass before
// either commits (read-then-write, no serialization).
func (s *Service) hasQuota(ctx context.Context, acct *Account) (bool, error) {
	if IsOperator(acct) {
		return true, nil
	}
	docs, err := s.store.QueryEquals(ctx, colSessions, "ownerId", acct.ID)
	if err != nil {
		return false, internal("counting sessions", err)
	}
	active := 0
	for _, raw := range docs {
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			continue
		}
		if sess.Status == StatusActive {
			active++
		}
	}
	return active < sessionQuota(acct), nil
}

// CreateAccountInput carries the fields an operator provides when
// registering a new account.
type CreateAccountInput struct {
	AccountID   string
	Email       string
	Role        Role
	DisplayName string
	MaxSessions int
	ExpiresAt   *time.Time
}

// CreateAccount registers a new account. Operator only.
func (s *Service) CreateAccount(ctx context.Context, identityID string, in CreateAccountInput) (*Account, error) {
	requester, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !IsOperator(requester) {
		return nil, denied("only operators can create accounts")
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return nil, invalidArgument("email is required")
	}
	if !in.Role.Valid() {
		return nil, invalidArgument(`role must be "Member" or "Operator"`)
	}

	a := Account{
		ID:          in.AccountID,
		Email:       in.Email,
		Role:        in.Role,
		DisplayName: strings.TrimSpace(in.DisplayName),
		MaxSessions: in.MaxSessions,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   s.now(),
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	if a.MaxSessions <= 0 {
		a.MaxSessions = defaultMaxSessions
	}

	if err := s.store.SetDoc(ctx, colAccounts, a.ID, &a); err != nil {
		return nil, internal("saving account", err)
	}
	return &a, nil
}

// accountUpdateFields is the whitelist of fields an operator may patch.
var accountUpdateFields = map[string]bool{
	"email":       true,
	"displayName": true,
	"role":        true,
	"maxSessions": true,
	"expiresAt":   true,
}

// UpdateAccount patches an existing account. Operator only.
func (s *Service) UpdateAccount(ctx context.Context, identityID, accountID string, updates map[string]any) error {
	requester, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return err
	}
	if !IsOperator(requester) {
		return denied("only operators can update accounts")
	}
	if accountID == "" {
		return invalidArgument("accountId is required")
	}
	if len(updates) == 0 {
		return invalidArgument("updates must not be empty")
	}
	for field, v := range updates {
		if !accountUpdateFields[field] {
			return invalidArgument("unknown account field: " + field)
		}
		if field == "role" {
			role, ok := v.(string)
			if !ok || !Role(role).Valid() {
				return invalidArgument(`role must be "Member" or "Operator"`)
			}
		}
	}

	err = s.store.UpdateDoc(ctx, colAccounts, accountID, updates)
	if errors.Is(err, ErrDocNotFound) {
		return notFound("account not found")
	}
	if err != nil {
		return internal("updating account", err)
	}
	return nil
}

// CreateSession opens a new active session owned by the caller. The caller's
// account must be live and under its concurrent-session quota.
func (s *Service) CreateSession(ctx context.Context, identityID, name string) (*Session, error) {
	acct, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !AccountLive(acct, s.now()) {
		return nil, denied("account is expired")
	}
	ok, err := s.hasQuota(ctx, acct)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, exhausted("session limit reached")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidArgument("sessionName is required")
	}

	now := s.now()
	sess := Session{
		ID:              s.newID(),
		OwnerID:         identityID,
		Name:            name,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		Queue:           []QueueItem{},
		AutoPlay:        false,
		InterSongDelay:  defaultInterSongDelay,
		RequestsEnabled: true,
		History:         []HistoryItem{},
	}
	if err := s.store.SetDoc(ctx, colSessions, sess.ID, &sess); err != nil {
		return nil, internal("saving session", err)
	}

	s.publish(ctx, "session.created", map[string]any{"sessionId": sess.ID, "ownerId": sess.OwnerID})
	return &sess, nil
}

// GetSession returns the session document. Reads are open to any
// authenticated account so displays and guests can render state.
func (s *Service) GetSession(ctx context.Context, identityID, sessionID string) (*Session, error) {
	if _, err := s.resolveAccount(ctx, identityID); err != nil {
		return nil, err
	}
	return s.getSession(ctx, sessionID)
}

// EndSession moves the session to its terminal state. Ending an already
// ended session is an idempotent success; updatedAt is bumped either way.
func (s *Service) EndSession(ctx context.Context, identityID, sessionID string) error {
	if _, err := s.requireMutable(ctx, identityID, sessionID); err != nil {
		return err
	}
	err := s.store.UpdateDoc(ctx, colSessions, sessionID, map[string]any{
		"status":    StatusEnded,
		"updatedAt": s.now(),
	})
	if err != nil {
		return internal("ending session", err)
	}
	s.publish(ctx, "session.ended", map[string]any{"sessionId": sessionID})
	return nil
}

// EnqueueInput carries one song request.
type EnqueueInput struct {
	Title           string
	SourceURL       string
	ThumbnailURL    string
	DurationSeconds int
	Priority        int
}

// Enqueue appends a song to the end of the session queue. FIFO within equal
// priority: priority is stored but never used to reorder.
func (s *Service) Enqueue(ctx context.Context, identityID, sessionID string, in EnqueueInput) (*QueueItem, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.SourceURL) == "" {
		return nil, invalidArgument("title and sourceUrl are required")
	}

	sess, err := s.requireMutable(ctx, identityID, sessionID)
	if err != nil {
		return nil, err
	}

	if in.DurationSeconds < 0 {
		in.DurationSeconds = 0
	}
	if in.Priority < 0 {
		in.Priority = 0
	}
	item := QueueItem{
		ID:              s.newID(),
		Title:           strings.TrimSpace(in.Title),
		SourceURL:       strings.TrimSpace(in.SourceURL),
		ThumbnailURL:    in.ThumbnailURL,
		DurationSeconds: in.DurationSeconds,
		RequestedBy:     identityID,
		AddedAt:         s.now(),
		Priority:        in.Priority,
	}

	// Prefer a single-statement append: two concurrent enqueues through
	// read-modify-write would drop one of the requests.
	if appender, ok := s.store.(ArrayAppender); ok {
		if err := appender.AppendToArray(ctx, colSessions, sessionID, "queue", item); err != nil {
			return nil, internal("appending to queue", err)
		}
		if err := s.store.UpdateDoc(ctx, colSessions, sessionID, map[string]any{"updatedAt": s.now()}); err != nil {
			return nil, internal("stamping session", err)
		}
	} else {
		queue := append(sess.Queue, item)
		err := s.store.UpdateDoc(ctx, colSessions, sessionID, map[string]any{
			"queue":     queue,
			"updatedAt": s.now(),
		})
		if err != nil {
			return nil, internal("writing queue", err)
		}
	}

	s.publish(ctx, "queue.added", map[string]any{"sessionId": sessionID, "item": item})
	return &item, nil
}

// Dequeue removes the queue item with the given id. Removing an id that is
// not in the queue is a no-op success (filter semantics).
func (s *Service) Dequeue(ctx context.Context, identityID, sessionID, itemID string) error {
	sess, err := s.requireMutable(ctx, identityID, sessionID)
	if err != nil {
		return err
	}

	queue := make([]QueueItem, 0, len(sess.Queue))
	for _, item := range sess.Queue {
		if item.ID != itemID {
			queue = append(queue, item)
		}
	}

	err = s.store.UpdateDoc(ctx, colSessions, sessionID, map[string]any{
		"queue":     queue,
		"updatedAt": s.now(),
	})
	if err != nil {
		return internal("writing queue", err)
	}

	s.publish(ctx, "queue.removed", map[string]any{"sessionId": sessionID, "queueItemId": itemID})
	return nil
}

// ToggleRequests enables or disables guest song requests for the session.
func (s *Service) ToggleRequests(ctx context.Context, identityID, sessionID string, enabled bool) error {
	if _, err := s.requireMutable(ctx, identityID, sessionID); err != nil {
		return err
	}
	err := s.store.UpdateDoc(ctx, colSessions, sessionID, map[string]any{
		"requestsEnabled": enabled,
		"updatedAt":       s.now(),
	})
	if err != nil {
		return internal("toggling requests", err)
	}
	s.publish(ctx, "session.requests", map[string]any{"sessionId": sessionID, "enabled": enabled})
	return nil
}

// SettingsInput is a partial update; nil fields are left unchanged.
type SettingsInput struct {
	AutoPlay       *bool
	InterSongDelay *int
}

// UpdateSettings applies a partial settings update. The inter-song delay is
// clamped into [0,8] before storage.
func (s *Service) UpdateSettings(ctx context.Context, identityID, sessionID string, in SettingsInput) error {
	if _, err := s.requireMutable(ctx, identityID, sessionID); err != nil {
		return err
	}

	updates := map[string]any{"updatedAt": s.now()}
	if in.AutoPlay != nil {
		updates["autoPlay"] = *in.AutoPlay
	}
	if in.InterSongDelay != nil {
		updates["interSongDelaySeconds"] = clampInterSongDelay(*in.InterSongDelay)
	}

	if err := s.store.UpdateDoc(ctx, colSessions, sessionID, updates); err != nil {
		return internal("updating settings", err)
	}
	s.publish(ctx, "session.settings", map[string]any{"sessionId": sessionID})
	return nil
}

// ServiceMetrics is the operator-facing summary of registry state.
type ServiceMetrics struct {
	TotalAccounts   int `json:"totalAccounts"`
	OperatorCount   int `json:"operatorCount"`
	ExpiredAccounts int `json:"expiredAccounts"`
	ActiveSessions  int `json:"activeSessions"`
}

// Metrics summarizes accounts and sessions. Operator only.
func (s *Service) Metrics(ctx context.Context, identityID string) (*ServiceMetrics, error) {
	requester, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !IsOperator(requester) {
		return nil, denied("only operators can view metrics")
	}

	accounts, err := s.store.ListDocs(ctx, colAccounts)
	if err != nil {
		return nil, internal("listing accounts", err)
	}
	sessions, err := s.store.ListDocs(ctx, colSessions)
	if err != nil {
		return nil, internal("listing sessions", err)
	}

	now := s.now()
	m := &ServiceMetrics{TotalAccounts: len(accounts)}
	for _, raw := range accounts {
		var a Account
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		if IsOperator(&a) {
			m.OperatorCount++
		} else if a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			m.ExpiredAccounts++
		}
	}
	for _, raw := range sessions {
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			continue
		}
		if sess.Status == StatusActive {
			m.ActiveSessions++
		}
	}
	return m, nil
}

// RequireOperator resolves the caller and rejects non-operators. Used by
// admin-only surfaces outside the core operations.
func (s *Service) RequireOperator(ctx context.Context, identityID string) error {
	requester, err := s.resolveAccount(ctx, identityID)
	if err != nil {
		return err
	}
	if !IsOperator(requester) {
		return denied("operator role required")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, eventType, payload)
}
