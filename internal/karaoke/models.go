package karaoke

import (
	"time"
)

type Role string

const (
	RoleMember   Role = "Member"
	RoleOperator Role = "Operator"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleOperator
}

type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
)

// Account is the registry record for a registered identity. Operators are
// exempt from expiration and session quota checks.
type Account struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	DisplayName string     `json:"displayName,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	MaxSessions int        `json:"maxSessions,omitempty"` // 0 means the default of 1
	CreatedAt   time.Time  `json:"createdAt"`
}

// Session is a single karaoke event. The queue and history are embedded in
// the session document; queue order is insertion order.
type Session struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"ownerId"`
	Name            string        `json:"name"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Queue           []QueueItem   `json:"queue"`
	CurrentSong     *QueueItem    `json:"currentSong,omitempty"`
	AutoPlay        bool          `json:"autoPlay"`
	InterSongDelay  int           `json:"interSongDelaySeconds"`
	RequestsEnabled bool          `json:"requestsEnabled"`
	History         []HistoryItem `json:"history"`
}

// QueueItem is one pending song request. Priority is an advisory ranking
// hint for the playback driver; the queue itself is never reordered by it.
type QueueItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"sourceUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	RequestedBy     string    `json:"requestedBy,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
	Priority        int       `json:"priority"`
}

// HistoryItem is an append-only record of a past play, written when a song
// leaves currentSong.
type HistoryItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"sourceUrl"`
	PlayedAt        time.Time `json:"playedAt"`
	DurationSeconds int       `json:"durationSeconds"`
}

const (
	minInterSongDelay     = 0
	maxInterSongDelay     = 8
	defaultInterSongDelay = 3
	defaultMaxSessions    = 1
)

// clampInterSongDelay forces the delay into [0,8] regardless of input.
func clampInterSongDelay(v int) int {
	if v < minInterSongDelay {
		return minInterSongDelay
	}
	if v > maxInterSongDelay {
		return maxInterSongDelay
	}
	return v
}
