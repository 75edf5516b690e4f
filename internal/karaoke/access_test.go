package karaoke

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		a    *Account
		want bool
	}{
		{"nil account", nil, false},
		{"member no expiration", &Account{Role: RoleMember}, true},
		{"member future expiration", &Account{Role: RoleMember, ExpiresAt: &future}, true},
		{"member past expiration", &Account{Role: RoleMember, ExpiresAt: &past}, false},
		{"member expires exactly now", &Account{Role: RoleMember, ExpiresAt: &now}, false},
		{"operator past expiration", &Account{Role: RoleOperator, ExpiresAt: &past}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccountLive(tt.a, now))
		})
	}
}

func TestCanMutateSession(t *testing.T) {
	sess := &Session{ID: "s1", OwnerID: "dj"}
	member := &Account{ID: "guest", Role: RoleMember}
	operator := &Account{ID: "op", Role: RoleOperator}

	assert.True(t, CanMutateSession("dj", &Account{ID: "dj", Role: RoleMember}, sess))
	assert.True(t, CanMutateSession("op", operator, sess))
	assert.False(t, CanMutateSession("guest", member, sess))
	assert.False(t, CanMutateSession("", member, &Session{OwnerID: ""}))
	assert.False(t, CanMutateSession("dj", member, nil))
}

func TestSessionQuota(t *testing.T) {
	assert.Equal(t, defaultMaxSessions, sessionQuota(nil))
	assert.Equal(t, defaultMaxSessions, sessionQuota(&Account{}))
	assert.Equal(t, defaultMaxSessions, sessionQuota(&Account{MaxSessions: -2}))
	assert.Equal(t, 4, sessionQuota(&Account{MaxSessions: 4}))
}

func TestClampInterSongDelay(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-1, 0},
		{0, 0},
		{3, 3},
		{8, 8},
		{9, 8},
		{100, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampInterSongDelay(tt.in), "input %d", tt.in)
	}
}
