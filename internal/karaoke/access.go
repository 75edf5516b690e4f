package karaoke

import (
	"time"
)

// Authorization predicates. All privilege escalation goes through IsOperator;
// new roles must not silently pass any of these checks. Predicates are
// evaluated fresh on every call — account state is never cached.

func IsOperator(a *Account) bool {
	return a != nil && a.Role == RoleOperator
}

// AccountLive reports whether the account may act at the given instant.
// Operators never expire; an unset expiration means the account never expires.
func AccountLive(a *Account, now time.Time) bool {
	if a == nil {
		return false
	}
	if IsOperator(a) {
		return true
	}
	if a.ExpiresAt == nil {
		return true
	}
	return a.ExpiresAt.After(now)
}

// CanMutateSession reports whether the identity may mutate the session:
// the session owner, or any operator.
func CanMutateSession(identityID string, a *Account, s *Session) bool {
	if s == nil {
		return false
	}
	if identityID != "" && identityID == s.OwnerID {
		return true
	}
	return IsOperator(a)
}

// sessionQuota is the number of concurrent active sessions the account may
// own. Only meaningful for non-operators.
func sessionQuota(a *Account) int {
	if a == nil || a.MaxSessions <= 0 {
		return defaultMaxSessions
	}
	return a.MaxSessions
}
