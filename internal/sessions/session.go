package sessions

import "time"

// Session is the persisted authentication context for the remote glucose service.
// Field names match the authData record the browser page used to keep.
type Session struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	AccountID   string `json:"accountId"`
	IssuedAtMs  int64  `json:"issuedAt"`
	DurationMs  int64  `json:"duration"`
	ExpiresAtMs int64  `json:"expirationTime,omitempty"`
}

// Backfill sets ExpiresAtMs from IssuedAtMs+DurationMs when it is unset.
// It reports whether the session changed.
func (s *Session) Backfill() bool {
	if s.ExpiresAtMs != 0 {
		return false
	}
	s.ExpiresAtMs = s.IssuedAtMs + s.DurationMs
	return true
}

// ExpiresAt returns the expiry instant, or the zero time if it was never computed.
func (s *Session) ExpiresAt() time.Time {
	if s.ExpiresAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.ExpiresAtMs)
}

func (s *Session) wellFormed() bool {
	return s.Token != "" && s.UserID != ""
}

// IsValid reports now < expiresAt. A session without an expiry is not valid.
func IsValid(s *Session, now time.Time) bool {
	if s == nil || s.ExpiresAtMs == 0 {
		return false
	}
	return now.UnixMilli() < s.ExpiresAtMs
}

// Verdict is the outcome of gating an entry point on the stored session.
type Verdict string

const (
	Authenticated   Verdict = "authenticated"
	Unauthenticated Verdict = "unauthenticated"
	Expired         Verdict = "expired"
)
