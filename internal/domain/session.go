package domain

import "time"

// Session is the server-side record behind a signed session token.
type Session struct {
	SessionID string     `json:"id" dynamodbav:"session_id"`
	Email     string     `json:"email" dynamodbav:"email"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" dynamodbav:"-"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" dynamodbav:"revoked_at,omitempty"`
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
