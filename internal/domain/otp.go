package domain

import "time"

// OTPCode is a pending one-time passcode for an email address.
// ID is a ULID, so ordering by ID within an email is insertion order.
// ExpiresAt doubles as the DynamoDB TTL attribute (Unix seconds there).
type OTPCode struct {
	ID        string    `json:"id" dynamodbav:"otp_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"-" dynamodbav:"code"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"-"`
}

// Expired reports whether now is strictly past the expiry timestamp.
func (o *OTPCode) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
