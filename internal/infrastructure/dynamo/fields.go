package dynamo

// Attribute names referenced in key maps and expressions.
const (
	attrEmail     = "email"
	attrOTPID     = "otp_id"
	attrSessionID = "session_id"
	attrVerified  = "verified"
	attrUpdatedAt = "updated_at"
	attrRevokedAt = "revoked_at"
	attrExpiresAt = "expires_at"
)
