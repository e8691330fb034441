package model

import "time"

// RefreshTokenRecord is the persisted side of a refresh token. Only the
// sha256 of the bearer token is stored; the token itself never touches
// the database, so a dumped table cannot replay sessions.
type RefreshTokenRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"-"`
	UserAgent  string     `json:"user_agent"`
	IPAddress  string     `json:"ip_address"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Login attempt failure reasons recorded for the audit subsystem.
const (
	AttemptReasonCaptchaFailed   = "CAPTCHA_FAILED"
	AttemptReasonUserNotFound    = "USER_NOT_FOUND"
	AttemptReasonUserInactive    = "USER_INACTIVE"
	AttemptReasonAccountLocked   = "ACCOUNT_LOCKED"
	AttemptReasonInvalidPassword = "INVALID_PASSWORD"
)

// LoginAttempt is an append-only audit fact. This core only writes them;
// reading belongs to the audit subsystem.
type LoginAttempt struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	Success       bool      `json:"success"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}
