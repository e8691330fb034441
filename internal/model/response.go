package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type ChallengeResponse struct {
	ChallengeID  string `json:"challenge_id"`
	CaptchaImage string `json:"captcha_image"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LoginFailureResponse struct {
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	LockedUntil       string `json:"locked_until,omitempty"`
}

type ChangePasswordResponse struct {
	RequiresReauth bool `json:"requires_reauth"`
}
