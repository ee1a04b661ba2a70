package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeBusy             = "BUSY"
	ErrCodeNoPendingChanges = "NO_PENDING_CHANGES"
	ErrCodeUnknownProvider  = "UNKNOWN_PROVIDER"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
