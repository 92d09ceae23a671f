package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"

	// Resource errors
	ErrCodeNotFound = "not_found"
	ErrCodeConflict = "conflict"

	// Room/Match errors
	ErrCodeAccessDenied     = "access_denied"
	ErrCodeInvalidState     = "invalid_state"
	ErrCodeRoomFull         = "room_full"
	ErrCodeAlreadyFinalized = "already_finalized"
	ErrCodeAlreadyComplete  = "already_complete"
	ErrCodeNotParticipant   = "not_participant"

	// Rate limiting
	ErrCodeTooManyRequests = "too_many_requests"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
