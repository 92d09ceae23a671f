package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/loop-dev/loop-battle/internal/battle"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RespondError writes a standardized error response to the HTTP response writer
func RespondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondValidationError writes a validation error response with field information
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	write(w, http.StatusBadRequest, ErrorResponse{Error: code, Message: message, Field: field})
}

// RespondErrorWithDetails writes an error response with additional details
func RespondErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	write(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// RespondInternalError writes an internal server error response
func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// RespondUnauthorized writes an unauthorized error response
func RespondUnauthorized(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusUnauthorized, code, message)
}

// RespondBadRequest writes a bad request error response
func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}

// RespondServiceUnavailable writes a service unavailable error response
func RespondServiceUnavailable(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusServiceUnavailable, code, message)
}

// StatusOf maps a domain error kind to its HTTP status and stable code.
// Unknown errors map to 500.
func StatusOf(err error) (int, string) {
	switch battle.KindOf(err) {
	case battle.KindValidation:
		return http.StatusBadRequest, ErrCodeValidationFailed
	case battle.KindUnauthenticated:
		return http.StatusUnauthorized, ErrCodeAuthenticationRequired
	case battle.KindAccessDenied:
		return http.StatusForbidden, ErrCodeAccessDenied
	case battle.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case battle.KindInvalidState:
		return http.StatusConflict, ErrCodeInvalidState
	case battle.KindAlreadyFinalized:
		return http.StatusConflict, ErrCodeAlreadyFinalized
	case battle.KindAlreadyComplete:
		return http.StatusConflict, ErrCodeAlreadyComplete
	case battle.KindRoomFull:
		return http.StatusConflict, ErrCodeRoomFull
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// RespondDomainError writes the response for an error returned by the battle
// services. It reports whether the error was unexpected so callers can log it.
func RespondDomainError(w http.ResponseWriter, err error) (unexpected bool) {
	status, code := StatusOf(err)
	if status == http.StatusInternalServerError {
		RespondInternalError(w, "internal server error")
		return true
	}

	var de *battle.Error
	if stderrors.As(err, &de) {
		write(w, status, ErrorResponse{Error: code, Message: de.Message, Field: de.Field})
		return false
	}
	RespondError(w, status, code, err.Error())
	return false
}
