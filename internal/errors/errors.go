package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a TweetSift error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotAuthenticated    ErrorCode = "NOT_AUTHENTICATED"     // 401
	ErrSessionExpired      ErrorCode = "SESSION_EXPIRED"       // 401
	ErrDisabled            ErrorCode = "DISABLED"              // 403
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrDuplicate           ErrorCode = "DUPLICATE"             // 409
	ErrAlreadyRunning      ErrorCode = "ALREADY_RUNNING"       // 409
	ErrMissingOperationID  ErrorCode = "MISSING_OPERATION_ID"  // 412
	ErrMissingCapability   ErrorCode = "MISSING_CAPABILITY"    // 412
	ErrOperationRejected   ErrorCode = "OPERATION_REJECTED"    // 422
	ErrRateLimited         ErrorCode = "RATE_LIMITED"          // 429
	ErrInternal            ErrorCode = "INTERNAL"              // 500
	ErrRemoteError         ErrorCode = "REMOTE_ERROR"          // 502
	ErrMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"    // 502
	ErrContextLost         ErrorCode = "CONTEXT_LOST"          // 503
	ErrNativeActionTimeout ErrorCode = "NATIVE_ACTION_TIMEOUT" // 504
)

// SiftError represents a structured error with code, status, and details.
type SiftError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SiftError {
	return &SiftError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotAuthenticated creates a 401 error when no session credentials are available.
func NewNotAuthenticated() *SiftError {
	return &SiftError{
		Code:    ErrNotAuthenticated,
		Status:  401,
		Message: "not logged in: session cookies not found",
	}
}

// NewSessionExpired creates a 401 error when the remote rejects the session.
func NewSessionExpired(op string) *SiftError {
	return &SiftError{
		Code:    ErrSessionExpired,
		Status:  401,
		Message: "session expired, log in again",
		Details: map[string]any{"operation": op},
	}
}

// NewDisabled creates a 403 error when archiving is switched off.
func NewDisabled() *SiftError {
	return &SiftError{
		Code:    ErrDisabled,
		Status:  403,
		Message: "archiving is disabled",
	}
}

// NewNotFound creates a 404 error.
func NewNotFound(what string) *SiftError {
	return &SiftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewDuplicate creates a 409 error for a post that is already archived.
func NewDuplicate(tweetID string) *SiftError {
	return &SiftError{
		Code:    ErrDuplicate,
		Status:  409,
		Message: "already archived",
		Details: map[string]any{"tweet_id": tweetID},
	}
}

// NewAlreadyRunning creates a 409 error when an export job occupies the slot.
func NewAlreadyRunning() *SiftError {
	return &SiftError{
		Code:    ErrAlreadyRunning,
		Status:  409,
		Message: "an export is already running",
	}
}

// NewMissingOperationID creates a 412 error when no operation id has been captured.
func NewMissingOperationID(op string) *SiftError {
	return &SiftError{
		Code:    ErrMissingOperationID,
		Status:  412,
		Message: fmt.Sprintf("operation id for %s not captured yet", op),
		Details: map[string]any{"operation": op},
	}
}

// NewMissingCapability creates a 412 error listing the operations still to be captured.
func NewMissingCapability(ops []string) *SiftError {
	return &SiftError{
		Code:    ErrMissingCapability,
		Status:  412,
		Message: fmt.Sprintf("bookmark a post into a folder manually once first; missing %v", ops),
		Details: map[string]any{"operations": ops},
	}
}

// NewOperationRejected creates a 422 error when the remote refuses a known operation id.
func NewOperationRejected(op string, status int) *SiftError {
	return &SiftError{
		Code:    ErrOperationRejected,
		Status:  422,
		Message: fmt.Sprintf("%s rejected with HTTP %d; operation id invalidated", op, status),
		Details: map[string]any{"operation": op, "http_status": status},
	}
}

// NewRateLimited creates a 429 error carrying the suggested wait.
func NewRateLimited(op string, wait time.Duration) *SiftError {
	secs := int(wait.Round(time.Second) / time.Second)
	return &SiftError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: fmt.Sprintf("rate limited, retry in %ds", secs),
		Details: map[string]any{"operation": op, "retry_after_seconds": secs},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SiftError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SiftError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewRemoteError creates a 502 error for transport failures and unexpected statuses.
func NewRemoteError(op string, status int, body string) *SiftError {
	e := &SiftError{
		Code:    ErrRemoteError,
		Status:  502,
		Message: fmt.Sprintf("%s failed with HTTP %d: %s", op, status, body),
		Details: map[string]any{"operation": op, "http_status": status},
	}
	if status == 0 {
		e.Message = fmt.Sprintf("%s failed: %s", op, body)
	}
	return e
}

// NewMalformedResponse creates a 502 error when a 2xx response is not valid JSON.
func NewMalformedResponse(op string, err error) *SiftError {
	return &SiftError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: fmt.Sprintf("%s returned an unreadable response: %v", op, err),
		Details: map[string]any{"operation": op},
	}
}

// NewContextLost creates a 503 error when the browser session went away.
func NewContextLost(err error) *SiftError {
	msg := "browser session lost, refresh the page"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SiftError{
		Code:    ErrContextLost,
		Status:  503,
		Message: msg,
	}
}

// NewNativeActionTimeout creates a 504 error when the native control did not settle.
func NewNativeActionTimeout(tweetID string, wantSaved bool) *SiftError {
	action := "bookmark"
	if !wantSaved {
		action = "unbookmark"
	}
	return &SiftError{
		Code:    ErrNativeActionTimeout,
		Status:  504,
		Message: fmt.Sprintf("native %s did not complete in time", action),
		Details: map[string]any{"tweet_id": tweetID, "action": action},
	}
}

// As returns the SiftError in err's chain, if any.
func As(err error) (*SiftError, bool) {
	var sErr *SiftError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}

// Is checks if an error is a SiftError with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := As(err); ok {
		return sErr.Code == code
	}
	return false
}

// RetryAfter returns the suggested wait of a RATE_LIMITED error.
func RetryAfter(err error) (time.Duration, bool) {
	sErr, ok := As(err)
	if !ok || sErr.Code != ErrRateLimited {
		return 0, false
	}
	secs, ok := sErr.Details["retry_after_seconds"].(int)
	if !ok {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// Envelope renders err as the {"error": {...}} body shared by every surface
// and returns the matching status. Errors outside the SiftError family are
// reported as INTERNAL without their text. Details are never exposed for
// INTERNAL errors.
func Envelope(err error) (int, map[string]any) {
	sErr, ok := As(err)
	if !ok {
		return 500, map[string]any{
			"error": map[string]any{
				"code":    ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	msg := sErr.Message
	// Keep wrapper context such as "archive 111: ".
	if outer := err.Error(); outer != sErr.Error() {
		if prefix, found := strings.CutSuffix(outer, sErr.Error()); found {
			msg = prefix + sErr.Message
		}
	}

	obj := map[string]any{
		"code":    sErr.Code,
		"message": msg,
		"status":  sErr.Status,
	}
	if sErr.Code != ErrInternal && sErr.Details != nil {
		obj["details"] = sErr.Details
	}
	return sErr.Status, map[string]any{"error": obj}
}
