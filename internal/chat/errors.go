package chat

import "errors"

// Sentinel errors let HTTP handlers map failures to status codes with
// errors.Is().
var (
	// ErrInvalidSession indicates the session ID is malformed or unknown.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates the model turn failed after retries.
	ErrExecutionFailed = errors.New("chat execution failed")
)
