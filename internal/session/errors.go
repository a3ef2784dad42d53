package session

import "errors"

// ErrNotFound indicates the requested session does not exist.
// Part of the Store's public API; check with errors.Is().
var ErrNotFound = errors.New("session not found")
