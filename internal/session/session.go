// Package session persists conversation sessions and their messages in
// PostgreSQL. Message content is Genkit's ai.Part slice stored as JSONB, so
// tool requests and responses survive round-trips intact.
package session

import (
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// Session represents a conversation session.
type Session struct {
	ID           uuid.UUID
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Message represents a single conversation message.
type Message struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Role           string
	Content        []*ai.Part // stored as JSONB
	SequenceNumber int
	CreatedAt      time.Time
}

// History limits, shared with the config package's normalization.
const (
	DefaultHistoryLimit int32 = 100
	MaxHistoryLimit     int32 = 10000
	MinHistoryLimit     int32 = 10
)

// NormalizeHistoryLimit clamps a history limit into the supported range.
// Non-positive values use the default.
func NormalizeHistoryLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit < MinHistoryLimit {
		return MinHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
