// Package tools registers the tutor's Genkit tools: the three biochemistry
// calculators and semantic document search.
//
// Handlers return Result values rather than Go errors for business failures
// (bad input, empty search): the model reads the structured error and
// self-corrects. Go errors are reserved for infrastructure failures.
package tools

// Status indicates the outcome of a tool execution.
type Status string

const (
	// StatusSuccess indicates the tool executed successfully.
	StatusSuccess Status = "success"
	// StatusError indicates the tool failed; Error carries details.
	StatusError Status = "error"
)

// ErrorCode classifies tool failures for model consumption.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid tool input.
	ErrCodeValidation ErrorCode = "ValidationError"
	// ErrCodeExecution indicates a failure while running the tool.
	ErrCodeExecution ErrorCode = "ExecutionError"
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NotFound"
)

// Error is a structured tool error the model can understand and correct.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Result is the uniform envelope returned by every tool handler.
type Result struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}
