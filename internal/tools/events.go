package tools

import (
	"context"

	"github.com/firebase/genkit/go/ai"
)

// emitterKey uses an empty struct for a zero-allocation context key.
type emitterKey struct{}

// Emitter receives tool lifecycle events. The interface carries only the
// tool name; presentation is the transport layer's concern (the API binds an
// emitter to the SSE stream so clients see tool activity live).
type Emitter interface {
	// OnToolStart signals that a tool has started execution.
	OnToolStart(name string)

	// OnToolComplete signals that a tool completed successfully.
	OnToolComplete(name string)

	// OnToolError signals that a tool execution failed.
	OnToolError(name string)
}

// EmitterFromContext retrieves the Emitter from context.
// Returns nil if not set; non-streaming code paths simply emit nothing.
func EmitterFromContext(ctx context.Context) Emitter {
	emitter, _ := ctx.Value(emitterKey{}).(Emitter)
	return emitter
}

// ContextWithEmitter stores an Emitter in the context for per-request
// binding.
func ContextWithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// WithEvents wraps a typed tool handler to emit lifecycle events around
// execution. If no emitter is in context the wrapper passes straight through
// to the original function.
func WithEvents[In, Out any](name string, fn func(*ai.ToolContext, In) (Out, error)) func(*ai.ToolContext, In) (Out, error) {
	return func(ctx *ai.ToolContext, input In) (Out, error) {
		emitter := EmitterFromContext(ctx.Context)

		if emitter != nil {
			emitter.OnToolStart(name)
		}

		result, err := fn(ctx, input)

		if emitter != nil {
			if err != nil {
				emitter.OnToolError(name)
			} else {
				emitter.OnToolComplete(name)
			}
		}

		return result, err
	}
}
