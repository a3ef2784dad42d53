package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input is the chat flow input.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// Output is the chat flow output.
type Output struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// StreamChunk is one piece of streamed response text.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the flow's registered name in Genkit.
const FlowName = "studybuddy/chat"

// Flow is the chat agent's Genkit streaming flow type.
type Flow = core.Flow[Input, Output, StreamChunk]

// Genkit panics when the same flow name is defined twice, so the flow is a
// package-level singleton.
var (
	flowOnce     sync.Once
	flow         *Flow
	flowInitDone bool
)

// InitFlow defines the chat flow singleton. Call exactly once at startup.
func InitFlow(g *genkit.Genkit, agent *Chat) (*Flow, error) {
	var initialized bool
	flowOnce.Do(func() {
		flow = agent.defineFlow(g)
		flowInitDone = true
		initialized = true
	})
	if !initialized && flowInitDone {
		return nil, fmt.Errorf("InitFlow called more than once")
	}
	return flow, nil
}

// GetFlow returns the initialized flow. Panics if InitFlow was not called,
// which indicates a programming error.
func GetFlow() *Flow {
	if !flowInitDone {
		panic("GetFlow called before InitFlow")
	}
	return flow
}

// ResetFlowForTesting resets the singleton so tests can initialize with
// different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
	flowInitDone = false
}

// defineFlow registers the streaming flow. The flow is a thin wrapper; the
// agent's ExecuteStream holds the actual logic.
func (c *Chat) defineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
							return streamErr
						}
					}
					return nil
				}
			}

			resp, err := c.ExecuteStream(ctx, sessionID, input.Query, callback)
			if err != nil {
				return Output{SessionID: input.SessionID}, err
			}

			return Output{
				Response:  resp.FinalText,
				SessionID: input.SessionID,
			}, nil
		},
	)
}
