package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/firebase/genkit/go/genkit"

	"github.com/studybuddy/biochem/internal/chat"
	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/tools"
)

// chatHandler serves chat endpoints through the Genkit flow.
//
//   - POST /api/v1/chat        synchronous JSON request/response
//   - POST /api/v1/chat/stream SSE streaming
type chatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

// registerRoutes adds the chat routes. With no flow configured the routes
// are skipped and return 404.
func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow not configured, skipping route registration")
		return
	}

	mux.Handle("POST /api/v1/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/v1/chat/stream", h.stream)
}

// SSE event types.
const (
	EventChunk = "chunk" // partial response text
	EventTool  = "tool"  // tool lifecycle update
	EventDone  = "done"  // stream completed
	EventError = "error" // stream failed
)

// ChunkPayload is the SSE data payload for streamed text.
type ChunkPayload struct {
	Text string `json:"text"`
}

// ToolPayload is the SSE data payload for tool lifecycle events.
type ToolPayload struct {
	Name   string `json:"name"`
	Status string `json:"status"` // running, done, error
}

// DonePayload is the SSE data payload for successful completion.
type DonePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// ErrorPayload is the SSE data payload for failures.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sseWriter serializes SSE writes. Tool events arrive from the tool
// goroutine while chunks arrive from the flow iterator, so writes need a
// lock.
type sseWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	logger  log.Logger
}

func (s *sseWriter) writeEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Emitter implementation: tool activity becomes SSE events.
func (s *sseWriter) OnToolStart(name string) {
	if err := s.writeEvent(EventTool, ToolPayload{Name: name, Status: "running"}); err != nil {
		s.logger.Debug("writing tool event", "error", err)
	}
}

func (s *sseWriter) OnToolComplete(name string) {
	if err := s.writeEvent(EventTool, ToolPayload{Name: name, Status: "done"}); err != nil {
		s.logger.Debug("writing tool event", "error", err)
	}
}

func (s *sseWriter) OnToolError(name string) {
	if err := s.writeEvent(EventTool, ToolPayload{Name: name, Status: "error"}); err != nil {
		s.logger.Debug("writing tool event", "error", err)
	}
}

// stream handles SSE chat requests.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sse := &sseWriter{w: w, flusher: flusher, logger: h.logger}

	var input chat.Input
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = sse.writeEvent(EventError, ErrorPayload{Code: "INVALID_REQUEST", Message: "invalid request body"})
		return
	}

	if input.SessionID == "" {
		_ = sse.writeEvent(EventError, ErrorPayload{Code: "MISSING_SESSION_ID", Message: "sessionId is required"})
		return
	}
	if input.Query == "" {
		_ = sse.writeEvent(EventError, ErrorPayload{Code: "MISSING_QUERY", Message: "query is required"})
		return
	}

	// Bind tool lifecycle events to this stream.
	ctx := tools.ContextWithEmitter(r.Context(), sse)
	h.logger.Debug("SSE stream started", "session_id", input.SessionID)

	var (
		finalOutput chat.Output
		streamErr   error
	)

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "session_id", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}

		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}

		if streamValue.Stream.Text != "" {
			if err := sse.writeEvent(EventChunk, ChunkPayload{Text: streamValue.Stream.Text}); err != nil {
				// Write failure usually means the connection closed.
				h.logger.Debug("writing chunk", "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		h.streamError(sse, streamErr)
		return
	}

	_ = sse.writeEvent(EventDone, DonePayload{
		Response:  finalOutput.Response,
		SessionID: finalOutput.SessionID,
	})

	h.logger.Debug("SSE stream completed", "session_id", input.SessionID)
}

// streamError maps agent errors to SSE error events.
func (h *chatHandler) streamError(sse *sseWriter, err error) {
	code := "STREAM_ERROR"
	switch {
	case errors.Is(err, chat.ErrInvalidSession):
		code = "INVALID_SESSION"
	case errors.Is(err, chat.ErrExecutionFailed):
		code = "EXECUTION_FAILED"
	case errors.Is(err, chat.ErrCircuitOpen):
		code = "MODEL_UNAVAILABLE"
	}

	_ = sse.writeEvent(EventError, ErrorPayload{Code: code, Message: err.Error()})
}
