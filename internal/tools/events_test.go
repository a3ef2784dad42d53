package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

// mockEmitter records lifecycle events for assertions.
type mockEmitter struct {
	startCalls    []string
	completeCalls []string
	errorCalls    []string
}

func (m *mockEmitter) OnToolStart(name string)    { m.startCalls = append(m.startCalls, name) }
func (m *mockEmitter) OnToolComplete(name string) { m.completeCalls = append(m.completeCalls, name) }
func (m *mockEmitter) OnToolError(name string)    { m.errorCalls = append(m.errorCalls, name) }

var _ Emitter = (*mockEmitter)(nil)

func TestWithEvents_Success(t *testing.T) {
	emitter := &mockEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	handler := func(_ *ai.ToolContext, input string) (string, error) {
		return "result: " + input, nil
	}
	wrapped := WithEvents("calculate_ph", handler)

	result, err := wrapped(&ai.ToolContext{Context: ctx}, "input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "result: input" {
		t.Errorf("result = %q, want %q", result, "result: input")
	}

	if len(emitter.startCalls) != 1 || emitter.startCalls[0] != "calculate_ph" {
		t.Errorf("startCalls = %v, want [calculate_ph]", emitter.startCalls)
	}
	if len(emitter.completeCalls) != 1 {
		t.Errorf("completeCalls = %v, want one entry", emitter.completeCalls)
	}
	if len(emitter.errorCalls) != 0 {
		t.Errorf("errorCalls = %v, want none", emitter.errorCalls)
	}
}

func TestWithEvents_Error(t *testing.T) {
	emitter := &mockEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	wantErr := errors.New("boom")
	handler := func(_ *ai.ToolContext, _ string) (string, error) {
		return "", wantErr
	}
	wrapped := WithEvents("enzyme_kinetics", handler)

	_, err := wrapped(&ai.ToolContext{Context: ctx}, "input")
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	if len(emitter.errorCalls) != 1 || emitter.errorCalls[0] != "enzyme_kinetics" {
		t.Errorf("errorCalls = %v, want [enzyme_kinetics]", emitter.errorCalls)
	}
	if len(emitter.completeCalls) != 0 {
		t.Errorf("completeCalls = %v, want none", emitter.completeCalls)
	}
}

func TestWithEvents_NoEmitter(t *testing.T) {
	handler := func(_ *ai.ToolContext, input int) (int, error) {
		return input * 2, nil
	}
	wrapped := WithEvents("isoelectric_point", handler)

	// No emitter in context; wrapper must pass straight through.
	result, err := wrapped(&ai.ToolContext{Context: context.Background()}, 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestEmitterFromContext_NotSet(t *testing.T) {
	if got := EmitterFromContext(context.Background()); got != nil {
		t.Errorf("EmitterFromContext on empty context = %v, want nil", got)
	}
}
