package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/studybuddy/biochem/internal/log"
)

// mockRetriever is a minimal ai.Retriever implementation for testing.
type mockRetriever struct {
	docs []*ai.Document
	err  error

	gotOptions any
}

func (*mockRetriever) Name() string             { return "mock-retriever" }
func (*mockRetriever) Register(_ api.Registry)  {}
func (m *mockRetriever) Retrieve(_ context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
	m.gotOptions = req.Options
	if m.err != nil {
		return nil, m.err
	}
	return &ai.RetrieverResponse{Documents: m.docs}, nil
}

func TestNewKnowledge_Validation(t *testing.T) {
	if _, err := NewKnowledge(nil, log.NewNop()); err == nil {
		t.Error("NewKnowledge(nil retriever) = nil error, want error")
	}
	if _, err := NewKnowledge(&mockRetriever{}, nil); err == nil {
		t.Error("NewKnowledge(nil logger) = nil error, want error")
	}
}

func TestSearchDocuments(t *testing.T) {
	retriever := &mockRetriever{
		docs: []*ai.Document{
			ai.DocumentFromText("Glycolysis converts glucose to pyruvate.", map[string]any{"source": "lehninger.pdf"}),
		},
	}
	kt, err := NewKnowledge(retriever, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge error = %v", err)
	}

	result, err := kt.SearchDocuments(toolCtx(), SearchInput{Query: "glycolysis", TopK: 3})
	if err != nil {
		t.Fatalf("SearchDocuments error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %v, want %v (error: %v)", result.Status, StatusSuccess, result.Error)
	}

	data := result.Data.(map[string]any)
	if data["result_count"] != 1 {
		t.Errorf("result_count = %v, want 1", data["result_count"])
	}

	opts, ok := retriever.gotOptions.(map[string]any)
	if !ok {
		t.Fatalf("retriever options type = %T, want map[string]any", retriever.gotOptions)
	}
	if opts["k"] != 3 {
		t.Errorf("k = %v, want 3", opts["k"])
	}
}

func TestSearchDocuments_EmptyQuery(t *testing.T) {
	kt, err := NewKnowledge(&mockRetriever{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge error = %v", err)
	}

	result, err := kt.SearchDocuments(toolCtx(), SearchInput{Query: ""})
	if err != nil {
		t.Fatalf("SearchDocuments error = %v, want nil", err)
	}
	if result.Status != StatusError || result.Error == nil || result.Error.Code != ErrCodeValidation {
		t.Errorf("result = %+v, want validation error", result)
	}
}

func TestSearchDocuments_RetrieverFailure(t *testing.T) {
	kt, err := NewKnowledge(&mockRetriever{err: errors.New("connection refused")}, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge error = %v", err)
	}

	result, err := kt.SearchDocuments(toolCtx(), SearchInput{Query: "enzymes"})
	if err != nil {
		t.Fatalf("SearchDocuments error = %v, want nil (business error in Result)", err)
	}
	if result.Status != StatusError || result.Error == nil || result.Error.Code != ErrCodeExecution {
		t.Errorf("result = %+v, want execution error", result)
	}
}

func TestSearchDocuments_TopKClamping(t *testing.T) {
	retriever := &mockRetriever{}
	kt, err := NewKnowledge(retriever, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge error = %v", err)
	}

	tests := []struct {
		name  string
		topK  int
		wantK int
	}{
		{name: "zero uses default", topK: 0, wantK: DefaultDocumentsTopK},
		{name: "negative uses default", topK: -1, wantK: DefaultDocumentsTopK},
		{name: "in range unchanged", topK: 7, wantK: 7},
		{name: "exceeds max clamped", topK: 50, wantK: MaxTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := kt.SearchDocuments(toolCtx(), SearchInput{Query: "q", TopK: tt.topK}); err != nil {
				t.Fatalf("SearchDocuments error = %v", err)
			}
			opts := retriever.gotOptions.(map[string]any)
			if opts["k"] != tt.wantK {
				t.Errorf("k = %v, want %d", opts["k"], tt.wantK)
			}
		})
	}
}

func TestClampTopK(t *testing.T) {
	tests := []struct {
		name       string
		topK       int
		defaultVal int
		want       int
	}{
		{name: "zero uses default", topK: 0, defaultVal: 4, want: 4},
		{name: "negative uses default", topK: -5, defaultVal: 4, want: 4},
		{name: "value in range unchanged", topK: 5, defaultVal: 4, want: 5},
		{name: "max boundary", topK: 10, defaultVal: 4, want: 10},
		{name: "exceeds max clamped to 10", topK: 50, defaultVal: 4, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampTopK(tt.topK, tt.defaultVal); got != tt.want {
				t.Errorf("clampTopK(%d, %d) = %d, want %d", tt.topK, tt.defaultVal, got, tt.want)
			}
		})
	}
}
