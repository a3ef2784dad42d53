package tools

// knowledge.go registers the semantic document search tool the tutor uses to
// ground answers in the indexed course material.

import (
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// SearchDocumentsName is the Genkit tool name for searching indexed documents.
const SearchDocumentsName = "search_documents"

// TopK bounds for document search.
const (
	DefaultDocumentsTopK = 4
	MaxTopK              = 10
)

// SearchInput defines input for the search_documents tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// Knowledge holds dependencies for the document search handler.
type Knowledge struct {
	retriever ai.Retriever
	logger    *slog.Logger
}

// NewKnowledge creates a Knowledge instance.
func NewKnowledge(retriever ai.Retriever, logger *slog.Logger) (*Knowledge, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Knowledge{retriever: retriever, logger: logger}, nil
}

// RegisterKnowledge registers the document search tool with Genkit.
func RegisterKnowledge(g *genkit.Genkit, kt *Knowledge) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if kt == nil {
		return nil, fmt.Errorf("Knowledge is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchDocumentsName,
			"Search the indexed reference material (textbooks, lecture notes, uploaded PDFs) "+
				"using semantic similarity. "+
				"Returns: document excerpts with their source names and similarity scores. "+
				"Use this before answering conceptual questions so the answer can cite its sources. "+
				"Default topK: 4. Maximum topK: 10.",
			WithEvents(SearchDocumentsName, kt.SearchDocuments)),
	}, nil
}

// clampTopK validates topK and returns a value within [1, MaxTopK].
// Non-positive values fall back to defaultVal.
func clampTopK(topK, defaultVal int) int {
	if topK <= 0 {
		return defaultVal
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// SearchDocuments searches indexed documents using semantic similarity.
func (k *Knowledge) SearchDocuments(ctx *ai.ToolContext, input SearchInput) (Result, error) {
	k.logger.Info("SearchDocuments called", "query", input.Query, "topK", input.TopK)

	if input.Query == "" {
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: "query is required",
			},
		}, nil
	}

	topK := clampTopK(input.TopK, DefaultDocumentsTopK)

	resp, err := k.retriever.Retrieve(ctx, &ai.RetrieverRequest{
		Query:   ai.DocumentFromText(input.Query, nil),
		Options: map[string]any{"k": topK},
	})
	if err != nil {
		k.logger.Warn("SearchDocuments failed", "query", input.Query, "error", err)
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeExecution,
				Message: fmt.Sprintf("searching documents: %v", err),
			},
		}, nil
	}

	k.logger.Info("SearchDocuments succeeded", "query", input.Query, "result_count", len(resp.Documents))
	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"query":        input.Query,
			"result_count": len(resp.Documents),
			"results":      resp.Documents,
		},
	}, nil
}
