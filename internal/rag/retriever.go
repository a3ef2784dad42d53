package rag

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/studybuddy/biochem/internal/knowledge"
)

// Searcher is the search surface the retriever needs from knowledge.Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Retriever bridges the knowledge store to the Genkit ai.Retriever interface.
type Retriever struct {
	store Searcher
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store Searcher) *Retriever {
	return &Retriever{store: store}
}

// Define registers a Genkit retriever over the indexed documents.
//
//	r := rag.NewRetriever(knowledgeStore)
//	documents := r.Define(g, "documents")
func (r *Retriever) Define(g *genkit.Genkit, name string) ai.Retriever {
	return genkit.DefineRetriever(
		g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			queryText := extractQueryText(req)
			topK := extractTopK(req, 4)

			results, err := r.store.Search(ctx, queryText,
				knowledge.WithTopK(topK))
			if err != nil {
				return nil, err
			}

			return &ai.RetrieverResponse{
				Documents: toGenkitDocuments(results),
			}, nil
		},
	)
}

// extractQueryText extracts the text of RetrieverRequest.Query.
func extractQueryText(req *ai.RetrieverRequest) string {
	if req.Query != nil && len(req.Query.Content) > 0 {
		return req.Query.Content[0].Text
	}
	return ""
}

// extractTopK reads a "k" entry from the request options, tolerating the
// numeric types JSON round-trips produce. Values outside [1, 10] fall back
// to defaultK.
func extractTopK(req *ai.RetrieverRequest, defaultK int) int {
	opts, ok := req.Options.(map[string]any)
	if !ok {
		return defaultK
	}
	k, exists := opts["k"]
	if !exists {
		return defaultK
	}

	var kInt int
	switch v := k.(type) {
	case int:
		kInt = v
	case int32:
		kInt = int(v)
	case int64:
		kInt = int(v)
	case float64:
		kInt = int(v)
	case float32:
		kInt = int(v)
	default:
		return defaultK
	}

	if kInt < 1 || kInt > 10 {
		return defaultK
	}
	return kInt
}

// toGenkitDocuments converts knowledge results to Genkit documents,
// carrying the similarity score in metadata.
func toGenkitDocuments(results []knowledge.Result) []*ai.Document {
	docs := make([]*ai.Document, len(results))
	for i, result := range results {
		metadata := make(map[string]any, len(result.Document.Metadata)+1)
		for k, v := range result.Document.Metadata {
			metadata[k] = v
		}
		metadata["similarity"] = result.Similarity

		docs[i] = ai.DocumentFromText(result.Document.Content, metadata)
	}
	return docs
}
