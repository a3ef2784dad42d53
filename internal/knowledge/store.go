// Package knowledge manages the vector document store backing the tutor's
// source-grounded answers. Documents are embedded via a Genkit embedder and
// stored in PostgreSQL with pgvector for cosine similarity search.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding dimensionality of the documents table.
// gemini-embedding-001 is truncated to this size via OutputDimensionality.
const VectorDimension = 768

// DB is the subset of pgxpool.Pool the store depends on.
// Consumers define the interface; *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages knowledge documents with vector search.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db       DB
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store instance.
func New(db DB, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// embed generates an embedding vector for the given text. The embedder
// defaults to 3072 dimensions; OutputDimensionality truncates to the
// schema's vector size, or pgvector rejects every row.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := int32(VectorDimension)
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add embeds and stores a document.
// UPSERT semantics: re-indexing the same ID replaces its content.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.Content == "" {
		return fmt.Errorf("document content is required")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`,
		doc.ID, doc.Content, embedding, metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search performs semantic search, returning the most similar documents
// ordered by cosine similarity. A query timeout (default 10s) prevents slow
// vector scans from blocking.
//
//	results, err := store.Search(ctx, "glycolysis regulation",
//	    knowledge.WithTopK(4),
//	    knowledge.WithFilter("source", "lehninger.pdf"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// The filter is always marshaled JSON matched with the JSONB containment
	// operator; user input never reaches the SQL text.
	var rows pgx.Rows
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.db.Query(queryCtx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			WHERE metadata @> $2::jsonb
			ORDER BY embedding <=> $1
			LIMIT $3`,
			embedding, filterJSON, cfg.topK)
	} else {
		rows, err = s.db.Query(queryCtx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			ORDER BY embedding <=> $1
			LIMIT $2`,
			embedding, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "document_id", doc.ID, "error", err)
			doc.Metadata = make(map[string]string)
		}
		results = append(results, Result{Document: doc, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	return results, nil
}

// ListSources summarizes indexed sources with chunk counts, newest first.
func (s *Store) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT metadata->>'source' AS source, count(*), min(created_at)
		FROM documents
		WHERE metadata ? 'source'
		GROUP BY source
		ORDER BY min(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Source, &info.Chunks, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading source rows: %w", err)
	}

	return sources, nil
}

// DeleteBySource removes every chunk indexed from the given source.
// Returns the number of deleted chunks.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	if source == "" {
		return 0, fmt.Errorf("source is required")
	}

	tag, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>'source' = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting source %q: %w", source, err)
	}

	s.logger.Debug("deleted source", "source", source, "chunks", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// Delete removes a single document by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}

	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// Count returns the total number of indexed document chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Ping verifies database connectivity, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}
