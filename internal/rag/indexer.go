// Package rag ingests reference documents into the knowledge store and
// exposes them to Genkit as a retriever.
//
// Files are extracted (PDF text extraction, plain text, markdown), split
// into overlapping chunks sized for the embedding model, and indexed under
// an ASCII-normalized source name so citations render consistently.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/studybuddy/biochem/internal/knowledge"
)

// Store defines the storage operations the Indexer needs.
// Consumers define the interface; knowledge.Store satisfies it.
type Store interface {
	// Add adds a document chunk to the store.
	Add(ctx context.Context, doc knowledge.Document) error

	// DeleteBySource removes every chunk of a source before re-indexing.
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// supportedExtensions are the file types the indexer can extract.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Default chunking parameters, sized so a chunk stays well inside the
// embedding model's token limit while keeping enough context to be useful
// as a citation.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// IndexResult summarizes a directory indexing operation.
type IndexResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	Duration     time.Duration
}

// Indexer ingests files into the knowledge store.
type Indexer struct {
	store        Store
	chunkSize    int
	chunkOverlap int
}

// NewIndexer creates an Indexer. Non-positive chunk parameters fall back to
// the defaults; an overlap at or above the chunk size is clamped.
func NewIndexer(store Store, chunkSize, chunkOverlap int) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Indexer{store: store, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// IndexFile extracts, chunks and indexes a single file.
// Existing chunks of the same source are replaced.
// Returns the number of chunks added.
func (idx *Indexer) IndexFile(ctx context.Context, filePath string) (int, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !supportedExtensions[ext] {
		return 0, fmt.Errorf("unsupported file type: %s", ext)
	}

	content, err := extractText(absPath)
	if err != nil {
		return 0, fmt.Errorf("extracting %s: %w", filepath.Base(absPath), err)
	}
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("no extractable text in %s", filepath.Base(absPath))
	}

	source := NormalizeSource(filepath.Base(absPath))

	// Replace any previous version of this source.
	if _, err := idx.store.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("clearing previous chunks of %q: %w", source, err)
	}

	chunks := chunkText(content, idx.chunkSize, idx.chunkOverlap)
	indexedAt := time.Now()

	for i, chunk := range chunks {
		doc := knowledge.Document{
			ID:      chunkID(source, i),
			Content: chunk,
			Metadata: map[string]string{
				"source":     source,
				"chunk":      strconv.Itoa(i),
				"indexed_at": indexedAt.Format(time.RFC3339),
			},
		}
		if err := idx.store.Add(ctx, doc); err != nil {
			return i, fmt.Errorf("indexing chunk %d of %q: %w", i, source, err)
		}
	}

	return len(chunks), nil
}

// IndexDirectory indexes every supported file directly in a directory tree.
// Individual file failures are counted, not fatal.
func (idx *Indexer) IndexDirectory(ctx context.Context, dirPath string) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path: %w", err)
	}

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesSkipped++
			return nil
		}

		chunks, err := idx.IndexFile(ctx, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}
		result.FilesAdded++
		result.ChunksAdded += chunks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// extractText reads a file and returns its plain text content.
func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDFText(path)
	default:
		content, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's index command
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return string(content), nil
	}
}

// extractPDFText extracts the plain text of every page of a PDF.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return string(text), nil
}

// chunkText splits content into overlapping chunks of roughly size runes.
// Chunk boundaries prefer the last whitespace in the window so words are not
// split mid-token. Overlap carries context across boundaries.
func chunkText(content string, size, overlap int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{content}
	}

	var chunks []string
	step := size - overlap

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Back up to the last whitespace in the window, if any is close.
		cut := end
		for i := end; i > end-overlap && i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
	}

	// Drop empty chunks produced by runs of whitespace.
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeSource converts a filename to a plain-ASCII source name:
// accented characters lose their combining marks, anything else non-ASCII
// is dropped, and spaces become underscores. Citation names stay stable
// regardless of how the file was uploaded.
func NormalizeSource(filename string) string {
	decomposed := norm.NFD.String(filename)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Skip combining marks left over from decomposition.
		case r == ' ':
			b.WriteRune('_')
		case r < 128:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// chunkID derives a stable document ID from the source name and chunk
// ordinal. Re-indexing the same file overwrites the same rows.
func chunkID(source string, ordinal int) string {
	hash := sha256.Sum256([]byte(source + "#" + strconv.Itoa(ordinal)))
	return "doc_" + hex.EncodeToString(hash[:16])
}
