package rag

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/studybuddy/biochem/internal/knowledge"
)

// mockStore records indexing operations.
type mockStore struct {
	docs           []knowledge.Document
	deletedSources []string
	addErr         error
}

func (m *mockStore) Add(_ context.Context, doc knowledge.Document) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.docs = append(m.docs, doc)
	return nil
}

func (m *mockStore) DeleteBySource(_ context.Context, source string) (int64, error) {
	m.deletedSources = append(m.deletedSources, source)
	return 0, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestIndexFile(t *testing.T) {
	store := &mockStore{}
	idx := NewIndexer(store, 0, 0)

	path := writeFile(t, t.TempDir(), "notes.md", "Enzymes are biological catalysts that lower activation energy.")

	chunks, err := idx.IndexFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexFile error = %v", err)
	}
	if chunks != 1 {
		t.Errorf("chunks = %d, want 1", chunks)
	}
	if len(store.docs) != 1 {
		t.Fatalf("stored %d docs, want 1", len(store.docs))
	}

	doc := store.docs[0]
	if doc.Metadata["source"] != "notes.md" {
		t.Errorf("source = %q, want notes.md", doc.Metadata["source"])
	}
	if doc.Metadata["chunk"] != "0" {
		t.Errorf("chunk = %q, want 0", doc.Metadata["chunk"])
	}
	if !strings.HasPrefix(doc.ID, "doc_") {
		t.Errorf("ID = %q, want doc_ prefix", doc.ID)
	}

	// Previous chunks of the same source must be cleared first.
	if len(store.deletedSources) != 1 || store.deletedSources[0] != "notes.md" {
		t.Errorf("deletedSources = %v, want [notes.md]", store.deletedSources)
	}
}

func TestIndexFile_ChunksLargeContent(t *testing.T) {
	store := &mockStore{}
	idx := NewIndexer(store, 500, 100)

	content := strings.Repeat("The citric acid cycle oxidizes acetyl-CoA. ", 60)
	path := writeFile(t, t.TempDir(), "cycle.txt", content)

	chunks, err := idx.IndexFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexFile error = %v", err)
	}
	if chunks < 2 {
		t.Fatalf("chunks = %d, want at least 2", chunks)
	}
	if len(store.docs) != chunks {
		t.Errorf("stored %d docs, want %d", len(store.docs), chunks)
	}

	// Chunk ordinals and IDs must be distinct.
	seen := map[string]bool{}
	for i, doc := range store.docs {
		if doc.Metadata["chunk"] != strconv.Itoa(i) {
			t.Errorf("doc %d chunk = %q, want %q", i, doc.Metadata["chunk"], strconv.Itoa(i))
		}
		if seen[doc.ID] {
			t.Errorf("duplicate doc ID %q", doc.ID)
		}
		seen[doc.ID] = true
	}
}

func TestIndexFile_Unsupported(t *testing.T) {
	idx := NewIndexer(&mockStore{}, 0, 0)

	path := writeFile(t, t.TempDir(), "data.csv", "a,b,c")
	if _, err := idx.IndexFile(context.Background(), path); err == nil {
		t.Error("IndexFile(.csv) = nil error, want error")
	}
}

func TestIndexFile_EmptyContent(t *testing.T) {
	idx := NewIndexer(&mockStore{}, 0, 0)

	path := writeFile(t, t.TempDir(), "empty.txt", "   \n\t ")
	if _, err := idx.IndexFile(context.Background(), path); err == nil {
		t.Error("IndexFile on whitespace-only file = nil error, want error")
	}
}

func TestIndexDirectory(t *testing.T) {
	store := &mockStore{}
	idx := NewIndexer(store, 0, 0)

	dir := t.TempDir()
	writeFile(t, dir, "one.md", "Hemoglobin carries oxygen.")
	writeFile(t, dir, "two.txt", "Myoglobin stores oxygen in muscle.")
	writeFile(t, dir, "skip.csv", "a,b")

	result, err := idx.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDirectory error = %v", err)
	}
	if result.FilesAdded != 2 {
		t.Errorf("FilesAdded = %d, want 2", result.FilesAdded)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", result.FilesSkipped)
	}
	if result.ChunksAdded != 2 {
		t.Errorf("ChunksAdded = %d, want 2", result.ChunksAdded)
	}
}

func TestChunkText(t *testing.T) {
	t.Run("short content is one chunk", func(t *testing.T) {
		chunks := chunkText("short text", 100, 20)
		if len(chunks) != 1 || chunks[0] != "short text" {
			t.Errorf("chunks = %v, want [short text]", chunks)
		}
	})

	t.Run("empty content yields nothing", func(t *testing.T) {
		if chunks := chunkText("", 100, 20); chunks != nil {
			t.Errorf("chunks = %v, want nil", chunks)
		}
	})

	t.Run("long content overlaps", func(t *testing.T) {
		content := strings.Repeat("word ", 200)
		chunks := chunkText(content, 100, 20)
		if len(chunks) < 2 {
			t.Fatalf("chunks = %d, want several", len(chunks))
		}
		for i, c := range chunks {
			if len([]rune(c)) > 100 {
				t.Errorf("chunk %d has %d runes, want <= 100", i, len([]rune(c)))
			}
			if strings.TrimSpace(c) == "" {
				t.Errorf("chunk %d is empty", i)
			}
		}
	})

	t.Run("prefers whitespace boundaries", func(t *testing.T) {
		content := strings.Repeat("alpha beta gamma delta ", 50)
		for _, c := range chunkText(content, 100, 30) {
			if strings.HasSuffix(c, "alph") || strings.HasSuffix(c, "bet") {
				t.Errorf("chunk ends mid-word: %q", c)
			}
		}
	})
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain ascii unchanged", in: "lehninger.pdf", want: "lehninger.pdf"},
		{name: "accents stripped", in: "Bioquímica_Básica.pdf", want: "Bioquimica_Basica.pdf"},
		{name: "spaces become underscores", in: "lecture notes 3.md", want: "lecture_notes_3.md"},
		{name: "non-latin dropped", in: "笔记biochem.txt", want: "biochem.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSource(tt.in); got != tt.want {
				t.Errorf("NormalizeSource(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunkID(t *testing.T) {
	a := chunkID("notes.md", 0)
	b := chunkID("notes.md", 0)
	c := chunkID("notes.md", 1)
	d := chunkID("other.md", 0)

	if a != b {
		t.Errorf("chunkID not deterministic: %q vs %q", a, b)
	}
	if a == c || a == d {
		t.Errorf("chunkID collisions: %q %q %q", a, c, d)
	}
	if !strings.HasPrefix(a, "doc_") {
		t.Errorf("chunkID = %q, want doc_ prefix", a)
	}
}
