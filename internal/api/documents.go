package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/studybuddy/biochem/internal/knowledge"
	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/rag"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// Indexer ingests a file into the knowledge base.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (int, error)
}

// SourceStore exposes the knowledge base's source inventory.
type SourceStore interface {
	ListSources(ctx context.Context) ([]knowledge.SourceInfo, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// documentsHandler serves knowledge base management endpoints.
type documentsHandler struct {
	indexer Indexer
	store   SourceStore
	logger  log.Logger
}

func (h *documentsHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.upload)
	mux.HandleFunc("GET /api/v1/documents", h.list)
	mux.HandleFunc("DELETE /api/v1/documents/{source}", h.delete)
}

// sourceItem is the JSON shape for an indexed source.
type sourceItem struct {
	Source    string    `json:"source"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"createdAt"`
}

// upload accepts a multipart file, stages it in a temp directory and indexes
// it. Re-uploading a source replaces its previous chunks.
func (h *documentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 32 MiB limit", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_form", "expected multipart form with a file field", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing_file", "form field 'file' is required", h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	// Reject path tricks in the client-supplied filename.
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || strings.ContainsAny(name, "/\\") {
		WriteError(w, http.StatusBadRequest, "invalid_filename", "invalid file name", h.logger)
		return
	}

	tmpDir, err := os.MkdirTemp("", "biochem-upload-*")
	if err != nil {
		h.logger.Error("creating upload dir", "error", err)
		WriteError(w, http.StatusInternalServerError, "upload_failed", "failed to stage upload", h.logger)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	staged := filepath.Join(tmpDir, name)
	dst, err := os.Create(staged) // #nosec G304 -- path is a fresh temp dir plus sanitized base name
	if err != nil {
		h.logger.Error("staging upload", "error", err)
		WriteError(w, http.StatusInternalServerError, "upload_failed", "failed to stage upload", h.logger)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		h.logger.Error("writing upload", "error", err)
		WriteError(w, http.StatusInternalServerError, "upload_failed", "failed to stage upload", h.logger)
		return
	}
	if err := dst.Close(); err != nil {
		h.logger.Error("closing upload", "error", err)
		WriteError(w, http.StatusInternalServerError, "upload_failed", "failed to stage upload", h.logger)
		return
	}

	chunks, err := h.indexer.IndexFile(r.Context(), staged)
	if err != nil {
		h.logger.Error("indexing upload", "error", err, "file", name)
		WriteError(w, http.StatusUnprocessableEntity, "index_failed", "failed to index document: "+err.Error(), h.logger)
		return
	}

	// Chunks are stored under the normalized source name; returning the raw
	// filename would not round-trip through list and delete.
	source := rag.NormalizeSource(name)

	h.logger.Info("document indexed", "source", source, "chunks", chunks)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"source": source,
		"chunks": chunks,
	}, h.logger)
}

func (h *documentsHandler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListSources(r.Context())
	if err != nil {
		h.logger.Error("listing sources", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list documents", h.logger)
		return
	}

	items := make([]sourceItem, 0, len(sources))
	for _, s := range sources {
		items = append(items, sourceItem{
			Source:    s.Source,
			Chunks:    s.Chunks,
			CreatedAt: s.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"documents": items}, h.logger)
}

func (h *documentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if source == "" {
		WriteError(w, http.StatusBadRequest, "missing_source", "source is required", h.logger)
		return
	}

	deleted, err := h.store.DeleteBySource(r.Context(), source)
	if err != nil {
		h.logger.Error("deleting source", "error", err, "source", source)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document", h.logger)
		return
	}
	if deleted == 0 {
		WriteError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "deleted",
		"source":  source,
		"deleted": deleted,
	}, h.logger)
}
