package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/session"
)

const maxSessionTitleLength = 200

// sessionHandler serves session CRUD endpoints.
type sessionHandler struct {
	store  *session.Store
	logger log.Logger
}

func (h *sessionHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions", h.list)
	mux.HandleFunc("POST /api/v1/sessions", h.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", h.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.delete)
}

// sessionItem is the JSON shape for a session.
type sessionItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// messageItem is the JSON shape for a message. Text concatenates the
// message's text parts; tool traffic is not exposed here.
type messageItem struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	SequenceNumber int       `json:"sequenceNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toSessionItem(s *session.Session) sessionItem {
	return sessionItem{
		ID:           s.ID.String(),
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: s.MessageCount,
	}
}

func toMessageItem(m *session.Message) messageItem {
	var text strings.Builder
	for _, part := range m.Content {
		text.WriteString(part.Text)
	}
	return messageItem{
		ID:             m.ID.String(),
		Role:           m.Role,
		Text:           text.String(),
		SequenceNumber: m.SequenceNumber,
		CreatedAt:      m.CreatedAt,
	}
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100", h.logger)
		return
	}
	if offset < 0 || offset > 10000 {
		WriteError(w, http.StatusBadRequest, "invalid_offset", "offset must be between 0 and 10000", h.logger)
		return
	}

	sessions, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}

	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toSessionItem(s))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sessions": items}, h.logger)
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	title := strings.TrimSpace(req.Title)
	if len(title) > maxSessionTitleLength {
		WriteError(w, http.StatusBadRequest, "title_too_long", "title must be 200 characters or fewer", h.logger)
		return
	}
	if title == "" {
		title = "New conversation"
	}

	created, err := h.store.Create(r.Context(), title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create session", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, toSessionItem(created), h.logger)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	s, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err, "session_id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get session", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toSessionItem(s), h.logger)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	// Messages of a missing session are an empty list, distinguish by
	// checking the session exists first.
	if _, err := h.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err, "session_id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get session", h.logger)
		return
	}

	messages, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("listing messages", "error", err, "session_id", id)
		WriteError(w, http.StatusInternalServerError, "messages_failed", "failed to list messages", h.logger)
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, toMessageItem(m))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": items}, h.logger)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("deleting session", "error", err, "session_id", id)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete session", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// pathID parses the {id} path value, writing a 400 on failure.
func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid session ID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
