package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/studybuddy/biochem/internal/log"
)

// DB is the database access the store needs, satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists sessions and messages in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a session store. A nil logger falls back to the default.
func New(db DB, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

// Create starts a new session with the given title.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	sess := &Session{ID: uuid.New(), Title: title}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		sess.ID, title,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.DebugContext(ctx, "session created", "session_id", sess.ID, "title", title)
	return sess, nil
}

// Get returns a session by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{ID: id}

	err := s.db.QueryRow(ctx,
		`SELECT title, created_at, updated_at,
		        (SELECT count(*) FROM session_messages m WHERE m.session_id = sessions.id)
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx,
		`SELECT s.id, s.title, s.created_at, s.updated_at,
		        (SELECT count(*) FROM session_messages m WHERE m.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s.logger.InfoContext(ctx, "session deleted", "session_id", id)
	return nil
}

// AppendMessages appends messages to a session in one transaction.
// Sequence numbers continue from the session's current maximum, so
// concurrent appenders serialize on the session row lock.
func (s *Store) AppendMessages(ctx context.Context, sessionID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	for i, msg := range messages {
		if msg == nil {
			return fmt.Errorf("message %d is nil", i)
		}
		if !validRole(msg.Role) {
			return fmt.Errorf("message %d has invalid role %q", i, msg.Role)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking session: %w", err)
	}

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM session_messages WHERE session_id = $1`,
		sessionID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message %d content: %w", i, err)
		}
		seq := maxSeq + i + 1

		err = tx.QueryRow(ctx,
			`INSERT INTO session_messages (session_id, role, content, sequence_number)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			sessionID, msg.Role, content, seq,
		).Scan(&msg.ID, &msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
		msg.SessionID = sessionID
		msg.SequenceNumber = seq
	}

	if _, err := tx.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.DebugContext(ctx, "messages appended",
		"session_id", sessionID, "count", len(messages), "last_sequence", maxSeq+len(messages))
	return nil
}

// Messages returns a session's messages in sequence order.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, role, content, sequence_number, created_at
		 FROM session_messages
		 WHERE session_id = $1
		 ORDER BY sequence_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, sessionID, false)
}

// History returns the last limit messages converted for the model, oldest
// first. The limit is normalized via NormalizeHistoryLimit.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int32) ([]*ai.Message, error) {
	limit = NormalizeHistoryLimit(limit)

	rows, err := s.db.Query(ctx,
		`SELECT id, role, content, sequence_number, created_at
		 FROM session_messages
		 WHERE session_id = $1
		 ORDER BY sequence_number DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows, sessionID, true)
	if err != nil {
		return nil, err
	}
	return ToModelMessages(messages), nil
}

// scanMessages drains rows into messages. When reversed is set the rows
// arrived newest-first and are flipped back to chronological order.
func scanMessages(rows pgx.Rows, sessionID uuid.UUID, reversed bool) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg := &Message{SessionID: sessionID}
		var content []byte
		if err := rows.Scan(&msg.ID, &msg.Role, &content, &msg.SequenceNumber, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal(content, &msg.Content); err != nil {
			return nil, fmt.Errorf("unmarshaling message %s content: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	if reversed {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// ToModelMessages converts stored messages into Genkit messages.
func ToModelMessages(messages []*Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// UserMessage builds a user message from plain text.
func UserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: []*ai.Part{ai.NewTextPart(text)}}
}

// ModelMessage builds a model message from generated parts.
func ModelMessage(parts []*ai.Part) *Message {
	return &Message{Role: RoleModel, Content: parts}
}

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleModel, RoleTool:
		return true
	}
	return false
}

// Ping verifies the store can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("pinging session store: %w", err)
	}
	return nil
}
