package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/studybuddy/biochem/internal/config"
	"github.com/studybuddy/biochem/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage saved conversations",
}

func init() {
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd.Context())
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd.Context(), args[0])
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd.Context(), args[0])
		},
	})
	rootCmd.AddCommand(sessionsCmd)
}

// openSessions connects to the database and builds a session store.
// Session commands only need Postgres, so Genkit stays uninitialized.
func openSessions(ctx context.Context) (*session.Store, func(), error) {
	if err := checkRequiredEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	store, err := session.New(pool, slog.Default())
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("creating session store: %w", err)
	}

	return store, pool.Close, nil
}

func runSessionsList(ctx context.Context) error {
	store, cleanup, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, err := store.List(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Run biochem to start one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, formatTime(s.UpdatedAt))
	}
	return w.Flush()
}

func runSessionsShow(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", rawID, err)
	}

	store, cleanup, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		return fmt.Errorf("getting session: %w", err)
	}

	messages, err := store.Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("getting messages: %w", err)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Title: %s\n", sess.Title)
	fmt.Printf("Created: %s\n", formatTime(sess.CreatedAt))
	fmt.Printf("Updated: %s\n", formatTime(sess.UpdatedAt))
	fmt.Printf("Messages: %d\n", len(messages))
	fmt.Println()

	for _, msg := range messages {
		role := "You"
		if msg.Role == session.RoleModel {
			role = "Tutor"
		}
		fmt.Printf("%s> %s\n\n", role, messageText(msg))
	}

	return nil
}

func runSessionsDelete(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", rawID, err)
	}

	store, cleanup, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Delete(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		return fmt.Errorf("deleting session: %w", err)
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

// messageText concatenates the text parts of a stored message.
func messageText(msg *session.Message) string {
	var b strings.Builder
	for _, part := range msg.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// formatTime renders a timestamp relative to now for recent values.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
