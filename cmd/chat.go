package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/studybuddy/biochem/internal/app"
	"github.com/studybuddy/biochem/internal/config"
	"github.com/studybuddy/biochem/internal/session"
)

var resumeSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive tutoring session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&resumeSessionID, "session", "", "resume an existing session by ID")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := checkRequiredEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// The session is created lazily on the first question so that starting
	// the program and immediately quitting leaves no empty rows behind.
	var sess *session.Session
	if resumeSessionID != "" {
		id, err := uuid.Parse(resumeSessionID)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", resumeSessionID, err)
		}
		sess, err = a.Sessions.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("resuming session: %w", err)
		}
		fmt.Printf("Resumed %q (%d messages)\n", sess.Title, sess.MessageCount)
	}

	fmt.Printf("Biochem %s - ask me anything about biochemistry.\n", AppVersion)
	fmt.Println("Type /help for commands, /exit or Ctrl+D to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("You> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleChatCommand(input, sess) {
				break
			}
			continue
		}

		if sess == nil {
			sess, err = a.Sessions.Create(ctx, deriveTitle(input))
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
		}

		fmt.Print("Tutor> ")
		// The agent persists both sides of the turn; nothing to save here.
		if _, err := a.Agent.ExecuteStream(ctx, sess.ID, input, printChunk); err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			continue
		}
		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if sess != nil {
		fmt.Printf("Session saved: %s\n", sess.ID)
	}
	return nil
}

// handleChatCommand processes slash commands. Returns true to exit the loop.
func handleChatCommand(input string, sess *session.Session) bool {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help          Show this help")
		fmt.Println("  /session       Show the current session ID")
		fmt.Println("  /exit, /quit   Exit")
		fmt.Println()
		fmt.Println("Manage documents and sessions from the shell:")
		fmt.Println("  biochem docs add <path>    Index course material")
		fmt.Println("  biochem sessions list      List past conversations")
		fmt.Println()

	case "/session":
		if sess == nil {
			fmt.Println("No session yet. Ask a question to start one.")
		} else {
			fmt.Printf("Session %s: %q\n", sess.ID, sess.Title)
		}
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true

	default:
		fmt.Printf("Unknown command: %s\n", input)
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}

	return false
}

// printChunk writes streamed model text to stdout as it arrives.
func printChunk(_ context.Context, chunk *ai.ModelResponseChunk) error {
	fmt.Print(chunk.Text())
	return nil
}

// deriveTitle makes a session title from the first question.
func deriveTitle(input string) string {
	const maxTitle = 60

	title := strings.Join(strings.Fields(input), " ")
	r := []rune(title)
	if len(r) > maxTitle {
		return string(r[:maxTitle-3]) + "..."
	}
	return title
}
