package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/spf13/cobra"

	"github.com/studybuddy/biochem/internal/app"
	"github.com/studybuddy/biochem/internal/config"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	question := strings.Join(args, " ")

	sess, err := a.Sessions.Create(ctx, deriveTitle(question))
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	streamed := false
	resp, err := a.Agent.ExecuteStream(ctx, sess.ID, question,
		func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				streamed = true
				fmt.Print(text)
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	// Tool-only turns produce no streamed text; fall back to the final text.
	if !streamed {
		fmt.Print(resp.FinalText)
	}
	fmt.Println()

	return nil
}
