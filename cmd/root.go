// Package cmd implements the biochem command line interface. The root
// command starts an interactive tutoring chat; subcommands cover one-shot
// questions, the HTTP API server, knowledge base management and session
// inspection.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/studybuddy/biochem/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "biochem",
	Short: "Biochem - your biochemistry study buddy",
	Long: `Biochem is an AI tutor for biochemistry students. It answers questions
grounded in your indexed course material, computes buffer pH, enzyme
kinetics and isoelectric points with real calculators instead of
guessing arithmetic, and keeps conversations in named sessions.

Running biochem without a subcommand starts an interactive chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute runs the root command. Called from main; all CLI logic lives in
// this package so main stays a minimal entry point.
func Execute() error {
	logger := initLogger()
	slog.SetDefault(logger)

	return rootCmd.Execute()
}

// initLogger builds the process logger. DEBUG in the environment (any
// value) lowers the level to debug. Logs go to stderr so stdout stays
// clean for chat output and piped subcommand results.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies GEMINI_API_KEY is set. Commands that talk to
// the model call this before doing any work so the failure is immediate
// and actionable.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Biochem needs a Gemini API key to answer questions.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
