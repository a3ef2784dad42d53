package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// GoogleAISetup bundles the resources integration tests need for real
// Google AI API access.
type GoogleAISetup struct {
	Embedder ai.Embedder
	Genkit   *genkit.Genkit
	Logger   *slog.Logger
}

// SetupGoogleAI initializes Genkit with the Google AI plugin and returns a
// real embedder plus a quiet logger. Skips the test when GEMINI_API_KEY is
// not set.
func SetupGoogleAI(t *testing.T) *GoogleAISetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring Google AI")
	}

	ctx := context.Background()

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("finding project root: %v", err)
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithPromptDir(filepath.Join(projectRoot, "prompts")))

	embedder := googlegenai.GoogleAIEmbedder(g, "gemini-embedding-001")

	return &GoogleAISetup{
		Embedder: embedder,
		Genkit:   g,
		Logger:   slog.New(slog.DiscardHandler),
	}
}
