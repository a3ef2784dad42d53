package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/studybuddy/biochem/internal/app"
	"github.com/studybuddy/biochem/internal/config"
	"github.com/studybuddy/biochem/internal/knowledge"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the knowledge base",
}

func init() {
	docsCmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "Index a file or directory of course material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocsAdd(cmd.Context(), args[0])
		},
	})
	docsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List indexed sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocsList(cmd.Context())
		},
	})
	docsCmd.AddCommand(&cobra.Command{
		Use:   "remove <source>",
		Short: "Remove an indexed source and all its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocsRemove(cmd.Context(), args[0])
		},
	})
	rootCmd.AddCommand(docsCmd)
}

// runDocsAdd indexes a file or directory. Indexing embeds content, so the
// full application including Genkit is needed.
func runDocsAdd(ctx context.Context, path string) error {
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

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if info.IsDir() {
		result, err := a.Indexer.IndexDirectory(ctx, path)
		if err != nil {
			return fmt.Errorf("indexing directory: %w", err)
		}
		fmt.Printf("Indexed %d files (%d chunks) in %s\n",
			result.FilesAdded, result.ChunksAdded, result.Duration.Round(time.Millisecond))
		if result.FilesSkipped > 0 {
			fmt.Printf("Skipped %d unsupported files\n", result.FilesSkipped)
		}
		if result.FilesFailed > 0 {
			fmt.Printf("Failed to index %d files, see log for details\n", result.FilesFailed)
		}
		return nil
	}

	chunks, err := a.Indexer.IndexFile(ctx, path)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}
	fmt.Printf("Indexed %s (%d chunks)\n", path, chunks)
	return nil
}

// openKnowledge builds a knowledge store for listing and deletion. Those
// operations never embed, so the store runs with a nil embedder and
// Genkit stays uninitialized.
func openKnowledge(ctx context.Context) (*knowledge.Store, func(), error) {
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

	return knowledge.New(pool, nil, slog.Default()), pool.Close, nil
}

func runDocsList(ctx context.Context) error {
	store, cleanup, err := openKnowledge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sources, err := store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}

	if len(sources) == 0 {
		fmt.Println("No documents indexed. Run biochem docs add <path> to index course material.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCHUNKS\tINDEXED")
	for _, src := range sources {
		fmt.Fprintf(w, "%s\t%d\t%s\n", src.Source, src.Chunks, formatTime(src.CreatedAt))
	}
	return w.Flush()
}

func runDocsRemove(ctx context.Context, source string) error {
	store, cleanup, err := openKnowledge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := store.DeleteBySource(ctx, source)
	if err != nil {
		return fmt.Errorf("removing source: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("source %q not found", source)
	}

	fmt.Printf("Removed %q (%d chunks)\n", source, deleted)
	return nil
}
