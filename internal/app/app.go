// Package app wires the application together: database, Genkit, knowledge
// base, tools, session store and the chat agent.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studybuddy/biochem/internal/chat"
	"github.com/studybuddy/biochem/internal/config"
	"github.com/studybuddy/biochem/internal/knowledge"
	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/rag"
	"github.com/studybuddy/biochem/internal/session"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Retriever ai.Retriever
	Indexer   *rag.Indexer
	Sessions  *session.Store
	Tools     []ai.Tool
	Agent     *chat.Chat
	Flow      *chat.Flow
}

// Close releases resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Debug("database pool closed")
		}
	}
	return nil
}
