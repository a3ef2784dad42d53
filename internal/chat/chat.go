// Package chat implements the tutoring agent: a prompt-driven conversation
// loop with calculator tools, knowledge base retrieval and session
// persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/session"
)

const (
	// TutorPromptName is the Dotprompt file the agent runs,
	// prompts/tutor.prompt. The model is configured there.
	TutorPromptName = "tutor"

	// FallbackResponseMessage is returned when the model produces an empty
	// response with no tool requests.
	FallbackResponseMessage = "I couldn't generate a response to that. Could you rephrase your question?"
)

// Response is the complete result of one agent turn.
type Response struct {
	FinalText    string
	ToolRequests []*ai.ToolRequest
}

// StreamCallback receives each chunk of a streaming response. Returning an
// error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Config carries the agent's dependencies and tuning knobs.
type Config struct {
	Genkit       *genkit.Genkit
	Retriever    ai.Retriever
	SessionStore *session.Store
	Logger       log.Logger
	Tools        []ai.Tool // already registered with Genkit

	// ModelName overrides the prompt file's model when set
	// (provider-qualified, e.g. "googleai/gemini-3-pro-preview").
	ModelName   string
	Temperature float32 // 0 keeps the prompt file's value
	MaxTokens   int     // 0 keeps the prompt file's value

	MaxTurns      int   // agentic loop limit
	RetrievalTopK int   // knowledge base documents per turn, 0 disables
	HistoryLimit  int32 // messages loaded per turn

	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter // nil uses the default limiter
	TokenBudget          TokenBudget
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.SessionStore == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Chat is the tutoring agent. All configuration is captured immutably at
// construction, so a single instance is safe for concurrent use.
type Chat struct {
	maxTurns     int
	topK         int
	historyLimit int32

	modelName string
	genConfig *genai.GenerateContentConfig

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter

	tokenBudget TokenBudget

	g         *genkit.Genkit
	retriever ai.Retriever
	sessions  *session.Store
	logger    log.Logger
	tools     []ai.Tool
	toolRefs  []ai.ToolRef
	toolNames string
	prompt    ai.Prompt
}

// New creates the agent. The prompt file must exist in the configured
// prompt directory.
func New(cfg Config) (*Chat, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	tokenBudget := cfg.TokenBudget
	if tokenBudget.MaxHistoryTokens == 0 {
		tokenBudget = DefaultTokenBudget()
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	c := &Chat{
		maxTurns:     maxTurns,
		topK:         cfg.RetrievalTopK,
		historyLimit: session.NormalizeHistoryLimit(cfg.HistoryLimit),

		modelName: cfg.ModelName,
		genConfig: generationConfig(cfg.Temperature, cfg.MaxTokens),

		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    rl,
		tokenBudget:    tokenBudget,

		g:         cfg.Genkit,
		retriever: cfg.Retriever,
		sessions:  cfg.SessionStore,
		logger:    cfg.Logger,
		tools:     cfg.Tools,
		toolRefs:  toolRefs,
		toolNames: strings.Join(names, ", "),
	}

	c.prompt = genkit.LookupPrompt(c.g, TutorPromptName)
	if c.prompt == nil {
		return nil, fmt.Errorf("dotprompt %q not found: check the prompts directory", TutorPromptName)
	}

	c.logger.Info("chat agent initialized",
		"tools", len(c.tools),
		"max_turns", c.maxTurns)
	return c, nil
}

// generationConfig builds the model config override from the tuning knobs.
// Returns nil when neither is set so the prompt file's config applies
// untouched.
func generationConfig(temperature float32, maxTokens int) *genai.GenerateContentConfig {
	if temperature <= 0 && maxTokens <= 0 {
		return nil
	}
	cfg := &genai.GenerateContentConfig{}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(temperature)
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return cfg
}

// Execute runs one non-streaming turn.
func (c *Chat) Execute(ctx context.Context, sessionID uuid.UUID, input string) (*Response, error) {
	return c.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs one turn. A non-nil callback receives chunks as the
// model generates them; the final response is returned either way.
func (c *Chat) ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	c.logger.Debug("executing chat agent",
		"session_id", sessionID,
		"streaming", callback != nil)

	history, err := c.sessions.History(ctx, sessionID, c.historyLimit)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		return nil, fmt.Errorf("loading history: %w", err)
	}

	resp, err := c.generateResponse(ctx, input, history, callback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	responseText := resp.Text()

	// Empty text with tool requests is normal agentic behavior; only a
	// fully empty response gets the fallback.
	if strings.TrimSpace(responseText) == "" && len(resp.ToolRequests()) == 0 {
		c.logger.Warn("model returned empty response", "session_id", sessionID)
		responseText = FallbackResponseMessage
	}

	turn := []*session.Message{
		session.UserMessage(input),
		session.ModelMessage([]*ai.Part{ai.NewTextPart(responseText)}),
	}
	if err := c.sessions.AppendMessages(ctx, sessionID, turn); err != nil {
		// The user already has their answer, losing persistence is not
		// worth failing the request over.
		c.logger.Error("appending turn to session", "error", err, "session_id", sessionID)
	}

	return &Response{
		FinalText:    responseText,
		ToolRequests: resp.ToolRequests(),
	}, nil
}

// generateResponse is the shared core for streaming and non-streaming turns.
func (c *Chat) generateResponse(ctx context.Context, input string, historyMessages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	// Genkit's renderMessages mutates msg.Content in place, so concurrent
	// turns sharing history objects would race. Copy before use.
	messages := deepCopyMessages(historyMessages)
	messages = c.truncateHistory(messages, c.tokenBudget.MaxHistoryTokens)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	contextDocs := c.retrieveContext(ctx, input)

	opts := []ai.PromptExecuteOption{
		ai.WithMessagesFn(func(_ context.Context, _ any) ([]*ai.Message, error) {
			return messages, nil
		}),
		ai.WithTools(c.toolRefs...),
		ai.WithMaxTurns(c.maxTurns),
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}
	if c.genConfig != nil {
		opts = append(opts, ai.WithConfig(c.genConfig))
	}
	if len(contextDocs) > 0 {
		opts = append(opts, ai.WithDocs(contextDocs...))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	c.logger.Debug("executing prompt",
		"tools", c.toolNames,
		"max_turns", c.maxTurns,
		"query_length", len(input),
		"context_docs", len(contextDocs))

	if err := c.circuitBreaker.Allow(); err != nil {
		c.logger.Warn("circuit breaker rejecting request",
			"state", c.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := c.executeWithRetry(ctx, opts)
	if err != nil {
		c.circuitBreaker.Failure()
		return nil, err
	}

	c.circuitBreaker.Success()
	return resp, nil
}

// retrievalTimeout bounds knowledge base lookups so a slow query cannot
// stall the whole turn.
const retrievalTimeout = 5 * time.Second

// retrieveContext fetches relevant knowledge base chunks for the query.
// Errors degrade to an answer without retrieved context.
func (c *Chat) retrieveContext(ctx context.Context, query string) []*ai.Document {
	if c.topK <= 0 {
		return nil
	}

	retrCtx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	resp, err := c.retriever.Retrieve(retrCtx, &ai.RetrieverRequest{
		Query:   ai.DocumentFromText(query, nil),
		Options: map[string]any{"k": c.topK},
	})
	if err != nil {
		if ctx.Err() != nil || retrCtx.Err() != nil {
			c.logger.Debug("retrieval canceled or timed out, continuing without context",
				"error", err)
		} else {
			c.logger.Warn("retrieval failed, continuing without context",
				"error", err)
		}
		return nil
	}

	if len(resp.Documents) > 0 {
		c.logger.Debug("retrieved context",
			"document_count", len(resp.Documents),
			"query_length", len(query))
	}
	return resp.Documents
}

// deepCopyMessages creates independent copies of messages and their parts.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies a part. ToolRequest.Input and ToolResponse.Output are
// copied by reference; Genkit only mutates the Content slice.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
