package knowledge

import "time"

// Document represents an indexed reference document chunk.
type Document struct {
	ID        string            // Unique identifier (path + chunk ordinal hash)
	Content   string            // Chunk text content
	Metadata  map[string]string // Source name, chunk index, etc.
	CreatedAt time.Time         // Indexing timestamp
}

// Result represents a single search result with similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity score (0-1)
}

// SourceInfo summarizes the indexed chunks of one source file.
type SourceInfo struct {
	Source    string    // Normalized source name
	Chunks    int       // Number of indexed chunks
	CreatedAt time.Time // Earliest chunk indexing time
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// defaultSearchTimeout bounds vector search queries so a slow embedding or
// scan cannot block a chat turn indefinitely.
const defaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
// Example: WithFilter("source", "lehninger.pdf")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the default query timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// buildSearchConfig applies search options and returns the final
// configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
