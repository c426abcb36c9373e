package llm

import "context"

// Request is one prompt pair sent to a provider.
type Request struct {
	System string
	User   string
}

// Response is the raw provider output before formatting.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Backend is a single provider connection. Implementations return the
// provider's raw text; retry, rate limiting, and error mapping live in
// Client.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
