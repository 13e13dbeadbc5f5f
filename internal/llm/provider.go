// Package llm talks to hosted language models on behalf of the hint
// subsystem. Every backend implements Provider; retry and request logging
// are layered on as decorators by NewProvider.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a single structured completion.
type Provider interface {
	// Generate sends req and returns the model output. When req.Schema is
	// set the output has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the configured model identifier.
	ModelID() string
}

// Request is one prompt. Hints are single-turn, so Messages usually
// holds one user message.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Schema is a named JSON Schema the response must satisfy. Name doubles as
// the cache key in SchemaCache, so two schemas must never share a name.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

// Usage is the token accounting for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Purposes recorded on LLM request events.
const (
	PurposeHint    = "hint"
	PurposeUnknown = "unknown"
)

type purposeKey struct{}

// WithPurpose tags ctx with why the request is being made.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the purpose tagged on ctx, or PurposeUnknown.
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return PurposeUnknown
}
