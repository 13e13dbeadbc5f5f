package hints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/abhisek/mathprogress/internal/llm"
)

// ErrRateLimited is returned when the local hint budget is spent. It wraps
// ErrUnavailable so callers fall through to the next provider.
var ErrRateLimited = fmt.Errorf("%w: hint rate limit reached", ErrUnavailable)

var hintSchema = &llm.Schema{
	Name:        "hint",
	Description: "A short hint for a student who answered a practice question incorrectly.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hint": map[string]any{
				"type":        "string",
				"description": "The hint shown to the student.",
				"minLength":   1,
			},
		},
		"required":             []any{"hint"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You are a patient math tutor for school students.
Write one short hint for a question the student just answered incorrectly.
Never state the final answer unless asked for a full worked explanation.
Respond with JSON only.`

// LLMOptions tunes generation.
type LLMOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLMProvider asks a language model for hint text. Requests beyond the
// limiter's budget fail fast instead of waiting.
type LLMProvider struct {
	provider llm.Provider
	limiter  *rate.Limiter
	opts     LLMOptions
}

// NewLLMProvider returns a provider backed by p. A nil limiter disables
// local rate limiting.
func NewLLMProvider(p llm.Provider, limiter *rate.Limiter, opts LLMOptions) *LLMProvider {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	return &LLMProvider{provider: p, limiter: limiter, opts: opts}
}

func (p *LLMProvider) HintText(ctx context.Context, req Request) (string, error) {
	if p.limiter != nil && !p.limiter.Allow() {
		return "", ErrRateLimited
	}

	llmReq := llm.UserPrompt(systemPrompt, buildPrompt(req))
	llmReq.Schema = hintSchema
	llmReq.MaxTokens = p.opts.MaxTokens
	llmReq.Temperature = p.opts.Temperature

	resp, err := p.provider.Generate(llm.WithPurpose(ctx, llm.PurposeHint), llmReq)
	if err != nil {
		return "", fmt.Errorf("generate hint: %w", err)
	}

	var out struct {
		Hint string `json:"hint"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("decode hint: %w", err)
	}
	if strings.TrimSpace(out.Hint) == "" {
		return "", errors.New("decode hint: empty text")
	}
	return out.Hint, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\n", req.Concept.Name)
	if req.Concept.Description != "" {
		fmt.Fprintf(&b, "Concept summary: %s\n", req.Concept.Description)
	}
	fmt.Fprintf(&b, "Question: %s\n", req.Question.Text)

	switch req.Level {
	case LevelConcept:
		b.WriteString("Remind the student of the underlying idea in one sentence. Do not solve the question.\n")
	case LevelExplanationPrefix:
		b.WriteString("Show only the first step of the solution. Do not give the answer.\n")
	default:
		fmt.Fprintf(&b, "Correct answer: %s\n", req.Question.Answer)
		if req.Question.Explanation != "" {
			fmt.Fprintf(&b, "Reference explanation: %s\n", req.Question.Explanation)
		}
		b.WriteString("Walk through the full solution in a few short steps.\n")
	}
	return b.String()
}
