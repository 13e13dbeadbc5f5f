// Package hints selects and resolves the text shown after a missed answer.
// Escalation decides the level; a Provider turns a level into words. Hint
// text is best effort: Resolve never fails and falls back to a generic
// placeholder for the level.
package hints

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/mathprogress/internal/store"
)

// Level is the escalation step of a hint, 1 through 3.
type Level int

const (
	LevelConcept           Level = 1
	LevelExplanationPrefix Level = 2
	LevelExtended          Level = 3
)

// MaxLevel is the last level before a question leaves the retry queue.
const MaxLevel = LevelExtended

// Valid reports whether l is a defined level.
func (l Level) Valid() bool {
	return l >= LevelConcept && l <= LevelExtended
}

// Kind is the stable name of the level.
func (l Level) Kind() string {
	switch l {
	case LevelConcept:
		return "concept"
	case LevelExplanationPrefix:
		return "explanation_prefix"
	case LevelExtended:
		return "extended"
	default:
		return fmt.Sprintf("level_%d", int(l))
	}
}

// Placeholder is the generic text shown when no content is available.
func (l Level) Placeholder() string {
	switch l {
	case LevelConcept:
		return "Review the idea behind this question and try again."
	case LevelExplanationPrefix:
		return "Look at the first step of the worked solution and try again."
	default:
		return "Work through the solution one step at a time and try again."
	}
}

// Hint is a level plus, once resolved, its text.
type Hint struct {
	Level    Level  `json:"level"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Descriptor returns an unresolved hint for level.
func Descriptor(level Level) Hint {
	return Hint{Level: level, Kind: level.Kind()}
}

// ErrUnavailable is returned by providers that have nothing to offer.
var ErrUnavailable = errors.New("hint content unavailable")

// Request identifies what the hint is for.
type Request struct {
	Question store.Question
	Concept  store.Concept
	Level    Level
}

// Provider produces hint text. Implementations must not reveal the answer
// below LevelExtended.
type Provider interface {
	HintText(ctx context.Context, req Request) (string, error)
}

// Resolve fills in h's text from p. A nil provider, an error or empty
// text yields the level placeholder with Resolved left false.
func Resolve(ctx context.Context, p Provider, h Hint, req Request) Hint {
	req.Level = h.Level
	if p != nil {
		text, err := p.HintText(ctx, req)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				h.Text = text
				h.Resolved = true
				return h
			}
		}
	}
	h.Text = h.Level.Placeholder()
	return h
}
