package hints

import (
	"context"
	"errors"
	"strings"
)

// StaticProvider derives hints from authored content: the concept
// description, the first sentence of the explanation, then the whole
// explanation.
type StaticProvider struct{}

func (StaticProvider) HintText(_ context.Context, req Request) (string, error) {
	var text string
	switch req.Level {
	case LevelConcept:
		text = req.Concept.Description
		if text == "" && req.Concept.Name != "" {
			text = "This question practices " + req.Concept.Name + "."
		}
	case LevelExplanationPrefix:
		text = firstSentence(req.Question.Explanation)
	case LevelExtended:
		text = req.Question.Explanation
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", ErrUnavailable
	}
	return text, nil
}

// firstSentence returns s up to and including its first sentence
// terminator, or all of s when it has none.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r != '.' && r != '?' && r != '!' {
			continue
		}
		if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
			return s[:i+1]
		}
	}
	return s
}

// Chain asks each provider in turn and returns the first non-empty text.
type Chain []Provider

func (c Chain) HintText(ctx context.Context, req Request) (string, error) {
	var errs []error
	for _, p := range c {
		if p == nil {
			continue
		}
		text, err := p.HintText(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if len(errs) == 0 {
		return "", ErrUnavailable
	}
	return "", errors.Join(append([]error{ErrUnavailable}, errs...)...)
}
