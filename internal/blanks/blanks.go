// Package blanks turns fill-in-the-blank questions into a per-round display
// with a deterministic, per-student choice of blanked words, and grades
// single and multi-blank answers.
package blanks

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/abhisek/mathprogress/internal/store"
)

// Placeholder replaces each blanked token in the display text.
const Placeholder = "____"

// Blank is one blanked position of a rendered question.
type Blank struct {
	ID    string
	Index int
	Word  string
}

// Result is a question rendered for one round.
type Result struct {
	DisplayText  string
	OriginalText string
	Blanks       []Blank
	// Answers maps blank ID to the expected word.
	Answers map[string]string
}

// BlankID names the i-th (zero-based) blank of a rendering.
func BlankID(i int) string {
	return fmt.Sprintf("blank_%d", i+1)
}

// ResolveRule returns the rule for round: the exact round's rule if
// configured, otherwise the highest configured round below it.
func ResolveRule(rules map[int]store.RoundRule, round int) (store.RoundRule, bool) {
	if r, ok := rules[round]; ok {
		return r, true
	}
	best := -1
	for k := range rules {
		if k <= round && k > best {
			best = k
		}
	}
	if best < 0 {
		return store.RoundRule{}, false
	}
	return rules[best], true
}

// Seed derives the PRNG stream for a (student, question, attempt) triple.
func Seed(studentID, questionID, attemptID string) *rand.Rand {
	sum := sha256.Sum256([]byte(studentID + ":" + questionID + ":" + attemptID))
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[0:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
}

// Generate renders q for the given round. The same (student, question,
// attempt, round) always yields the same blanks. Questions without blank
// configuration, or without a rule for the round, render verbatim with no
// blanks.
func Generate(q store.Question, round int, studentID, attemptID string) Result {
	res := Result{
		DisplayText:  q.Text,
		OriginalText: q.Text,
		Answers:      map[string]string{},
	}
	cfg := q.BlankConfig
	if cfg == nil || len(cfg.Positions) == 0 {
		return res
	}
	rule, ok := ResolveRule(cfg.RoundRules, round)
	if !ok {
		return res
	}

	tokens := strings.Fields(q.Text)
	var valid []store.BlankPosition
	seen := make(map[int]bool, len(cfg.Positions))
	for _, p := range cfg.Positions {
		if p.Index < 0 || p.Index >= len(tokens) || seen[p.Index] {
			continue
		}
		seen[p.Index] = true
		valid = append(valid, p)
	}

	candidates := valid
	if rule.MinImportance > 0 {
		var important []store.BlankPosition
		for _, p := range valid {
			if p.Importance >= rule.MinImportance {
				important = append(important, p)
			}
		}
		if len(important) > 0 {
			candidates = important
		}
	}
	if len(candidates) == 0 {
		return res
	}

	rng := Seed(studentID, q.ID, attemptID)
	n := blankCount(rule, len(candidates), rng)
	if n <= 0 {
		return res
	}

	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	picked := make([]store.BlankPosition, len(candidates))
	copy(picked, candidates)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	picked = picked[:n]
	sort.Slice(picked, func(i, j int) bool { return picked[i].Index < picked[j].Index })

	for i, p := range picked {
		id := BlankID(i)
		word := p.Word
		if word == "" {
			word = tokens[p.Index]
		}
		res.Blanks = append(res.Blanks, Blank{ID: id, Index: p.Index, Word: word})
		res.Answers[id] = word
		tokens[p.Index] = Placeholder
	}
	res.DisplayText = strings.Join(tokens, " ")
	return res
}

// blankCount returns the rule's fixed count, or a uniform sample from
// [Min, Max], clamped to the number of candidates.
func blankCount(rule store.RoundRule, candidates int, rng *rand.Rand) int {
	if rule.Count != nil {
		return max(0, min(*rule.Count, candidates))
	}
	lo, hi := max(rule.Min, 0), rule.Max
	if hi < lo {
		hi = lo
	}
	return min(lo+rng.IntN(hi-lo+1), candidates)
}
