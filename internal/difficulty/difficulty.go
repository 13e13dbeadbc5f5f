// Package difficulty calibrates the starting difficulty of an attempt,
// adapts it after every answer and picks the next question from the pool.
package difficulty

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/abhisek/mathprogress/internal/store"
)

// Difficulty bounds.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// Readiness weights and band edges.
const (
	levelWeight        = 0.4
	accuracyWeight     = 0.6
	defaultAccuracy    = 0.5
	lowReadiness       = 0.35
	midReadiness       = 0.65
	lowStart           = 3
	midStart           = 6
	highStart          = 8
	maxSelectionSpread = 9
)

// InitialDifficulty maps a student's level (1..10) and historical accuracy
// (0..1) to a starting difficulty. Without history accuracy is taken as 0.5.
func InitialDifficulty(level int, accuracy float64, hasHistory bool) int {
	if !hasHistory {
		accuracy = defaultAccuracy
	}
	readiness := float64(level)/10*levelWeight + accuracy*accuracyWeight

	switch {
	case readiness < lowReadiness:
		return lowStart
	case readiness < midReadiness:
		return midStart
	default:
		return highStart
	}
}

// NextDifficulty adapts current based on the attempt's answer logs, most
// recent first. The most recent answer moves difficulty one step in its
// direction; two consecutive answers at the current difficulty with the
// same outcome move it two steps.
func NextDifficulty(current int, recent []store.AnswerLog) int {
	if len(recent) == 0 {
		return current
	}

	step := -1
	if recent[0].IsCorrect {
		step = 1
	}
	if len(recent) >= 2 &&
		recent[0].Difficulty == current &&
		recent[1].Difficulty == current &&
		recent[0].IsCorrect == recent[1].IsCorrect {
		step *= 2
	}
	return clamp(current + step)
}

func clamp(d int) int {
	return max(MinDifficulty, min(MaxDifficulty, d))
}

// Adapter reads the learner profile and the question pool. It is not safe
// for concurrent use because it owns its random source.
type Adapter struct {
	profiles  store.ProfileRepo
	questions store.QuestionRepo
	rng       *rand.Rand
}

// NewAdapter creates an Adapter. A nil rng gets a randomly seeded source.
func NewAdapter(profiles store.ProfileRepo, questions store.QuestionRepo, rng *rand.Rand) *Adapter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Adapter{profiles: profiles, questions: questions, rng: rng}
}

// Initial computes the starting difficulty for a student over a concept set.
// A student without a profile starts from level 1.
func (a *Adapter) Initial(ctx context.Context, studentID string, conceptIDs []string) (int, error) {
	level := MinDifficulty
	s, err := a.profiles.Get(ctx, studentID)
	switch {
	case err == nil:
		level = s.Level
	case !errors.Is(err, store.ErrNotFound):
		return 0, fmt.Errorf("load profile: %w", err)
	}

	acc, ok, err := a.profiles.Accuracy(ctx, studentID, conceptIDs)
	if err != nil {
		return 0, fmt.Errorf("load accuracy: %w", err)
	}
	return InitialDifficulty(level, acc, ok), nil
}

// SelectQuestion picks a question uniformly from the pool at target
// difficulty. When that level is empty it widens to target±1, ±2, ...
// taking the union of both sides and skipping sides out of range. It
// reports false when no unserved question exists at any difficulty.
func (a *Adapter) SelectQuestion(ctx context.Context, conceptIDs []string, target int, exclude []string) (store.Question, bool, error) {
	pool, err := a.questions.Pool(ctx, conceptIDs, target, exclude)
	if err != nil {
		return store.Question{}, false, fmt.Errorf("query pool at %d: %w", target, err)
	}
	if len(pool) > 0 {
		return pool[a.rng.IntN(len(pool))], true, nil
	}

	for spread := 1; spread <= maxSelectionSpread; spread++ {
		var union []store.Question
		for _, d := range []int{target - spread, target + spread} {
			if d < MinDifficulty || d > MaxDifficulty {
				continue
			}
			qs, err := a.questions.Pool(ctx, conceptIDs, d, exclude)
			if err != nil {
				return store.Question{}, false, fmt.Errorf("query pool at %d: %w", d, err)
			}
			union = append(union, qs...)
		}
		if len(union) > 0 {
			return union[a.rng.IntN(len(union))], true, nil
		}
	}
	return store.Question{}, false, nil
}
