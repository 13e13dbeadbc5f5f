// Package escalation runs the within-attempt retry queue: a missed
// question comes back with a stronger hint each time, and after the
// fourth miss it leaves the attempt for an offline focus check.
package escalation

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/blanks"
	"github.com/abhisek/mathprogress/internal/hints"
	"github.com/abhisek/mathprogress/internal/store"
)

// MaxMisses is the miss count at which a question leaves the queue: one
// past the strongest hint.
const MaxMisses = int(hints.MaxLevel) + 1

// Outcome is the result of one submission.
type Outcome struct {
	IsCorrect         bool
	PointsEarned      int
	PointsPossible    int
	Grade             blanks.GradeResult
	RetryScheduled    bool
	RetryCount        int
	Hint              *hints.Hint
	MovedToFocusCheck bool
}

// Queue applies submissions to attempts.
type Queue struct {
	attempts    store.AttemptRepo
	focusChecks store.FocusCheckRepo
	hints       hints.Provider
	newID       func() string
	logger      *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithHints resolves hint text inside SubmitWithRetry.
func WithHints(p hints.Provider) Option {
	return func(q *Queue) { q.hints = p }
}

// WithIDGenerator replaces uuid.NewString for focus check IDs.
func WithIDGenerator(f func() string) Option {
	return func(q *Queue) { q.newID = f }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// NewQueue returns a Queue over the given repositories, usually bound to
// the caller's transaction.
func NewQueue(attempts store.AttemptRepo, focusChecks store.FocusCheckRepo, opts ...Option) *Queue {
	q := &Queue{
		attempts:    attempts,
		focusChecks: focusChecks,
		newID:       uuid.NewString,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// SubmitWithRetry loads the attempt, applies the submission, saves the
// attempt under its version and resolves the hint text if a provider is
// configured. A nil key grades against the question's answer.
func (q *Queue) SubmitWithRetry(ctx context.Context, attemptID string, question store.Question, answer, key any) (Outcome, error) {
	a, err := q.attempts.Get(ctx, attemptID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load attempt: %w", err)
	}

	out, err := q.Apply(ctx, a, question, answer, key)
	if err != nil {
		return Outcome{}, err
	}
	if err := q.attempts.Save(ctx, a); err != nil {
		return Outcome{}, err
	}

	if out.Hint != nil && q.hints != nil {
		h := hints.Resolve(ctx, q.hints, *out.Hint, hints.Request{Question: question})
		out.Hint = &h
	}
	return out, nil
}

// Apply grades the submission and updates a's retry queue and counts in
// memory. The caller saves a. The focus check item, if any, is written
// through the queue's repo. Hints are returned as unresolved descriptors.
func (q *Queue) Apply(ctx context.Context, a *store.Attempt, question store.Question, answer, key any) (Outcome, error) {
	if key == nil {
		key = question.Answer
	}
	g := blanks.Grade(answer, key, question.Points)
	out := Outcome{
		IsCorrect:      g.IsCorrect,
		PointsEarned:   g.PointsEarned,
		PointsPossible: question.Points,
		Grade:          g,
	}

	if a.RetryCounts == nil {
		a.RetryCounts = make(map[string]int)
	}

	if g.IsCorrect {
		// The count stays as a record of past misses.
		a.RetryQueue = remove(a.RetryQueue, question.ID)
		return out, nil
	}

	count := a.RetryCounts[question.ID] + 1
	a.RetryCounts[question.ID] = count
	out.RetryCount = count

	if count >= MaxMisses {
		a.RetryQueue = remove(a.RetryQueue, question.ID)
		item := &store.FocusCheckItem{
			ID:         q.newID(),
			StudentID:  a.StudentID,
			QuestionID: question.ID,
			AttemptID:  a.ID,
			WrongCount: count,
		}
		created, err := q.focusChecks.Create(ctx, item)
		if err != nil {
			return Outcome{}, fmt.Errorf("create focus check: %w", err)
		}
		out.MovedToFocusCheck = true
		if created {
			q.logger.Info("question moved to focus check",
				zap.String("attempt_id", a.ID),
				zap.String("question_id", question.ID),
				zap.Int("wrong_count", count))
		}
		return out, nil
	}

	if !slices.Contains(a.RetryQueue, question.ID) {
		a.RetryQueue = append(a.RetryQueue, question.ID)
	}
	h := hints.Descriptor(hints.Level(count))
	out.RetryScheduled = true
	out.Hint = &h
	return out, nil
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}
