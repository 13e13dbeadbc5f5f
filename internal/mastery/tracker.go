// Package mastery maintains per-concept proficiency and unlocks concepts
// along the prerequisite graph.
package mastery

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/concepts"
	"github.com/abhisek/mathprogress/internal/store"
)

// Threshold is the mastery percentage at which a concept counts as mastered
// and its dependents may unlock.
const Threshold = 90

// Mastery percentage weights.
const (
	accuracyWeight = 0.7
	averageWeight  = 0.3
)

// Tracker rolls up attempts into mastery rows and unlocks dependents. Each
// per-concept update is a versioned read-modify-write; a lost race returns
// store.ErrConflict for the caller's transaction to retry.
type Tracker struct {
	mastery store.MasteryRepo
	logs    store.AnswerLogRepo
	events  store.EventRepo
	graph   *concepts.Graph
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithEvents records mastered and unlocked transitions.
func WithEvents(events store.EventRepo) Option {
	return func(t *Tracker) { t.events = events }
}

// WithClock overrides the time source for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker.
func NewTracker(mastery store.MasteryRepo, logs store.AnswerLogRepo, graph *concepts.Graph, opts ...Option) *Tracker {
	t := &Tracker{
		mastery: mastery,
		logs:    logs,
		graph:   graph,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RollUp is the result of folding one attempt into mastery.
type RollUp struct {
	// Mastery maps each touched concept to its new mastery percentage.
	Mastery map[string]int

	// NewlyMastered lists concepts that crossed Threshold in this roll-up,
	// sorted by ID.
	NewlyMastered []string
}

// batch accumulates one concept's answers within an attempt.
type batch struct {
	total, correct   int
	earned, possible int
}

// ratio is the batch's point ratio in [0, 100]. Batches without possible
// points fall back to the share of correct answers.
func (b batch) ratio() float64 {
	if b.possible > 0 {
		return float64(b.earned) / float64(b.possible) * 100
	}
	return float64(b.correct) / float64(b.total) * 100
}

// RollUpAttempt folds every answer log of the attempt into the student's
// mastery rows.
func (t *Tracker) RollUpAttempt(ctx context.Context, studentID, attemptID string) (RollUp, error) {
	logs, err := t.logs.ByAttempt(ctx, attemptID)
	if err != nil {
		return RollUp{}, fmt.Errorf("load answer logs: %w", err)
	}

	batches := make(map[string]*batch)
	for _, l := range logs {
		b, ok := batches[l.ConceptID]
		if !ok {
			b = &batch{}
			batches[l.ConceptID] = b
		}
		b.total++
		if l.IsCorrect {
			b.correct++
		}
		b.earned += l.PointsEarned
		b.possible += l.PointsPossible
	}

	ids := make([]string, 0, len(batches))
	for id := range batches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := RollUp{Mastery: make(map[string]int, len(ids))}
	for _, conceptID := range ids {
		newly, pct, err := t.apply(ctx, studentID, conceptID, *batches[conceptID], attemptID)
		if err != nil {
			return RollUp{}, err
		}
		out.Mastery[conceptID] = pct
		if newly {
			out.NewlyMastered = append(out.NewlyMastered, conceptID)
		}
	}
	return out, nil
}

// apply folds one batch into a mastery row and reports whether the concept
// became mastered.
func (t *Tracker) apply(ctx context.Context, studentID, conceptID string, b batch, attemptID string) (bool, int, error) {
	m, err := t.Get(ctx, studentID, conceptID)
	if err != nil {
		return false, 0, err
	}

	prevTotal := float64(m.TotalAttempts)
	newTotal := m.TotalAttempts + b.total
	m.AverageScore = (m.AverageScore*prevTotal + b.ratio()*float64(b.total)) / float64(newTotal)
	m.TotalAttempts = newTotal
	m.CorrectCount += b.correct
	m.MasteryPercentage = Percentage(m.CorrectCount, m.TotalAttempts, m.AverageScore)

	now := t.now()
	newly := false
	if !m.IsMastered && m.MasteryPercentage >= Threshold {
		m.IsMastered = true
		m.MasteredAt = &now
		newly = true
	}
	m.UpdatedAt = now

	if err := t.mastery.Save(ctx, m); err != nil {
		return false, 0, fmt.Errorf("save mastery %s: %w", conceptID, err)
	}

	if newly {
		t.logger.Info("concept mastered",
			zap.String("student", studentID),
			zap.String("concept", conceptID),
			zap.Int("mastery", m.MasteryPercentage))
		if err := t.record(ctx, store.MasteryEventData{
			StudentID:         studentID,
			ConceptID:         conceptID,
			Kind:              store.MasteryEventMastered,
			MasteryPercentage: m.MasteryPercentage,
			AttemptID:         attemptID,
		}); err != nil {
			return false, 0, err
		}
	}
	return newly, m.MasteryPercentage, nil
}

// Percentage combines cumulative accuracy and the running average score
// into a mastery percentage clamped to [0, 100].
func Percentage(correct, total int, average float64) int {
	if total == 0 {
		return 0
	}
	acc := float64(correct) / float64(total)
	pct := int(math.Round(acc*100*accuracyWeight + average*averageWeight))
	return max(0, min(100, pct))
}

// Get returns the student's mastery row for a concept, or a fresh default
// row (Version 0) when none exists yet. Root concepts start unlocked.
func (t *Tracker) Get(ctx context.Context, studentID, conceptID string) (*store.ConceptMastery, error) {
	m, err := t.mastery.Get(ctx, studentID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("load mastery %s: %w", conceptID, err)
	}
	if m != nil {
		return m, nil
	}

	m = &store.ConceptMastery{StudentID: studentID, ConceptID: conceptID}
	if len(t.graph.Prerequisites(conceptID)) == 0 {
		now := t.now()
		m.IsUnlocked = true
		m.UnlockedAt = &now
	}
	return m, nil
}

// Ensure persists the default row for a concept if it does not exist.
func (t *Tracker) Ensure(ctx context.Context, studentID, conceptID string) (*store.ConceptMastery, error) {
	m, err := t.Get(ctx, studentID, conceptID)
	if err != nil {
		return nil, err
	}
	if m.Version > 0 {
		return m, nil
	}
	m.UpdatedAt = t.now()
	if err := t.mastery.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("create mastery %s: %w", conceptID, err)
	}
	return m, nil
}

// CheckPrerequisitesMet reports whether every direct prerequisite of the
// concept has a mastery row at or above Threshold, and lists the unmet ones.
func (t *Tracker) CheckPrerequisitesMet(ctx context.Context, studentID, conceptID string) (bool, []string, error) {
	var unmet []string
	for _, prereqID := range t.graph.Prerequisites(conceptID) {
		m, err := t.mastery.Get(ctx, studentID, prereqID)
		if err != nil {
			return false, nil, fmt.Errorf("load mastery %s: %w", prereqID, err)
		}
		if m == nil || m.MasteryPercentage < Threshold {
			unmet = append(unmet, prereqID)
		}
	}
	return len(unmet) == 0, unmet, nil
}

// Unlock marks the concept unlocked. It reports false when it already was.
func (t *Tracker) Unlock(ctx context.Context, studentID, conceptID string) (bool, error) {
	m, err := t.Get(ctx, studentID, conceptID)
	if err != nil {
		return false, err
	}
	if m.IsUnlocked && m.Version > 0 {
		return false, nil
	}

	wasUnlocked := m.IsUnlocked
	now := t.now()
	m.IsUnlocked = true
	if m.UnlockedAt == nil {
		m.UnlockedAt = &now
	}
	m.UpdatedAt = now
	if err := t.mastery.Save(ctx, m); err != nil {
		return false, fmt.Errorf("unlock %s: %w", conceptID, err)
	}
	if wasUnlocked {
		// A root concept's default row was only materialized.
		return false, nil
	}

	if err := t.record(ctx, store.MasteryEventData{
		StudentID:         studentID,
		ConceptID:         conceptID,
		Kind:              store.MasteryEventUnlocked,
		MasteryPercentage: m.MasteryPercentage,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// AutoUnlockDependents unlocks every direct dependent of conceptID whose
// direct prerequisites are now all met. It walks one reverse edge; callers
// re-invoke it for each newly mastered concept.
func (t *Tracker) AutoUnlockDependents(ctx context.Context, studentID, conceptID string) ([]string, error) {
	var unlocked []string
	for _, depID := range t.graph.Dependents(conceptID) {
		met, _, err := t.CheckPrerequisitesMet(ctx, studentID, depID)
		if err != nil {
			return nil, err
		}
		if !met {
			continue
		}
		ok, err := t.Unlock(ctx, studentID, depID)
		if err != nil {
			return nil, err
		}
		if ok {
			t.logger.Info("concept unlocked",
				zap.String("student", studentID),
				zap.String("concept", depID),
				zap.String("via", conceptID))
			unlocked = append(unlocked, depID)
		}
	}
	return unlocked, nil
}

func (t *Tracker) record(ctx context.Context, data store.MasteryEventData) error {
	if t.events == nil {
		return nil
	}
	if err := t.events.AppendMasteryEvent(ctx, data); err != nil {
		return fmt.Errorf("record %s event: %w", data.Kind, err)
	}
	return nil
}
