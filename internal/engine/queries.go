package engine

import (
	"context"
	"fmt"

	"github.com/abhisek/mathprogress/internal/spacedrep"
	"github.com/abhisek/mathprogress/internal/store"
)

// ConceptStatus is one row of a student's mastery overview.
type ConceptStatus struct {
	Concept          store.Concept
	Mastery          store.ConceptMastery
	PrerequisitesMet bool
	Unmet            []string
}

// Attempt loads an attempt.
func (s *Service) Attempt(ctx context.Context, attemptID string) (*store.Attempt, error) {
	var a *store.Attempt
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		a, err = tx.Attempts().Get(ctx, attemptID)
		return err
	})
	return a, err
}

// DueReviews lists the student's reviews due today, in review order. A
// positive limit caps the result.
func (s *Service) DueReviews(ctx context.Context, studentID string, limit int) ([]store.WrongAnswerReview, error) {
	var due []store.WrongAnswerReview
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		due, err = spacedrep.NewScheduler(tx.Reviews(), s.cal, s.logger).Due(ctx, studentID, limit)
		return err
	})
	return due, err
}

// ReviewStats summarizes the student's review records.
func (s *Service) ReviewStats(ctx context.Context, studentID string) (spacedrep.Stats, error) {
	var st spacedrep.Stats
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		st, err = spacedrep.NewScheduler(tx.Reviews(), s.cal, s.logger).Stats(ctx, studentID)
		return err
	})
	return st, err
}

// MasteryOverview reports every concept's mastery for the student in
// prerequisite order. Concepts never practiced show their default row.
func (s *Service) MasteryOverview(ctx context.Context, studentID string) ([]ConceptStatus, error) {
	graph := s.Graph()
	var out []ConceptStatus
	err := s.store.View(ctx, func(tx *store.Tx) error {
		tracker := s.tracker(tx)
		for _, id := range graph.TopoOrder() {
			c, err := graph.Get(id)
			if err != nil {
				return err
			}
			m, err := tracker.Get(ctx, studentID, id)
			if err != nil {
				return err
			}
			met, unmet, err := tracker.CheckPrerequisitesMet(ctx, studentID, id)
			if err != nil {
				return err
			}
			out = append(out, ConceptStatus{Concept: c, Mastery: *m, PrerequisitesMet: met, Unmet: unmet})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mastery overview: %w", err)
	}
	return out, nil
}

// FocusChecks lists the student's focus-check items.
func (s *Service) FocusChecks(ctx context.Context, studentID string, unresolvedOnly bool) ([]store.FocusCheckItem, error) {
	var items []store.FocusCheckItem
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		items, err = tx.FocusChecks().ByStudent(ctx, studentID, unresolvedOnly)
		return err
	})
	return items, err
}

// MasteryEvents lists the student's mastery and unlock events.
func (s *Service) MasteryEvents(ctx context.Context, studentID string, opts store.QueryOpts) ([]store.MasteryEventRecord, error) {
	var events []store.MasteryEventRecord
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		events, err = tx.Events().QueryMasteryEvents(ctx, studentID, opts)
		return err
	})
	return events, err
}
