// Package spacedrep re-schedules wrongly answered questions for review at
// expanding intervals until they graduate.
package spacedrep

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/store"
)

// Scheduler manages wrong-answer review records.
type Scheduler struct {
	reviews store.ReviewRepo
	cal     *Calendar
	logger  *zap.Logger
}

// NewScheduler creates a scheduler. A nil calendar uses DefaultUTCOffset.
func NewScheduler(reviews store.ReviewRepo, cal *Calendar, logger *zap.Logger) *Scheduler {
	if cal == nil {
		cal = NewCalendar(DefaultUTCOffset)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{reviews: reviews, cal: cal, logger: logger}
}

// RegisterWrong records a miss: the question restarts at stage 1 and is
// due tomorrow, whatever its previous state.
func (s *Scheduler) RegisterWrong(ctx context.Context, studentID, questionID string) error {
	rv, err := s.reviews.Get(ctx, studentID, questionID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}
	if rv == nil {
		rv = &store.WrongAnswerReview{StudentID: studentID, QuestionID: questionID}
	}

	rv.Stage = FirstStage
	rv.NextReviewDate = s.cal.AddDays(IntervalDays(FirstStage))
	rv.WrongCount++
	rv.CorrectStreak = 0
	rv.LastWrongAt = s.cal.Now()
	rv.IsGraduated = false

	if err := s.reviews.Save(ctx, rv); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	s.logger.Debug("review scheduled",
		zap.String("student", studentID),
		zap.String("question", questionID),
		zap.String("next", rv.NextReviewDate))
	return nil
}

// RegisterCorrect advances a tracked question by one stage, graduating it
// after stage 5. It reports whether the question graduated. Untracked and
// graduated questions are left alone.
func (s *Scheduler) RegisterCorrect(ctx context.Context, studentID, questionID string) (bool, error) {
	rv, err := s.reviews.Get(ctx, studentID, questionID)
	if err != nil {
		return false, fmt.Errorf("load review: %w", err)
	}
	if rv == nil || rv.IsGraduated {
		return false, nil
	}

	now := s.cal.Now()
	rv.CorrectStreak++
	rv.LastReviewedAt = &now

	graduated := false
	if rv.Stage >= MaxStage {
		rv.IsGraduated = true
		rv.NextReviewDate = ""
		graduated = true
	} else {
		rv.Stage++
		rv.NextReviewDate = s.cal.AddDays(IntervalDays(rv.Stage))
	}

	if err := s.reviews.Save(ctx, rv); err != nil {
		return false, fmt.Errorf("save review: %w", err)
	}
	if graduated {
		s.logger.Info("review graduated",
			zap.String("student", studentID),
			zap.String("question", questionID))
	}
	return graduated, nil
}

// Due returns the reviews due today or earlier, lowest stage first, then
// most recently missed first, then by question ID. A positive limit caps
// the result.
func (s *Scheduler) Due(ctx context.Context, studentID string, limit int) ([]store.WrongAnswerReview, error) {
	due, err := s.reviews.Due(ctx, studentID, s.cal.Today())
	if err != nil {
		return nil, fmt.Errorf("load due reviews: %w", err)
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Stage != due[j].Stage {
			return due[i].Stage < due[j].Stage
		}
		if !due[i].LastWrongAt.Equal(due[j].LastWrongAt) {
			return due[i].LastWrongAt.After(due[j].LastWrongAt)
		}
		return due[i].QuestionID < due[j].QuestionID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// DueQuestionIDs returns the IDs of Due reviews.
func (s *Scheduler) DueQuestionIDs(ctx context.Context, studentID string, limit int) ([]string, error) {
	due, err := s.Due(ctx, studentID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(due))
	for i, rv := range due {
		ids[i] = rv.QuestionID
	}
	return ids, nil
}

// Stats summarizes a student's review records.
type Stats struct {
	Tracked    int
	Graduated  int
	DueToday   int
	ByStage    map[int]int // active (non-graduated) records per stage
	TotalWrong int
}

// Stats computes review statistics for a student.
func (s *Scheduler) Stats(ctx context.Context, studentID string) (Stats, error) {
	all, err := s.reviews.ByStudent(ctx, studentID)
	if err != nil {
		return Stats{}, fmt.Errorf("load reviews: %w", err)
	}

	today := s.cal.Today()
	st := Stats{ByStage: make(map[int]int)}
	for _, rv := range all {
		st.Tracked++
		st.TotalWrong += rv.WrongCount
		if rv.IsGraduated {
			st.Graduated++
			continue
		}
		st.ByStage[rv.Stage]++
		if rv.NextReviewDate != "" && rv.NextReviewDate <= today {
			st.DueToday++
		}
	}
	return st, nil
}
