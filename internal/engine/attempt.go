package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/blanks"
	"github.com/abhisek/mathprogress/internal/difficulty"
	"github.com/abhisek/mathprogress/internal/escalation"
	"github.com/abhisek/mathprogress/internal/hints"
	"github.com/abhisek/mathprogress/internal/mastery"
	"github.com/abhisek/mathprogress/internal/spacedrep"
	"github.com/abhisek/mathprogress/internal/store"
)

// StartInput describes a new attempt. A non-positive TotalCount uses the
// service default.
type StartInput struct {
	StudentID  string
	TestID     string
	ConceptIDs []string
	TotalCount int
}

// Served is a question handed to the student.
type Served struct {
	AttemptID   string
	Question    store.Question
	Round       int
	IsRetry     bool
	DisplayText string
	Blanks      []blanks.Blank

	// Difficulty is the served question's difficulty; Target is the level
	// the adapter asked for. They differ when the pool had to widen.
	Difficulty int
	Target     int

	// Position counts new questions served so far, out of Total.
	Position int
	Total    int
}

// Submission is the result of answering the served question.
type Submission struct {
	escalation.Outcome

	Round           int
	Difficulty      int
	NextDifficulty  int
	Streak          int
	ComboPoints     int
	ReviewGraduated bool
}

// Completion summarizes a finished attempt.
type Completion struct {
	AttemptID      string
	Planned        int
	Answered       int
	Correct        int
	PointsEarned   int
	PointsPossible int
	Mastery        map[string]int
	NewlyMastered  []string
	Unlocked       []string
}

// StartAttempt calibrates the starting difficulty and opens an attempt
// over the given concepts. Every concept must exist in the graph and be
// unlocked for the student. A locked concept whose prerequisites have since
// been mastered is unlocked on the spot; otherwise a *LockedError is
// returned.
func (s *Service) StartAttempt(ctx context.Context, in StartInput) (_ *store.Attempt, err error) {
	ctx, end := s.span(ctx, "start_attempt",
		attribute.String("student.id", in.StudentID),
		attribute.StringSlice("concept.ids", in.ConceptIDs))
	defer end(&err)

	if in.StudentID == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrInvalidInput)
	}
	conceptIDs := dedupe(in.ConceptIDs)
	if len(conceptIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one concept is required", ErrInvalidInput)
	}
	graph := s.Graph()
	for _, id := range conceptIDs {
		if _, err := graph.Get(id); err != nil {
			return nil, err
		}
	}
	total := in.TotalCount
	if total <= 0 {
		total = s.defaultTotal
	}
	id := s.id()

	var a *store.Attempt
	err = s.update(ctx, func(tx *store.Tx) error {
		adapter := difficulty.NewAdapter(tx.Profiles(), tx.Questions(), s.childRand())
		start, err := adapter.Initial(ctx, in.StudentID, conceptIDs)
		if err != nil {
			return err
		}

		tracker := s.tracker(tx)
		for _, cid := range conceptIDs {
			m, err := tracker.Ensure(ctx, in.StudentID, cid)
			if err != nil {
				return err
			}
			if m.IsUnlocked {
				continue
			}
			met, unmet, err := tracker.CheckPrerequisitesMet(ctx, in.StudentID, cid)
			if err != nil {
				return err
			}
			if !met {
				return &LockedError{ConceptID: cid, Unmet: unmet}
			}
			if _, err := tracker.Unlock(ctx, in.StudentID, cid); err != nil {
				return err
			}
		}

		a = &store.Attempt{
			ID:                id,
			StudentID:         in.StudentID,
			TestID:            in.TestID,
			ConceptIDs:        conceptIDs,
			CurrentDifficulty: start,
			TotalCount:        total,
			RetryCounts:       map[string]int{},
			Status:            store.AttemptInProgress,
			StartedAt:         s.now(),
		}
		return tx.Attempts().Create(ctx, a)
	})
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	s.metrics.attemptsStarted.Inc()
	s.logger.Info("attempt started",
		zap.String("attempt_id", a.ID),
		zap.String("student", a.StudentID),
		zap.Strings("concepts", a.ConceptIDs),
		zap.Int("difficulty", a.CurrentDifficulty),
		zap.Int("total", a.TotalCount))
	return a, nil
}

// NextQuestion returns the question the student should answer next, or
// nil when nothing is left to serve. Calling it again before an answer is
// submitted returns the same question.
func (s *Service) NextQuestion(ctx context.Context, attemptID string) (_ *Served, err error) {
	ctx, end := s.span(ctx, "next_question", attribute.String("attempt.id", attemptID))
	defer end(&err)

	var served *Served
	var exhausted bool
	err = s.update(ctx, func(tx *store.Tx) error {
		served, exhausted = nil, false

		a, err := tx.Attempts().Get(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.Status == store.AttemptCompleted {
			return ErrAttemptCompleted
		}

		if a.PendingQuestionID != "" {
			q, err := tx.Questions().Get(ctx, a.PendingQuestionID)
			if err != nil {
				return fmt.Errorf("load pending question: %w", err)
			}
			served = s.render(a, q, a.CurrentDifficulty)
			return nil
		}

		recent, err := tx.AnswerLogs().Recent(ctx, a.ID, 2)
		if err != nil {
			return fmt.Errorf("load recent answers: %w", err)
		}
		last := ""
		if len(recent) > 0 {
			last = recent[0].QuestionID
		}

		if len(a.RetryQueue) > 0 && a.RetryQueue[0] != last {
			return s.serveRetry(ctx, tx, a, a.RetryQueue[0], &served)
		}

		if len(a.ServedIDs) < a.TotalCount {
			target := difficulty.NextDifficulty(a.CurrentDifficulty, recent)
			adapter := difficulty.NewAdapter(tx.Profiles(), tx.Questions(), s.childRand())
			q, ok, err := adapter.SelectQuestion(ctx, a.ConceptIDs, target, a.ServedIDs)
			if err != nil {
				return err
			}
			if ok {
				a.ServedIDs = append(a.ServedIDs, q.ID)
				a.CurrentDifficulty = q.Difficulty
				a.PendingQuestionID = q.ID
				if err := tx.Attempts().Save(ctx, a); err != nil {
					return err
				}
				served = s.render(a, q, target)
				return nil
			}
			a.TotalCount = len(a.ServedIDs)
			exhausted = true
		}

		if len(a.RetryQueue) > 0 {
			next := a.RetryQueue[0]
			for _, id := range a.RetryQueue {
				if id != last {
					next = id
					break
				}
			}
			return s.serveRetry(ctx, tx, a, next, &served)
		}

		if exhausted {
			return tx.Attempts().Save(ctx, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("next question: %w", err)
	}

	if exhausted {
		s.metrics.poolExhausted.Inc()
		s.logger.Warn("question pool exhausted, ending attempt early",
			zap.String("attempt_id", attemptID))
	}
	return served, nil
}

func (s *Service) serveRetry(ctx context.Context, tx *store.Tx, a *store.Attempt, questionID string, out **Served) error {
	q, err := tx.Questions().Get(ctx, questionID)
	if err != nil {
		return fmt.Errorf("load retry question: %w", err)
	}
	a.PendingQuestionID = q.ID
	if err := tx.Attempts().Save(ctx, a); err != nil {
		return err
	}
	*out = s.render(a, q, a.CurrentDifficulty)
	return nil
}

// render presents q for its current round. Fill-blank questions get the
// blanks of that round; others are shown verbatim.
func (s *Service) render(a *store.Attempt, q store.Question, target int) *Served {
	round := a.RetryCounts[q.ID] + 1
	out := &Served{
		AttemptID:   a.ID,
		Question:    q,
		Round:       round,
		IsRetry:     round > 1,
		DisplayText: q.Text,
		Difficulty:  q.Difficulty,
		Target:      target,
		Position:    len(a.ServedIDs),
		Total:       a.TotalCount,
	}
	if q.IsFillBlank() {
		r := blanks.Generate(q, round, a.StudentID, a.ID)
		out.DisplayText = r.DisplayText
		out.Blanks = r.Blanks
	}
	return out
}

// SubmitAnswer grades the answer to the pending question. answer is a
// scalar, or a map of blank ID to word for fill-blank questions.
func (s *Service) SubmitAnswer(ctx context.Context, attemptID, questionID string, answer any) (_ *Submission, err error) {
	ctx, end := s.span(ctx, "submit_answer",
		attribute.String("attempt.id", attemptID),
		attribute.String("question.id", questionID))
	defer end(&err)

	var (
		sub Submission
		q   store.Question
	)
	err = s.update(ctx, func(tx *store.Tx) error {
		sub = Submission{}

		a, err := tx.Attempts().Get(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.Status == store.AttemptCompleted {
			return ErrAttemptCompleted
		}
		if a.PendingQuestionID == "" || a.PendingQuestionID != questionID {
			return ErrNotServed
		}
		if q, err = tx.Questions().Get(ctx, questionID); err != nil {
			return fmt.Errorf("load question: %w", err)
		}

		round := a.RetryCounts[q.ID] + 1
		var key any
		if q.IsFillBlank() {
			// Regenerated from the seed so grading sees the blanks that were shown.
			if r := blanks.Generate(q, round, a.StudentID, a.ID); len(r.Answers) > 0 {
				key = r.Answers
			}
		}

		queueOpts := []escalation.Option{escalation.WithLogger(s.logger)}
		if s.newID != nil {
			queueOpts = append(queueOpts, escalation.WithIDGenerator(s.newID))
		}
		queue := escalation.NewQueue(tx.Attempts(), tx.FocusChecks(), queueOpts...)
		out, err := queue.Apply(ctx, a, q, answer, key)
		if err != nil {
			return err
		}
		a.PendingQuestionID = ""
		if err := tx.Attempts().Save(ctx, a); err != nil {
			return err
		}

		if err := tx.AnswerLogs().Append(ctx, &store.AnswerLog{
			Timestamp:      s.now(),
			AttemptID:      a.ID,
			StudentID:      a.StudentID,
			QuestionID:     q.ID,
			ConceptID:      q.ConceptID,
			Difficulty:     q.Difficulty,
			Round:          round,
			IsCorrect:      out.IsCorrect,
			PointsEarned:   out.PointsEarned,
			PointsPossible: out.PointsPossible,
		}); err != nil {
			return err
		}

		sched := spacedrep.NewScheduler(tx.Reviews(), s.cal, s.logger)
		if out.IsCorrect {
			if sub.ReviewGraduated, err = sched.RegisterCorrect(ctx, a.StudentID, q.ID); err != nil {
				return err
			}
		} else if err := sched.RegisterWrong(ctx, a.StudentID, q.ID); err != nil {
			return err
		}

		logs, err := tx.AnswerLogs().ByAttempt(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		sub.Streak = trailingCorrect(logs)
		if out.IsCorrect {
			sub.ComboPoints = blanks.ComboBonus(sub.Streak, out.PointsEarned)
		}

		recent := slices.Clone(logs[max(0, len(logs)-2):])
		slices.Reverse(recent)
		sub.Outcome = out
		sub.Round = round
		sub.Difficulty = q.Difficulty
		sub.NextDifficulty = difficulty.NextDifficulty(a.CurrentDifficulty, recent)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	s.metrics.answers.WithLabelValues(strconv.FormatBool(sub.IsCorrect)).Inc()
	switch {
	case sub.MovedToFocusCheck:
		s.metrics.escalations.WithLabelValues("focus_check").Inc()
	case sub.RetryScheduled:
		s.metrics.escalations.WithLabelValues("retry").Inc()
	}

	// Hint text may come from an LLM, so it is fetched outside the
	// transaction.
	if sub.Hint != nil {
		concept, _ := s.Graph().Get(q.ConceptID)
		h := hints.Resolve(ctx, s.hints, *sub.Hint, hints.Request{Question: q, Concept: concept})
		sub.Hint = &h
	}

	s.logger.Debug("answer submitted",
		zap.String("attempt_id", attemptID),
		zap.String("question_id", questionID),
		zap.Bool("correct", sub.IsCorrect),
		zap.Int("round", sub.Round),
		zap.Int("retry_count", sub.RetryCount))
	return &sub, nil
}

// trailingCorrect counts the correct answers at the end of logs.
func trailingCorrect(logs []store.AnswerLog) int {
	n := 0
	for i := len(logs) - 1; i >= 0 && logs[i].IsCorrect; i-- {
		n++
	}
	return n
}

// CompleteAttempt closes the attempt, folds its answers into mastery and
// unlocks the dependents of newly mastered concepts. An attempt completes
// once.
func (s *Service) CompleteAttempt(ctx context.Context, attemptID string) (_ *Completion, err error) {
	ctx, end := s.span(ctx, "complete_attempt", attribute.String("attempt.id", attemptID))
	defer end(&err)

	var c Completion
	err = s.update(ctx, func(tx *store.Tx) error {
		c = Completion{AttemptID: attemptID}

		a, err := tx.Attempts().Get(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.Status == store.AttemptCompleted {
			return ErrAttemptCompleted
		}
		now := s.now()
		a.Status = store.AttemptCompleted
		a.CompletedAt = &now
		a.PendingQuestionID = ""
		if err := tx.Attempts().Save(ctx, a); err != nil {
			return err
		}

		tracker := s.tracker(tx)
		rollup, err := tracker.RollUpAttempt(ctx, a.StudentID, a.ID)
		if err != nil {
			return err
		}
		c.Mastery = rollup.Mastery
		c.NewlyMastered = rollup.NewlyMastered
		for _, cid := range rollup.NewlyMastered {
			unlocked, err := tracker.AutoUnlockDependents(ctx, a.StudentID, cid)
			if err != nil {
				return err
			}
			c.Unlocked = append(c.Unlocked, unlocked...)
		}

		logs, err := tx.AnswerLogs().ByAttempt(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		c.Planned = a.TotalCount
		c.Answered = len(logs)
		for _, l := range logs {
			if l.IsCorrect {
				c.Correct++
			}
			c.PointsEarned += l.PointsEarned
			c.PointsPossible += l.PointsPossible
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	s.metrics.attemptsCompleted.Inc()
	s.metrics.mastered.Add(float64(len(c.NewlyMastered)))
	s.metrics.unlocked.Add(float64(len(c.Unlocked)))
	s.logger.Info("attempt completed",
		zap.String("attempt_id", attemptID),
		zap.Int("answered", c.Answered),
		zap.Int("correct", c.Correct),
		zap.Strings("mastered", c.NewlyMastered),
		zap.Strings("unlocked", c.Unlocked))
	return &c, nil
}

func (s *Service) tracker(tx *store.Tx) *mastery.Tracker {
	return mastery.NewTracker(tx.Mastery(), tx.AnswerLogs(), s.Graph(),
		mastery.WithEvents(tx.Events()),
		mastery.WithClock(s.now),
		mastery.WithLogger(s.logger))
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
