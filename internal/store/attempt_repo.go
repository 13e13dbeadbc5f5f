package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type attemptRepo struct{ Repos }

var attemptColumns = []string{
	"id", "student_id", "test_id", "concept_ids", "current_difficulty",
	"served_question_ids", "total_count", "retry_queue", "retry_counts",
	"pending_question_id", "status", "started_at", "completed_at", "version",
}

// attemptJSON holds the encoded collection columns of an attempt.
type attemptJSON struct {
	concepts, served, queue, counts string
}

func encodeAttempt(a *Attempt) (attemptJSON, error) {
	var (
		enc attemptJSON
		err error
	)
	if enc.concepts, err = toJSON(nonNilStrings(a.ConceptIDs)); err != nil {
		return enc, err
	}
	if enc.served, err = toJSON(nonNilStrings(a.ServedIDs)); err != nil {
		return enc, err
	}
	if enc.queue, err = toJSON(nonNilStrings(a.RetryQueue)); err != nil {
		return enc, err
	}
	counts := a.RetryCounts
	if counts == nil {
		counts = map[string]int{}
	}
	if enc.counts, err = toJSON(counts); err != nil {
		return enc, err
	}
	return enc, nil
}

func (r *attemptRepo) Create(ctx context.Context, a *Attempt) error {
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = AttemptInProgress
	}
	if err := r.s.check(a); err != nil {
		return err
	}
	enc, err := encodeAttempt(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}

	a.Version = 1
	_, err = r.exec(ctx, builder().Insert(tableAttempts).
		Columns(attemptColumns...).
		Values(a.ID, a.StudentID, a.TestID, enc.concepts, a.CurrentDifficulty,
			enc.served, a.TotalCount, enc.queue, enc.counts,
			a.PendingQuestionID, string(a.Status), a.StartedAt, timeArg(a.CompletedAt), a.Version))
	if err != nil {
		a.Version = 0
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) Get(ctx context.Context, id string) (*Attempt, error) {
	query, args := builder().Select(attemptColumns...).
		From(builder().Table(tableAttempts)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		a                             Attempt
		status                        string
		concepts, served, queue, cnts sql.NullString
		completed                     sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.StudentID, &a.TestID, &concepts, &a.CurrentDifficulty,
		&served, &a.TotalCount, &queue, &cnts,
		&a.PendingQuestionID, &status, &a.StartedAt, &completed, &a.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	a.Status = AttemptStatus(status)
	a.CompletedAt = nullTime(completed)
	for _, f := range []struct {
		col sql.NullString
		dst any
	}{
		{concepts, &a.ConceptIDs},
		{served, &a.ServedIDs},
		{queue, &a.RetryQueue},
		{cnts, &a.RetryCounts},
	} {
		if err := fromJSON(f.col, f.dst); err != nil {
			return nil, fmt.Errorf("decode attempt %s: %w", id, err)
		}
	}
	if a.RetryCounts == nil {
		a.RetryCounts = map[string]int{}
	}
	return &a, nil
}

func (r *attemptRepo) Save(ctx context.Context, a *Attempt) error {
	if err := r.s.check(a); err != nil {
		return err
	}
	enc, err := encodeAttempt(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}

	err = r.execCAS(ctx, builder().Update(tableAttempts).
		Set("current_difficulty", a.CurrentDifficulty).
		Set("served_question_ids", enc.served).
		Set("total_count", a.TotalCount).
		Set("retry_queue", enc.queue).
		Set("retry_counts", enc.counts).
		Set("pending_question_id", a.PendingQuestionID).
		Set("status", string(a.Status)).
		Set("completed_at", timeArg(a.CompletedAt)).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("id", a.ID),
			entsql.EQ("version", a.Version),
		)))
	if err != nil {
		return fmt.Errorf("save attempt %s: %w", a.ID, err)
	}
	a.Version++
	return nil
}
