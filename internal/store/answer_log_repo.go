package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type answerLogRepo struct{ Repos }

var answerLogColumns = []string{
	"id", "sequence", "timestamp", "attempt_id", "student_id", "question_id",
	"concept_id", "difficulty", "round", "is_correct", "points_earned", "points_possible",
}

func (r *answerLogRepo) Append(ctx context.Context, l *AnswerLog) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	if l.Round == 0 {
		l.Round = 1
	}
	if err := r.s.check(l); err != nil {
		return err
	}

	seq, err := r.nextSequence(ctx)
	if err != nil {
		return err
	}
	l.Sequence = seq

	res, err := r.exec(ctx, builder().Insert(tableAnswerLogs).
		Columns(answerLogColumns[1:]...).
		Values(l.Sequence, l.Timestamp, l.AttemptID, l.StudentID, l.QuestionID,
			l.ConceptID, l.Difficulty, l.Round, l.IsCorrect, l.PointsEarned, l.PointsPossible))
	if err != nil {
		return fmt.Errorf("append answer log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		l.ID = int(id)
	}
	return nil
}

func (r *answerLogRepo) Recent(ctx context.Context, attemptID string, limit int) ([]AnswerLog, error) {
	sel := builder().Select(answerLogColumns...).
		From(builder().Table(tableAnswerLogs)).
		Where(entsql.EQ("attempt_id", attemptID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.list(ctx, sel)
}

func (r *answerLogRepo) ByAttempt(ctx context.Context, attemptID string) ([]AnswerLog, error) {
	return r.list(ctx, builder().Select(answerLogColumns...).
		From(builder().Table(tableAnswerLogs)).
		Where(entsql.EQ("attempt_id", attemptID)).
		OrderBy("sequence"))
}

func (r *answerLogRepo) list(ctx context.Context, sel *entsql.Selector) ([]AnswerLog, error) {
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query answer logs: %w", err)
	}
	defer rows.Close()

	var out []AnswerLog
	for rows.Next() {
		var l AnswerLog
		if err := rows.Scan(&l.ID, &l.Sequence, &l.Timestamp, &l.AttemptID, &l.StudentID,
			&l.QuestionID, &l.ConceptID, &l.Difficulty, &l.Round, &l.IsCorrect,
			&l.PointsEarned, &l.PointsPossible); err != nil {
			return nil, fmt.Errorf("scan answer log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
