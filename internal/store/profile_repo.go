package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type profileRepo struct{ Repos }

func (r *profileRepo) Get(ctx context.Context, studentID string) (Student, error) {
	query, args := builder().Select("id", "name", "level").
		From(builder().Table(tableStudents)).
		Where(entsql.EQ("id", studentID)).
		Query()

	var s Student
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.Name, &s.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("student %q: %w", studentID, ErrNotFound)
	}
	if err != nil {
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

func (r *profileRepo) Upsert(ctx context.Context, s Student) error {
	if err := r.s.check(s); err != nil {
		return err
	}
	_, err := r.exec(ctx, builder().Insert(tableStudents).
		Columns("id", "name", "level").
		Values(s.ID, s.Name, s.Level).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()))
	if err != nil {
		return fmt.Errorf("upsert student %s: %w", s.ID, err)
	}
	return nil
}

func (r *profileRepo) Accuracy(ctx context.Context, studentID string, conceptIDs []string) (float64, bool, error) {
	if len(conceptIDs) == 0 {
		return 0, false, nil
	}

	rows, err := r.query(ctx, builder().Select("is_correct").
		From(builder().Table(tableAnswerLogs)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.In("concept_id", anySlice(conceptIDs)...),
		)))
	if err != nil {
		return 0, false, fmt.Errorf("query answer history: %w", err)
	}
	defer rows.Close()

	var total, correct int
	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			return 0, false, fmt.Errorf("scan answer history: %w", err)
		}
		total++
		if ok {
			correct++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	if total == 0 {
		return 0, false, nil
	}
	return float64(correct) / float64(total), true, nil
}
