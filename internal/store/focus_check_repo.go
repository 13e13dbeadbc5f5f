package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type focusCheckRepo struct{ Repos }

var focusCheckColumns = []string{
	"id", "student_id", "question_id", "attempt_id", "wrong_count", "resolved", "created_at",
}

func (r *focusCheckRepo) Create(ctx context.Context, item *FocusCheckItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if err := r.s.check(item); err != nil {
		return false, err
	}

	res, err := r.exec(ctx, builder().Insert(tableFocusChecks).
		Columns(focusCheckColumns...).
		Values(item.ID, item.StudentID, item.QuestionID, item.AttemptID,
			item.WrongCount, item.Resolved, item.CreatedAt).
		OnConflict(
			entsql.ConflictColumns("attempt_id", "question_id"),
			entsql.DoNothing(),
		))
	if err != nil {
		return false, fmt.Errorf("create focus check item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *focusCheckRepo) ByStudent(ctx context.Context, studentID string, unresolvedOnly bool) ([]FocusCheckItem, error) {
	pred := entsql.EQ("student_id", studentID)
	if unresolvedOnly {
		pred = entsql.And(pred, entsql.EQ("resolved", false))
	}
	rows, err := r.query(ctx, builder().Select(focusCheckColumns...).
		From(builder().Table(tableFocusChecks)).
		Where(pred).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list focus check items: %w", err)
	}
	defer rows.Close()

	var out []FocusCheckItem
	for rows.Next() {
		var it FocusCheckItem
		if err := rows.Scan(&it.ID, &it.StudentID, &it.QuestionID, &it.AttemptID,
			&it.WrongCount, &it.Resolved, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan focus check item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
