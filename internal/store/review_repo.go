package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type reviewRepo struct{ Repos }

var reviewColumns = []string{
	"student_id", "question_id", "stage", "next_review_date", "wrong_count",
	"correct_streak", "last_wrong_at", "last_reviewed_at", "is_graduated",
}

func scanReview(row interface{ Scan(...any) error }) (WrongAnswerReview, error) {
	var (
		rv       WrongAnswerReview
		next     sql.NullString
		reviewed sql.NullTime
	)
	err := row.Scan(&rv.StudentID, &rv.QuestionID, &rv.Stage, &next, &rv.WrongCount,
		&rv.CorrectStreak, &rv.LastWrongAt, &reviewed, &rv.IsGraduated)
	if err != nil {
		return WrongAnswerReview{}, err
	}
	rv.NextReviewDate = next.String
	rv.LastReviewedAt = nullTime(reviewed)
	return rv, nil
}

func (r *reviewRepo) Get(ctx context.Context, studentID, questionID string) (*WrongAnswerReview, error) {
	query, args := builder().Select(reviewColumns...).
		From(builder().Table(tableReviews)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("question_id", questionID),
		)).
		Query()
	rv, err := scanReview(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rv, nil
}

func (r *reviewRepo) Save(ctx context.Context, rv *WrongAnswerReview) error {
	if err := r.s.check(rv); err != nil {
		return err
	}

	var next any
	if rv.NextReviewDate != "" {
		next = rv.NextReviewDate
	}
	_, err := r.exec(ctx, builder().Insert(tableReviews).
		Columns(reviewColumns...).
		Values(rv.StudentID, rv.QuestionID, rv.Stage, next, rv.WrongCount,
			rv.CorrectStreak, rv.LastWrongAt, timeArg(rv.LastReviewedAt), rv.IsGraduated).
		OnConflict(
			entsql.ConflictColumns("student_id", "question_id"),
			entsql.ResolveWithNewValues(),
		))
	if err != nil {
		return fmt.Errorf("save review %s/%s: %w", rv.StudentID, rv.QuestionID, err)
	}
	return nil
}

func (r *reviewRepo) Due(ctx context.Context, studentID, today string) ([]WrongAnswerReview, error) {
	return r.list(ctx, builder().Select(reviewColumns...).
		From(builder().Table(tableReviews)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("is_graduated", false),
			entsql.NotNull("next_review_date"),
			entsql.LTE("next_review_date", today),
		)))
}

func (r *reviewRepo) ByStudent(ctx context.Context, studentID string) ([]WrongAnswerReview, error) {
	return r.list(ctx, builder().Select(reviewColumns...).
		From(builder().Table(tableReviews)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("question_id"))
}

func (r *reviewRepo) list(ctx context.Context, sel *entsql.Selector) ([]WrongAnswerReview, error) {
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []WrongAnswerReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
