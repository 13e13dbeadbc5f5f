package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type questionRepo struct{ Repos }

var questionColumns = []string{
	"id", "concept_id", "difficulty", "category", "text", "answer",
	"explanation", "blank_config", "points", "active",
}

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var (
		q     Question
		blank sql.NullString
	)
	err := row.Scan(&q.ID, &q.ConceptID, &q.Difficulty, &q.Category, &q.Text, &q.Answer,
		&q.Explanation, &blank, &q.Points, &q.Active)
	if err != nil {
		return Question{}, err
	}
	if blank.Valid && blank.String != "" && blank.String != "null" {
		var cfg BlankConfig
		if err := fromJSON(blank, &cfg); err != nil {
			return Question{}, fmt.Errorf("decode blank config of %s: %w", q.ID, err)
		}
		q.BlankConfig = &cfg
	}
	return q, nil
}

func (r *questionRepo) Get(ctx context.Context, id string) (Question, error) {
	query, args := builder().Select(questionColumns...).
		From(builder().Table(tableQuestions)).
		Where(entsql.EQ("id", id)).
		Query()
	q, err := scanQuestion(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (r *questionRepo) Pool(ctx context.Context, conceptIDs []string, difficulty int, exclude []string) ([]Question, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}

	preds := []*entsql.Predicate{
		entsql.In("concept_id", anySlice(conceptIDs)...),
		entsql.EQ("difficulty", difficulty),
		entsql.EQ("active", true),
	}
	if len(exclude) > 0 {
		preds = append(preds, entsql.NotIn("id", anySlice(exclude)...))
	}

	rows, err := r.query(ctx, builder().Select(questionColumns...).
		From(builder().Table(tableQuestions)).
		Where(entsql.And(preds...)).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("query question pool: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *questionRepo) Upsert(ctx context.Context, q Question) error {
	if err := r.s.check(q); err != nil {
		return err
	}

	var blank any
	if q.BlankConfig != nil {
		s, err := toJSON(q.BlankConfig)
		if err != nil {
			return fmt.Errorf("encode blank config: %w", err)
		}
		blank = s
	}

	_, err := r.exec(ctx, builder().Insert(tableQuestions).
		Columns(questionColumns...).
		Values(q.ID, q.ConceptID, q.Difficulty, q.Category, q.Text, q.Answer,
			q.Explanation, blank, q.Points, q.Active).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()))
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}
