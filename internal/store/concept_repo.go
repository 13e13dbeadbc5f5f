package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type conceptRepo struct{ Repos }

var conceptColumns = []string{"id", "name", "description", "category", "part", "grade", "prerequisites"}

func scanConcept(row interface{ Scan(...any) error }) (Concept, error) {
	var (
		c       Concept
		prereqs sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &c.Part, &c.Grade, &prereqs); err != nil {
		return Concept{}, err
	}
	if err := fromJSON(prereqs, &c.Prerequisites); err != nil {
		return Concept{}, fmt.Errorf("decode prerequisites of %s: %w", c.ID, err)
	}
	return c, nil
}

func (r *conceptRepo) Get(ctx context.Context, id string) (Concept, error) {
	query, args := builder().Select(conceptColumns...).
		From(builder().Table(tableConcepts)).
		Where(entsql.EQ("id", id)).
		Query()
	c, err := scanConcept(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Concept{}, fmt.Errorf("concept %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Concept{}, fmt.Errorf("get concept: %w", err)
	}
	return c, nil
}

func (r *conceptRepo) All(ctx context.Context) ([]Concept, error) {
	rows, err := r.query(ctx, builder().Select(conceptColumns...).
		From(builder().Table(tableConcepts)).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var out []Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *conceptRepo) Upsert(ctx context.Context, c Concept) error {
	if err := r.s.check(c); err != nil {
		return err
	}
	prereqs, err := toJSON(nonNilStrings(c.Prerequisites))
	if err != nil {
		return fmt.Errorf("encode prerequisites: %w", err)
	}

	_, err = r.exec(ctx, builder().Insert(tableConcepts).
		Columns(conceptColumns...).
		Values(c.ID, c.Name, c.Description, c.Category, c.Part, c.Grade, prereqs).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()))
	if err != nil {
		return fmt.Errorf("upsert concept %s: %w", c.ID, err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
