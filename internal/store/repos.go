package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos hands out repositories bound to a database handle or transaction.
type Repos struct {
	q execQuerier
	s *Store
}

func (r Repos) Concepts() ConceptRepo       { return &conceptRepo{r} }
func (r Repos) Questions() QuestionRepo     { return &questionRepo{r} }
func (r Repos) Profiles() ProfileRepo       { return &profileRepo{r} }
func (r Repos) Attempts() AttemptRepo       { return &attemptRepo{r} }
func (r Repos) AnswerLogs() AnswerLogRepo   { return &answerLogRepo{r} }
func (r Repos) Mastery() MasteryRepo        { return &masteryRepo{r} }
func (r Repos) Reviews() ReviewRepo         { return &reviewRepo{r} }
func (r Repos) FocusChecks() FocusCheckRepo { return &focusCheckRepo{r} }
func (r Repos) Events() EventRepo           { return &eventRepo{r} }

// builder returns a SQL builder for the store's dialect.
func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r Repos) exec(ctx context.Context, b entsql.Querier) (sql.Result, error) {
	query, args := b.Query()
	return r.q.ExecContext(ctx, query, args...)
}

func (r Repos) query(ctx context.Context, b entsql.Querier) (*sql.Rows, error) {
	query, args := b.Query()
	return r.q.QueryContext(ctx, query, args...)
}

// execCAS runs a versioned update and maps "no rows affected" to ErrConflict.
func (r Repos) execCAS(ctx context.Context, b entsql.Querier) error {
	res, err := r.exec(ctx, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// nextSequence draws the next global sequence number inside the current
// transaction, if any.
func (r Repos) nextSequence(ctx context.Context) (int64, error) {
	return r.s.seq.Next(ctx, r.q)
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// anySlice converts string IDs to builder arguments.
func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// timeArg converts an optional time into a builder argument.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
