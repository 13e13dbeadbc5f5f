package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo backed by the global sequence counter.
type eventRepo struct{ Repos }

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seqNum, err := r.nextSequence(ctx)
	if err != nil {
		return err
	}

	_, err = r.exec(ctx, builder().Insert(tableLLMEvents).
		Columns("sequence", "timestamp", "provider", "model", "purpose", "input_tokens",
			"output_tokens", "latency_ms", "success", "error_message").
		Values(seqNum, time.Now().UTC(), data.Provider, data.Model, data.Purpose, data.InputTokens,
			data.OutputTokens, data.LatencyMs, data.Success, data.ErrorMessage))
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMRequests(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error) {
	sel := builder().Select("sequence", "timestamp", "provider", "model", "purpose",
		"input_tokens", "output_tokens", "latency_ms", "success", "error_message").
		From(builder().Table(tableLLMEvents))
	applyQueryOpts(sel, opts, nil)

	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query LLM request events: %w", err)
	}
	defer rows.Close()

	var out []LLMRequestEventRecord
	for rows.Next() {
		var e LLMRequestEventRecord
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &e.Provider, &e.Model, &e.Purpose,
			&e.InputTokens, &e.OutputTokens, &e.LatencyMs, &e.Success, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan LLM request event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) AppendMasteryEvent(ctx context.Context, data MasteryEventData) error {
	seqNum, err := r.nextSequence(ctx)
	if err != nil {
		return err
	}

	_, err = r.exec(ctx, builder().Insert(tableMasteryEvents).
		Columns("sequence", "timestamp", "student_id", "concept_id", "kind",
			"mastery_percentage", "attempt_id").
		Values(seqNum, time.Now().UTC(), data.StudentID, data.ConceptID, data.Kind,
			data.MasteryPercentage, data.AttemptID))
	if err != nil {
		return fmt.Errorf("save mastery event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryMasteryEvents(ctx context.Context, studentID string, opts QueryOpts) ([]MasteryEventRecord, error) {
	sel := builder().Select("sequence", "timestamp", "student_id", "concept_id", "kind",
		"mastery_percentage", "attempt_id").
		From(builder().Table(tableMasteryEvents))
	applyQueryOpts(sel, opts, entsql.EQ("student_id", studentID))

	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query mastery events: %w", err)
	}
	defer rows.Close()

	var out []MasteryEventRecord
	for rows.Next() {
		var e MasteryEventRecord
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &e.StudentID, &e.ConceptID, &e.Kind,
			&e.MasteryPercentage, &e.AttemptID); err != nil {
			return nil, fmt.Errorf("scan mastery event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// applyQueryOpts adds filtering, newest-first ordering and a limit.
func applyQueryOpts(sel *entsql.Selector, opts QueryOpts, base *entsql.Predicate) {
	var preds []*entsql.Predicate
	if base != nil {
		preds = append(preds, base)
	}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
}
