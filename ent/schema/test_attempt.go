package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TestAttempt is one sitting of a practice test.
type TestAttempt struct {
	ent.Schema
}

func (TestAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Unique().
			Immutable(),
		field.String("student_id").NotEmpty(),
		field.String("test_id").Default(""),
		field.JSON("concept_ids", []string{}),
		field.Int("current_difficulty"),
		field.JSON("served_question_ids", []string{}),
		field.Int("total_count").
			Comment("Budget of new questions for the attempt"),
		field.JSON("retry_queue", []string{}),
		field.JSON("retry_counts", map[string]int{}),
		field.String("pending_question_id").
			Default("").
			Comment("Question served and not yet answered"),
		field.String("status").Default("in_progress"),
		field.Time("started_at").Default(time.Now),
		field.Time("completed_at").Optional().Nillable(),
		field.Int("version").Default(1),
	}
}

func (TestAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id", "status"),
	}
}
