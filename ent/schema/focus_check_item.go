package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// FocusCheckItem flags a question the student missed too many times in one
// attempt, for later one-on-one review.
type FocusCheckItem struct {
	ent.Schema
}

func (FocusCheckItem) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Unique().
			Immutable(),
		field.String("student_id").NotEmpty(),
		field.String("question_id").NotEmpty(),
		field.String("attempt_id").NotEmpty(),
		field.Int("wrong_count"),
		field.Bool("resolved").Default(false),
		field.Time("created_at").Default(time.Now),
	}
}

func (FocusCheckItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("attempt_id", "question_id").Unique(),
		index.Fields("student_id", "resolved"),
	}
}
