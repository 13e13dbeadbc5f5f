package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// WrongAnswerReview tracks the spaced-review schedule of a missed question.
type WrongAnswerReview struct {
	ent.Schema
}

func (WrongAnswerReview) Fields() []ent.Field {
	return []ent.Field{
		field.String("student_id").NotEmpty(),
		field.String("question_id").NotEmpty(),
		field.Int("stage").
			Default(1).
			Comment("Review stage 1..5"),
		field.String("next_review_date").
			Optional().
			Comment("Calendar date YYYY-MM-DD; empty once graduated"),
		field.Int("wrong_count").Default(0),
		field.Int("correct_streak").Default(0),
		field.Time("last_wrong_at"),
		field.Time("last_reviewed_at").Optional().Nillable(),
		field.Bool("is_graduated").Default(false),
	}
}

func (WrongAnswerReview) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id", "question_id").Unique(),
		index.Fields("student_id", "is_graduated", "next_review_date"),
	}
}
