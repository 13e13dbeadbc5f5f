package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AnswerLog records a single graded answer within an attempt.
type AnswerLog struct {
	ent.Schema
}

func (AnswerLog) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (AnswerLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("attempt_id").NotEmpty(),
		field.String("student_id").NotEmpty(),
		field.String("question_id").NotEmpty(),
		field.String("concept_id").NotEmpty(),
		field.Int("difficulty"),
		field.Int("round").Default(1),
		field.Bool("is_correct"),
		field.Int("points_earned").Default(0),
		field.Int("points_possible").Default(0),
	}
}

func (AnswerLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("attempt_id"),
		index.Fields("student_id", "concept_id"),
	}
}
