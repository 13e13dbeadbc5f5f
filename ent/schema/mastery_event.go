package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MasteryEvent records a mastery or unlock transition for audit.
type MasteryEvent struct {
	ent.Schema
}

func (MasteryEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (MasteryEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("student_id").NotEmpty(),
		field.String("concept_id").NotEmpty(),
		field.String("kind").
			NotEmpty().
			Comment("mastered or unlocked"),
		field.Int("mastery_percentage").Default(0),
		field.String("attempt_id").Default(""),
	}
}

func (MasteryEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id", "concept_id"),
	}
}
