package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConceptMastery is the per-(student, concept) progress record.
type ConceptMastery struct {
	ent.Schema
}

func (ConceptMastery) Fields() []ent.Field {
	return []ent.Field{
		field.String("student_id").NotEmpty(),
		field.String("concept_id").NotEmpty(),
		field.Int("mastery_percentage").Default(0),
		field.Int("total_attempts").Default(0),
		field.Int("correct_count").Default(0),
		field.Float("average_score").Default(0),
		field.Bool("is_unlocked").Default(false),
		field.Bool("is_mastered").Default(false),
		field.Time("unlocked_at").Optional().Nillable(),
		field.Time("mastered_at").Optional().Nillable(),
		field.Time("updated_at"),
		field.Int("version").
			Default(1).
			Comment("Optimistic concurrency token"),
	}
}

func (ConceptMastery) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id", "concept_id").Unique(),
	}
}
