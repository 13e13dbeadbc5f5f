package schema

import (
	"encoding/json"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Question is an authored practice item belonging to one concept.
type Question struct {
	ent.Schema
}

func (Question) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Unique().
			Immutable(),
		field.String("concept_id").NotEmpty(),
		field.Int("difficulty").
			Comment("1 (easiest) through 10"),
		field.String("category").
			Comment("Presentation kind: choice, short_answer, fill_blank"),
		field.Text("text"),
		field.Text("answer").
			Comment("Expected answer; JSON object keyed by blank id for fill_blank"),
		field.Text("explanation").Default(""),
		field.JSON("blank_config", json.RawMessage{}).
			Optional().
			Comment("Blank positions and per-round rules for fill_blank questions"),
		field.Int("points").Default(1),
		field.Bool("active").Default(true),
	}
}

func (Question) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("concept_id", "difficulty", "active"),
	}
}
