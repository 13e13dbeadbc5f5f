package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// Student holds the profile data used to calibrate starting difficulty.
type Student struct {
	ent.Schema
}

func (Student) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Unique().
			Immutable(),
		field.String("name").Default(""),
		field.Int("level").
			Default(1).
			Comment("Current difficulty level from the learner profile"),
	}
}
