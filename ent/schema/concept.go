package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Concept is a node in the prerequisite graph.
type Concept struct {
	ent.Schema
}

func (Concept) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Unique().
			Immutable(),
		field.String("name").NotEmpty(),
		field.String("description").Default(""),
		field.String("category").Default(""),
		field.String("part").Default(""),
		field.Int("grade").Default(0),
		field.JSON("prerequisites", []string{}).
			Comment("IDs of concepts that must be mastered first"),
	}
}

func (Concept) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("category"),
	}
}
