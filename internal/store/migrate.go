package store

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/abhisek/mathprogress/ent/schema"
)

// Table names.
const (
	tableConcepts      = "concepts"
	tableQuestions     = "questions"
	tableStudents      = "students"
	tableMastery       = "concept_masteries"
	tableAttempts      = "test_attempts"
	tableAnswerLogs    = "answer_logs"
	tableReviews       = "wrong_answer_reviews"
	tableFocusChecks   = "focus_check_items"
	tableMasteryEvents = "mastery_events"
	tableLLMEvents     = "llm_request_events"
)

// entities maps each table to the ent schema that declares it.
var entities = []struct {
	table  string
	schema ent.Interface
}{
	{tableConcepts, entschema.Concept{}},
	{tableQuestions, entschema.Question{}},
	{tableStudents, entschema.Student{}},
	{tableMastery, entschema.ConceptMastery{}},
	{tableAttempts, entschema.TestAttempt{}},
	{tableAnswerLogs, entschema.AnswerLog{}},
	{tableReviews, entschema.WrongAnswerReview{}},
	{tableFocusChecks, entschema.FocusCheckItem{}},
	{tableMasteryEvents, entschema.MasteryEvent{}},
	{tableLLMEvents, entschema.LLMRequestEvent{}},
}

// migrate creates or extends every table declared in ent/schema.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	tables := make([]*schema.Table, 0, len(entities))
	for _, e := range entities {
		t, err := tableFor(e.table, e.schema)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}

	m, err := schema.NewMigrate(drv, schema.WithForeignKeys(false))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	return m.Create(ctx, tables...)
}

// tableFor derives the SQL table of an ent schema from its field and index
// descriptors, mixins included. Schemas without an "id" field get an
// auto-increment integer key.
func tableFor(name string, s ent.Interface) (*schema.Table, error) {
	var (
		fields  []ent.Field
		indexes []ent.Index
	)
	for _, m := range s.Mixin() {
		fields = append(fields, m.Fields()...)
		indexes = append(indexes, m.Indexes()...)
	}
	fields = append(fields, s.Fields()...)
	indexes = append(indexes, s.Indexes()...)

	t := schema.NewTable(name)
	hasID := false
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		col := &schema.Column{
			Name:     d.Name,
			Type:     d.Info.Type,
			Unique:   d.Unique,
			Nullable: d.Optional || d.Nillable,
			Default:  scalarDefault(d.Default),
		}
		if d.Name == "id" {
			hasID = true
			t.AddPrimary(col)
			continue
		}
		t.AddColumn(col)
	}
	if !hasID {
		id := &schema.Column{Name: "id", Type: field.TypeInt, Increment: true}
		t.AddPrimary(id)
	}

	for _, idx := range indexes {
		d := idx.Descriptor()
		t.AddIndex(indexName(name, d.Fields, d.Unique), d.Unique, d.Fields)
	}
	return t, nil
}

func indexName(table string, fields []string, unique bool) string {
	name := table + "_" + strings.Join(fields, "_")
	if unique {
		return name + "_key"
	}
	return name
}

// scalarDefault keeps literal defaults; function defaults such as
// time.Now are applied by the repositories.
func scalarDefault(v any) any {
	switch v.(type) {
	case int, int64, float64, bool, string:
		return v
	default:
		return nil
	}
}
