package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/mathprogress/internal/concepts"
)

//go:embed catalog.schema.json
var schemaJSON []byte

const schemaURL = "schema://catalog.json"

// Validator checks catalog documents. It holds the compiled catalog schema,
// so one Validator can check many documents.
type Validator struct {
	schema  *jsonschema.Schema
	structs *validator.Validate
}

// NewValidator compiles the embedded catalog schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse catalog schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add catalog schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	return &Validator{schema: schema, structs: validator.New()}, nil
}

// Validate checks doc with a freshly built Validator.
func Validate(doc *Document) error {
	v, err := NewValidator()
	if err != nil {
		return err
	}
	return v.Validate(doc)
}

// Validate runs every check on doc: the version gate, struct rules, the
// JSON schema, the concept graph (including cycle detection) and
// references between sections. It reports all problems found.
func (v *Validator) Validate(doc *Document) error {
	if err := CheckVersion(doc.Version); err != nil {
		return err
	}

	var errs []string
	if err := v.structs.Struct(doc); err != nil {
		errs = append(errs, err.Error())
	}
	if err := v.checkSchema(doc); err != nil {
		errs = append(errs, err.Error())
	}
	if err := concepts.Validate(doc.StoreConcepts()); err != nil {
		errs = append(errs, err.Error())
	}
	errs = append(errs, checkReferences(doc)...)

	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (v *Validator) checkSchema(doc *Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

func checkReferences(doc *Document) []string {
	var errs []string

	conceptIDs := make(map[string]bool, len(doc.Concepts))
	for _, c := range doc.Concepts {
		conceptIDs[c.ID] = true
	}

	seen := make(map[string]bool, len(doc.Questions))
	for _, q := range doc.Questions {
		if seen[q.ID] {
			errs = append(errs, fmt.Sprintf("duplicate question ID: %q", q.ID))
		}
		seen[q.ID] = true
		if !conceptIDs[q.Concept] {
			errs = append(errs, fmt.Sprintf("question %q references nonexistent concept %q", q.ID, q.Concept))
		}
		if q.Blanks == nil {
			continue
		}
		if q.Category != "" && q.Category != "fill_blank" {
			errs = append(errs, fmt.Sprintf("question %q configures blanks but is %q", q.ID, q.Category))
		}
		tokens := len(strings.Fields(q.Text))
		indexes := make(map[int]bool, len(q.Blanks.Positions))
		for _, p := range q.Blanks.Positions {
			if p.Index >= tokens {
				errs = append(errs, fmt.Sprintf("question %q blank index %d is past the end of its text", q.ID, p.Index))
			}
			if indexes[p.Index] {
				errs = append(errs, fmt.Sprintf("question %q blank index %d is listed twice", q.ID, p.Index))
			}
			indexes[p.Index] = true
		}
		for round, r := range q.Blanks.Rounds {
			if r.Count == nil && r.Max > 0 && r.Min > r.Max {
				errs = append(errs, fmt.Sprintf("question %q round %d: min %d > max %d", q.ID, round, r.Min, r.Max))
			}
		}
	}

	students := make(map[string]bool, len(doc.Students))
	for _, s := range doc.Students {
		if students[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate student ID: %q", s.ID))
		}
		students[s.ID] = true
	}
	return errs
}
