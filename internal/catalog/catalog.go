// Package catalog loads authored content (concepts, questions and student
// profiles) from a versioned YAML document and imports it into the store.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/mathprogress/internal/store"
)

// SupportedMajor is the only catalog format major version understood.
const SupportedMajor = "v1"

// ErrUnsupportedVersion is returned for catalogs of another major version.
var ErrUnsupportedVersion = errors.New("unsupported catalog version")

// Document is the on-disk catalog.
type Document struct {
	Version   string     `yaml:"version" json:"version" validate:"required"`
	Concepts  []Concept  `yaml:"concepts" json:"concepts" validate:"required,min=1,dive"`
	Questions []Question `yaml:"questions,omitempty" json:"questions,omitempty" validate:"dive"`
	Students  []Student  `yaml:"students,omitempty" json:"students,omitempty" validate:"dive"`
}

type Concept struct {
	ID            string   `yaml:"id" json:"id" validate:"required"`
	Name          string   `yaml:"name" json:"name" validate:"required"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category      string   `yaml:"category,omitempty" json:"category,omitempty"`
	Part          string   `yaml:"part,omitempty" json:"part,omitempty"`
	Grade         int      `yaml:"grade,omitempty" json:"grade,omitempty" validate:"min=0"`
	Prerequisites []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty" validate:"unique"`
}

type Question struct {
	ID          string  `yaml:"id" json:"id" validate:"required"`
	Concept     string  `yaml:"concept" json:"concept" validate:"required"`
	Difficulty  int     `yaml:"difficulty" json:"difficulty" validate:"min=1,max=10"`
	Category    string  `yaml:"category,omitempty" json:"category,omitempty" validate:"omitempty,oneof=choice short_answer fill_blank"`
	Text        string  `yaml:"text" json:"text" validate:"required"`
	Answer      string  `yaml:"answer" json:"answer" validate:"required"`
	Explanation string  `yaml:"explanation,omitempty" json:"explanation,omitempty"`
	Points      int     `yaml:"points,omitempty" json:"points,omitempty" validate:"min=0"`
	Inactive    bool    `yaml:"inactive,omitempty" json:"inactive,omitempty"`
	Blanks      *Blanks `yaml:"blanks,omitempty" json:"blanks,omitempty"`
}

// Blanks configures a fill-blank question.
type Blanks struct {
	Positions []Position    `yaml:"positions" json:"positions" validate:"required,min=1,dive"`
	Rounds    map[int]Round `yaml:"rounds" json:"rounds" validate:"required,min=1,dive"`
}

type Position struct {
	Index      int    `yaml:"index" json:"index" validate:"min=0"`
	Word       string `yaml:"word,omitempty" json:"word,omitempty"`
	Importance int    `yaml:"importance,omitempty" json:"importance,omitempty" validate:"min=0"`
}

type Round struct {
	Count         *int `yaml:"count,omitempty" json:"count,omitempty" validate:"omitempty,min=0"`
	Min           int  `yaml:"min,omitempty" json:"min,omitempty" validate:"min=0"`
	Max           int  `yaml:"max,omitempty" json:"max,omitempty" validate:"min=0"`
	MinImportance int  `yaml:"min_importance,omitempty" json:"min_importance,omitempty" validate:"min=0"`
}

type Student struct {
	ID    string `yaml:"id" json:"id" validate:"required"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Level int    `yaml:"level" json:"level" validate:"min=1,max=10"`
}

// Load reads and parses a catalog file. It does not validate it.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalog. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parse catalog: empty document")
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &doc, nil
}

// CheckVersion accepts semantic versions of the supported major, with or
// without a leading "v".
func CheckVersion(version string) error {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedVersion, version)
	}
	if major := semver.Major(v); major != SupportedMajor {
		return fmt.Errorf("%w: major %s, want %s", ErrUnsupportedVersion, major, SupportedMajor)
	}
	return nil
}

// StoreConcepts converts the document's concepts.
func (d *Document) StoreConcepts() []store.Concept {
	out := make([]store.Concept, len(d.Concepts))
	for i, c := range d.Concepts {
		out[i] = store.Concept{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			Category:      c.Category,
			Part:          c.Part,
			Grade:         c.Grade,
			Prerequisites: c.Prerequisites,
		}
	}
	return out
}

// StoreQuestions converts the document's questions. Questions without a
// category are short answer, or fill blank when they configure blanks.
func (d *Document) StoreQuestions() []store.Question {
	out := make([]store.Question, len(d.Questions))
	for i, q := range d.Questions {
		sq := store.Question{
			ID:          q.ID,
			ConceptID:   q.Concept,
			Difficulty:  q.Difficulty,
			Category:    q.Category,
			Text:        q.Text,
			Answer:      q.Answer,
			Explanation: q.Explanation,
			Points:      q.Points,
			Active:      !q.Inactive,
		}
		if q.Blanks != nil {
			cfg := &store.BlankConfig{RoundRules: make(map[int]store.RoundRule, len(q.Blanks.Rounds))}
			for _, p := range q.Blanks.Positions {
				cfg.Positions = append(cfg.Positions, store.BlankPosition(p))
			}
			for round, r := range q.Blanks.Rounds {
				cfg.RoundRules[round] = store.RoundRule(r)
			}
			sq.BlankConfig = cfg
		}
		if sq.Category == "" {
			sq.Category = store.CategoryShortAnswer
			if sq.BlankConfig != nil {
				sq.Category = store.CategoryFillBlank
			}
		}
		out[i] = sq
	}
	return out
}

// StoreStudents converts the document's student profiles.
func (d *Document) StoreStudents() []store.Student {
	out := make([]store.Student, len(d.Students))
	for i, s := range d.Students {
		out[i] = store.Student(s)
	}
	return out
}

// Summary counts imported records.
type Summary struct {
	Concepts  int
	Questions int
	Students  int
}

// Import validates doc and upserts its content in one transaction.
func Import(ctx context.Context, st *store.Store, doc *Document) (Summary, error) {
	if err := Validate(doc); err != nil {
		return Summary{}, err
	}

	var sum Summary
	err := st.Update(ctx, func(tx *store.Tx) error {
		sum = Summary{}
		for _, c := range doc.StoreConcepts() {
			if err := tx.Concepts().Upsert(ctx, c); err != nil {
				return err
			}
			sum.Concepts++
		}
		for _, q := range doc.StoreQuestions() {
			if err := tx.Questions().Upsert(ctx, q); err != nil {
				return err
			}
			sum.Questions++
		}
		for _, s := range doc.StoreStudents() {
			if err := tx.Profiles().Upsert(ctx, s); err != nil {
				return err
			}
			sum.Students++
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("import catalog: %w", err)
	}
	return sum, nil
}
