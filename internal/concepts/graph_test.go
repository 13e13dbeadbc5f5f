package concepts

import (
	"errors"
	"slices"
	"testing"

	"github.com/abhisek/mathprogress/internal/store"
)

func sampleConcepts() []store.Concept {
	return []store.Concept{
		{ID: "count", Name: "Counting"},
		{ID: "add", Name: "Addition", Prerequisites: []string{"count"}},
		{ID: "sub", Name: "Subtraction", Prerequisites: []string{"count"}},
		{ID: "mul", Name: "Multiplication", Prerequisites: []string{"add"}},
		{ID: "word", Name: "Word problems", Prerequisites: []string{"add", "sub"}},
	}
}

func TestGraph_Dependents(t *testing.T) {
	g := NewGraph(sampleConcepts())

	tests := []struct {
		id   string
		want []string
	}{
		{"count", []string{"add", "sub"}},
		{"add", []string{"mul", "word"}},
		{"sub", []string{"word"}},
		{"word", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		got := g.Dependents(tt.id)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Dependents(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestGraph_TopoOrderRespectsPrerequisites(t *testing.T) {
	g := NewGraph(sampleConcepts())
	order := g.TopoOrder()
	if len(order) != 5 {
		t.Fatalf("topo order has %d entries, want 5", len(order))
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, c := range g.All() {
		for _, p := range c.Prerequisites {
			if pos[p] >= pos[c.ID] {
				t.Errorf("%s (pos %d) should come before %s (pos %d)", p, pos[p], c.ID, pos[c.ID])
			}
		}
	}
}

func TestGraph_GetAndRoots(t *testing.T) {
	g := NewGraph(sampleConcepts())

	c, err := g.Get("mul")
	if err != nil {
		t.Fatalf("Get(mul): %v", err)
	}
	if c.Name != "Multiplication" {
		t.Errorf("Name = %q", c.Name)
	}
	if _, err := g.Get("nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(nope) err = %v, want ErrNotFound", err)
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0].ID != "count" {
		t.Errorf("Roots = %v", roots)
	}
	if got := g.Prerequisites("word"); !slices.Equal(got, []string{"add", "sub"}) {
		t.Errorf("Prerequisites(word) = %v", got)
	}
}
