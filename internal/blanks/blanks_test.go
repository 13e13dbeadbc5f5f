package blanks

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/abhisek/mathprogress/internal/store"
)

func fillBlank(rules map[int]store.RoundRule) store.Question {
	return store.Question{
		ID:       "q1",
		Category: store.CategoryFillBlank,
		Text:     "A triangle has three sides and three angles that sum to 180 degrees",
		BlankConfig: &store.BlankConfig{
			Positions: []store.BlankPosition{
				{Index: 1, Word: "triangle", Importance: 3},
				{Index: 3, Word: "three", Importance: 2},
				{Index: 6, Word: "three", Importance: 1},
				{Index: 11, Word: "180", Importance: 3},
				{Index: 12, Word: "degrees", Importance: 1},
			},
			RoundRules: rules,
		},
		Points: 10,
	}
}

func TestResolveRule(t *testing.T) {
	rules := map[int]store.RoundRule{2: {Count: store.FixedCount(1)}, 4: {Count: store.FixedCount(3)}}
	tests := []struct {
		round     int
		wantCount int
		wantOK    bool
	}{
		{1, 0, false},
		{2, 1, true},
		{3, 1, true},
		{4, 3, true},
		{9, 3, true},
	}
	for _, tt := range tests {
		r, ok := ResolveRule(rules, tt.round)
		got := 0
		if r.Count != nil {
			got = *r.Count
		}
		if ok != tt.wantOK || got != tt.wantCount {
			t.Errorf("ResolveRule(round %d) = %+v, %v; want count %d, %v", tt.round, r, ok, tt.wantCount, tt.wantOK)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	q := fillBlank(map[int]store.RoundRule{1: {Min: 1, Max: 4}})

	first := Generate(q, 1, "stu", "att")
	for range 10 {
		again := Generate(q, 1, "stu", "att")
		if again.DisplayText != first.DisplayText || !reflect.DeepEqual(again.Answers, first.Answers) {
			t.Fatalf("non-deterministic render:\n%q\n%q", first.DisplayText, again.DisplayText)
		}
	}
	if first.OriginalText != q.Text {
		t.Errorf("OriginalText = %q", first.OriginalText)
	}
}

func TestGenerate_FixedCountAndPlaceholders(t *testing.T) {
	q := fillBlank(map[int]store.RoundRule{1: {Count: store.FixedCount(2)}})
	res := Generate(q, 1, "stu", "att")

	if len(res.Blanks) != 2 || len(res.Answers) != 2 {
		t.Fatalf("blanks = %+v", res.Blanks)
	}
	if got := strings.Count(res.DisplayText, Placeholder); got != 2 {
		t.Errorf("placeholders = %d, want 2 in %q", got, res.DisplayText)
	}
	if res.Blanks[0].Index >= res.Blanks[1].Index {
		t.Errorf("blanks not sorted by index: %+v", res.Blanks)
	}
	if res.Blanks[0].ID != "blank_1" || res.Blanks[1].ID != "blank_2" {
		t.Errorf("blank ids = %s, %s", res.Blanks[0].ID, res.Blanks[1].ID)
	}

	tokens := strings.Fields(res.DisplayText)
	for _, b := range res.Blanks {
		if tokens[b.Index] != Placeholder {
			t.Errorf("token %d = %q, want placeholder", b.Index, tokens[b.Index])
		}
		if res.Answers[b.ID] != b.Word {
			t.Errorf("answer %s = %q, want %q", b.ID, res.Answers[b.ID], b.Word)
		}
	}
}

func TestGenerate_ImportanceFilter(t *testing.T) {
	q := fillBlank(map[int]store.RoundRule{1: {Count: store.FixedCount(5), MinImportance: 3}})
	res := Generate(q, 1, "stu", "att")

	// Only two positions have importance 3; the count is clamped.
	if len(res.Blanks) != 2 {
		t.Fatalf("blanks = %+v, want the two important ones", res.Blanks)
	}
	if res.Blanks[0].Word != "triangle" || res.Blanks[1].Word != "180" {
		t.Errorf("blanks = %+v", res.Blanks)
	}

	// A filter that matches nothing falls back to every position.
	q = fillBlank(map[int]store.RoundRule{1: {Count: store.FixedCount(5), MinImportance: 9}})
	if res := Generate(q, 1, "stu", "att"); len(res.Blanks) != 5 {
		t.Errorf("fallback blanks = %d, want 5", len(res.Blanks))
	}
}

func TestGenerate_MisconfiguredRendersVerbatim(t *testing.T) {
	tests := []struct {
		name string
		q    store.Question
	}{
		{"no blank config", store.Question{ID: "q", Category: store.CategoryFillBlank, Text: "two plus two"}},
		{"round below every rule", fillBlank(map[int]store.RoundRule{3: {Count: store.FixedCount(1)}})},
		{"no rules", fillBlank(nil)},
		{"fixed count of zero", fillBlank(map[int]store.RoundRule{1: {Count: store.FixedCount(0)}})},
		{"empty range", fillBlank(map[int]store.RoundRule{1: {}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Generate(tt.q, 1, "stu", "att")
			if res.DisplayText != tt.q.Text || len(res.Blanks) != 0 || len(res.Answers) != 0 {
				t.Errorf("got %+v, want verbatim text and no blanks", res)
			}
		})
	}
}

func TestGenerate_RangeCountWithinBounds(t *testing.T) {
	q := fillBlank(map[int]store.RoundRule{1: {Min: 2, Max: 3}})
	for _, student := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		res := Generate(q, 1, student, "att")
		if n := len(res.Blanks); n < 2 || n > 3 {
			t.Errorf("student %s: %d blanks, want 2..3", student, n)
		}
	}
}

func TestGenerate_RangeIncludesZero(t *testing.T) {
	q := fillBlank(map[int]store.RoundRule{1: {Min: 0, Max: 2}})
	counts := map[int]int{}
	for i := range 300 {
		res := Generate(q, 1, fmt.Sprintf("stu-%d", i), "att")
		counts[len(res.Blanks)]++
		if len(res.Blanks) == 0 && res.DisplayText != q.Text {
			t.Fatalf("zero blanks but text changed: %q", res.DisplayText)
		}
	}
	for n := 0; n <= 2; n++ {
		if counts[n] == 0 {
			t.Errorf("count %d never drawn: %v", n, counts)
		}
	}
	if len(counts) != 3 {
		t.Errorf("counts outside 0..2: %v", counts)
	}
}

func TestGenerate_DuplicatePositionsBlankOnce(t *testing.T) {
	q := store.Question{
		ID:       "q2",
		Category: store.CategoryFillBlank,
		Text:     "a b c d",
		BlankConfig: &store.BlankConfig{
			Positions: []store.BlankPosition{
				{Index: 1, Word: "b"},
				{Index: 1, Word: "b"},
			},
			RoundRules: map[int]store.RoundRule{1: {Count: store.FixedCount(2)}},
		},
	}
	res := Generate(q, 1, "stu", "att")

	want := []Blank{{ID: "blank_1", Index: 1, Word: "b"}}
	if !reflect.DeepEqual(res.Blanks, want) {
		t.Errorf("blanks = %+v, want %+v", res.Blanks, want)
	}
	if !reflect.DeepEqual(res.Answers, map[string]string{"blank_1": "b"}) {
		t.Errorf("answers = %v", res.Answers)
	}
	if res.DisplayText != "a ____ c d" {
		t.Errorf("display = %q", res.DisplayText)
	}
}

func TestGrade(t *testing.T) {
	key := map[string]string{"blank_1": "Triangle", "blank_2": "three", "blank_3": "180"}

	tests := []struct {
		name        string
		selected    any
		correct     any
		points      int
		wantCorrect bool
		wantPoints  int
	}{
		{"scalar match after trim and fold", "  Seven ", "seven", 5, true, 5},
		{"scalar mismatch", "six", "seven", 5, false, 0},
		{"numeric answer", 42, "42", 3, true, 3},
		{
			"all blanks correct",
			map[string]any{"blank_1": "triangle", "blank_2": " THREE", "blank_3": "180"},
			key, 9, true, 9,
		},
		{
			"two of three blanks",
			map[string]string{"blank_1": "triangle", "blank_2": "four", "blank_3": "180"},
			key, 9, false, 6,
		},
		{
			"partial credit floors",
			map[string]string{"blank_1": "triangle"},
			key, 10, false, 3,
		},
		{"non-map answer on multi blank", "triangle", key, 9, false, 0},
		{"zero blanks is fully correct", nil, map[string]string{}, 4, true, 4},
		{"empty scalar key matches nothing", "", "", 4, false, 0},
		{"nil scalar key matches nothing", nil, nil, 4, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.selected, tt.correct, tt.points)
			if got.IsCorrect != tt.wantCorrect || got.PointsEarned != tt.wantPoints {
				t.Errorf("Grade = %+v, want correct=%v points=%d", got, tt.wantCorrect, tt.wantPoints)
			}
		})
	}
}

func TestComboBonus(t *testing.T) {
	tests := []struct {
		streak, base, want int
	}{
		{10, 10, 30},
		{12, 7, 21},
		{5, 10, 20},
		{9, 3, 6},
		{3, 11, 16},
		{4, 10, 15},
		{2, 10, 10},
		{0, 10, 10},
	}
	for _, tt := range tests {
		if got := ComboBonus(tt.streak, tt.base); got != tt.want {
			t.Errorf("ComboBonus(%d, %d) = %d, want %d", tt.streak, tt.base, got, tt.want)
		}
	}
}
