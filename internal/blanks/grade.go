package blanks

import (
	"fmt"
	"strings"
)

// GradeResult is the outcome of grading one answer.
type GradeResult struct {
	IsCorrect    bool
	PointsEarned int
	Correct      int // blanks answered correctly
	Total        int // blanks graded
}

// Grade compares a submitted answer against the expected one. Scalars are
// compared after trimming and case folding. When correct is a map of blank
// ID to word, each blank is graded on its own and partial credit is
// floor(points*correct/total); only a full set counts as correct. A
// non-map submission against a map key grades as an empty answer set. An
// empty scalar key matches nothing.
func Grade(selected, correct any, points int) GradeResult {
	key, isMulti := asMap(correct)
	if !isMulti {
		want := normalize(correct)
		ok := want != "" && normalize(selected) == want
		res := GradeResult{IsCorrect: ok, Total: 1}
		if ok {
			res.Correct = 1
			res.PointsEarned = points
		}
		return res
	}

	if len(key) == 0 {
		return GradeResult{IsCorrect: true, PointsEarned: points}
	}

	answers, _ := asMap(selected)
	res := GradeResult{Total: len(key)}
	for id, want := range key {
		got, ok := answers[id]
		if ok && normalize(got) == normalize(want) {
			res.Correct++
		}
	}
	res.IsCorrect = res.Correct == res.Total
	res.PointsEarned = points * res.Correct / res.Total
	return res
}

// asMap converts blank-answer maps to map[string]any.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func normalize(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

// ComboBonus scales base points by the current streak of correct answers:
// x3 from 10, x2 from 5, x1.5 from 3. The result is truncated.
func ComboBonus(streak, base int) int {
	var mult float64
	switch {
	case streak >= 10:
		mult = 3.0
	case streak >= 5:
		mult = 2.0
	case streak >= 3:
		mult = 1.5
	default:
		mult = 1.0
	}
	return int(float64(base) * mult)
}
