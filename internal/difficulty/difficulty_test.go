package difficulty

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/abhisek/mathprogress/internal/store"
)

// fakeProfiles is a hand-written ProfileRepo.
type fakeProfiles struct {
	students map[string]store.Student
	acc      float64
	hasAcc   bool
}

func (f *fakeProfiles) Get(_ context.Context, id string) (store.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return store.Student{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeProfiles) Upsert(context.Context, store.Student) error { return nil }

func (f *fakeProfiles) Accuracy(context.Context, string, []string) (float64, bool, error) {
	return f.acc, f.hasAcc, nil
}

// fakePool is a hand-written QuestionRepo over an in-memory slice.
type fakePool struct {
	questions []store.Question
	err       error
}

func (f *fakePool) Get(context.Context, string) (store.Question, error) {
	return store.Question{}, store.ErrNotFound
}

func (f *fakePool) Upsert(context.Context, store.Question) error { return nil }

func (f *fakePool) Pool(_ context.Context, conceptIDs []string, difficulty int, exclude []string) ([]store.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Question
	for _, q := range f.questions {
		if q.Difficulty == difficulty && slices.Contains(conceptIDs, q.ConceptID) && !slices.Contains(exclude, q.ID) {
			out = append(out, q)
		}
	}
	return out, nil
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestInitialDifficulty(t *testing.T) {
	tests := []struct {
		name       string
		level      int
		accuracy   float64
		hasHistory bool
		want       int
	}{
		{"level 4 no history", 4, 0, false, 6},
		{"level 1 poor accuracy", 1, 0.2, true, 3},
		{"level 10 strong accuracy", 10, 0.9, true, 8},
		{"level 1 no history", 1, 0, false, 3},
		{"boundary just below low band", 2, 0.44, true, 3},
		{"upper band", 5, 0.8, true, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialDifficulty(tt.level, tt.accuracy, tt.hasHistory)
			if got != tt.want {
				t.Errorf("InitialDifficulty(%d, %v, %v) = %d, want %d",
					tt.level, tt.accuracy, tt.hasHistory, got, tt.want)
			}
		})
	}
}

func answer(difficulty int, correct bool) store.AnswerLog {
	return store.AnswerLog{Difficulty: difficulty, IsCorrect: correct}
}

func TestNextDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		current int
		recent  []store.AnswerLog
		want    int
	}{
		{"no history", 6, nil, 6},
		{"single correct", 6, []store.AnswerLog{answer(6, true)}, 7},
		{"single incorrect", 6, []store.AnswerLog{answer(6, false)}, 5},
		{"two correct at current", 6, []store.AnswerLog{answer(6, true), answer(6, true)}, 8},
		{"two incorrect at current", 6, []store.AnswerLog{answer(6, false), answer(6, false)}, 4},
		{"mixed outcomes", 6, []store.AnswerLog{answer(6, true), answer(6, false)}, 7},
		{"previous at other difficulty", 7, []store.AnswerLog{answer(7, true), answer(6, true)}, 8},
		{"clamp high", 10, []store.AnswerLog{answer(10, true), answer(10, true)}, 10},
		{"clamp low", 1, []store.AnswerLog{answer(1, false)}, 1},
		{"two-step clamp low", 2, []store.AnswerLog{answer(2, false), answer(2, false)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextDifficulty(tt.current, tt.recent); got != tt.want {
				t.Errorf("NextDifficulty(%d) = %d, want %d", tt.current, got, tt.want)
			}
		})
	}
}

func TestAdapter_Initial(t *testing.T) {
	profiles := &fakeProfiles{students: map[string]store.Student{"stu": {ID: "stu", Level: 4}}}
	a := NewAdapter(profiles, &fakePool{}, seeded())

	got, err := a.Initial(context.Background(), "stu", []string{"a"})
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if got != 6 {
		t.Errorf("Initial = %d, want 6", got)
	}

	// Unknown students start from level 1.
	got, err = a.Initial(context.Background(), "ghost", []string{"a"})
	if err != nil {
		t.Fatalf("Initial(ghost): %v", err)
	}
	if got != 3 {
		t.Errorf("Initial(ghost) = %d, want 3", got)
	}
}

func TestAdapter_SelectQuestion(t *testing.T) {
	pool := &fakePool{questions: []store.Question{
		{ID: "q3", ConceptID: "a", Difficulty: 3},
		{ID: "q5a", ConceptID: "a", Difficulty: 5},
		{ID: "q5b", ConceptID: "a", Difficulty: 5},
		{ID: "q8", ConceptID: "a", Difficulty: 8},
		{ID: "other", ConceptID: "b", Difficulty: 6},
	}}
	a := NewAdapter(&fakeProfiles{}, pool, seeded())
	ctx := context.Background()

	tests := []struct {
		name    string
		target  int
		exclude []string
		wantIn  []string
		wantOK  bool
	}{
		{"exact match", 5, nil, []string{"q5a", "q5b"}, true},
		{"exact match excluding one", 5, []string{"q5a"}, []string{"q5b"}, true},
		{"spread one picks union", 4, nil, []string{"q3", "q5a", "q5b"}, true},
		{"spread skips out of range side", 10, nil, []string{"q8"}, true},
		{"wide spread", 1, []string{"q3", "q5a", "q5b"}, []string{"q8"}, true},
		{"exhausted", 5, []string{"q3", "q5a", "q5b", "q8"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				q, ok, err := a.SelectQuestion(ctx, []string{"a"}, tt.target, tt.exclude)
				if err != nil {
					t.Fatalf("SelectQuestion: %v", err)
				}
				if ok != tt.wantOK {
					t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
				}
				if ok && !slices.Contains(tt.wantIn, q.ID) {
					t.Fatalf("picked %q, want one of %v", q.ID, tt.wantIn)
				}
			}
		})
	}
}

func TestAdapter_SelectQuestionPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	a := NewAdapter(&fakeProfiles{}, &fakePool{err: boom}, seeded())
	_, _, err := a.SelectQuestion(context.Background(), []string{"a"}, 5, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
