package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abhisek/mathprogress/internal/backoff"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestConceptUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Concepts()

	c := Concept{ID: "frac-add", Name: "Adding fractions", Prerequisites: []string{"frac-intro"}}
	if err := repo.Upsert(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c.Name = "Fraction addition"
	if err := repo.Upsert(ctx, c); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Get(ctx, "frac-add")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Fraction addition" {
		t.Errorf("Name = %q, want updated name", got.Name)
	}
	if len(got.Prerequisites) != 1 || got.Prerequisites[0] != "frac-intro" {
		t.Errorf("Prerequisites = %v", got.Prerequisites)
	}

	_, err = repo.Get(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestQuestionPool(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Questions()

	questions := []Question{
		{ID: "q1", ConceptID: "a", Difficulty: 5, Category: CategoryChoice, Points: 1, Active: true},
		{ID: "q2", ConceptID: "a", Difficulty: 5, Category: CategoryChoice, Points: 1, Active: true},
		{ID: "q3", ConceptID: "a", Difficulty: 6, Category: CategoryChoice, Points: 1, Active: true},
		{ID: "q4", ConceptID: "b", Difficulty: 5, Category: CategoryChoice, Points: 1, Active: true},
		{ID: "q5", ConceptID: "a", Difficulty: 5, Category: CategoryChoice, Points: 1, Active: false},
		{
			ID: "q6", ConceptID: "a", Difficulty: 5, Category: CategoryFillBlank, Points: 2, Active: true,
			Text: "The sum is ten",
			BlankConfig: &BlankConfig{
				Positions:  []BlankPosition{{Index: 3, Word: "ten", Importance: 3}},
				RoundRules: map[int]RoundRule{1: {Count: FixedCount(1)}},
			},
		},
	}
	for _, q := range questions {
		if err := repo.Upsert(ctx, q); err != nil {
			t.Fatalf("upsert %s: %v", q.ID, err)
		}
	}

	pool, err := repo.Pool(ctx, []string{"a"}, 5, []string{"q1"})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	var ids []string
	for _, q := range pool {
		ids = append(ids, q.ID)
	}
	if len(ids) != 2 || ids[0] != "q2" || ids[1] != "q6" {
		t.Fatalf("pool ids = %v, want [q2 q6]", ids)
	}
	if cfg := pool[1].BlankConfig; cfg == nil || cfg.RoundRules[1].Count == nil || *cfg.RoundRules[1].Count != 1 {
		t.Errorf("blank config not round-tripped: %+v", pool[1].BlankConfig)
	}

	empty, err := repo.Pool(ctx, nil, 5, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Pool(no concepts) = %v, %v; want empty", empty, err)
	}
}

func TestProfileAccuracy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Profiles().Accuracy(ctx, "stu", []string{"a"}); err != nil || ok {
		t.Fatalf("Accuracy(no history) ok = %v, err = %v", ok, err)
	}

	for i, correct := range []bool{true, true, false, true} {
		earned := 0
		if correct {
			earned = 1
		}
		err := s.AnswerLogs().Append(ctx, &AnswerLog{
			AttemptID: "att", StudentID: "stu", QuestionID: "q", ConceptID: "a",
			Difficulty: 5, IsCorrect: correct, PointsEarned: earned, PointsPossible: 1,
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	acc, ok, err := s.Profiles().Accuracy(ctx, "stu", []string{"a", "b"})
	if err != nil || !ok {
		t.Fatalf("Accuracy ok = %v, err = %v", ok, err)
	}
	if acc != 0.75 {
		t.Errorf("accuracy = %v, want 0.75", acc)
	}
}

func newAttempt(id string) *Attempt {
	return &Attempt{
		ID:                id,
		StudentID:         "stu",
		ConceptIDs:        []string{"a"},
		CurrentDifficulty: 6,
		TotalCount:        10,
		RetryCounts:       map[string]int{},
	}
}

func TestAttemptSaveDetectsConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Attempts()

	if err := repo.Create(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := repo.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := repo.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	first.RetryQueue = append(first.RetryQueue, "q1")
	first.RetryCounts["q1"] = 1
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.ServedIDs = append(second.ServedIDs, "q2")
	if err := repo.Save(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale save err = %v, want ErrConflict", err)
	}

	got, err := repo.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if len(got.RetryQueue) != 1 || got.RetryCounts["q1"] != 1 {
		t.Errorf("retry state = %v %v", got.RetryQueue, got.RetryCounts)
	}
	if len(got.ServedIDs) != 0 {
		t.Errorf("stale write leaked: served = %v", got.ServedIDs)
	}
}

func TestUpdateRetriesConflicts(t *testing.T) {
	s := openTestStore(t, WithConflictRetry(backoff.Policy{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Multiplier:  1,
	}))
	ctx := context.Background()

	calls := 0
	err := s.Update(ctx, func(tx *Tx) error {
		calls++
		if calls == 1 {
			return ErrConflict
		}
		return tx.Concepts().Upsert(ctx, Concept{ID: "a", Name: "A"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if _, err := s.Concepts().Get(ctx, "a"); err != nil {
		t.Errorf("committed concept missing: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.Concepts().Upsert(ctx, Concept{ID: "a", Name: "A"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := s.Concepts().Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled back concept visible: err = %v", err)
	}
}

func TestMasterySaveInsertThenCAS(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Mastery()

	m, err := repo.Get(ctx, "stu", "a")
	if err != nil || m != nil {
		t.Fatalf("Get(absent) = %v, %v; want nil, nil", m, err)
	}

	m = &ConceptMastery{StudentID: "stu", ConceptID: "a", IsUnlocked: true}
	if err := repo.Save(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if m.Version != 1 {
		t.Fatalf("Version after insert = %d, want 1", m.Version)
	}

	dup := &ConceptMastery{StudentID: "stu", ConceptID: "a"}
	if err := repo.Save(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate insert err = %v, want ErrConflict", err)
	}

	m.MasteryPercentage = 72
	m.TotalAttempts = 4
	m.CorrectCount = 3
	m.AverageScore = 75
	if err := repo.Save(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, "stu", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MasteryPercentage != 72 || got.Version != 2 || !got.IsUnlocked {
		t.Errorf("got %+v", got)
	}
}

func TestInvariantViolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Mastery().Save(ctx, &ConceptMastery{StudentID: "stu", ConceptID: "a", MasteryPercentage: 101})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}

	err = s.Reviews().Save(ctx, &WrongAnswerReview{StudentID: "stu", QuestionID: "q", Stage: 1})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("active review without date: err = %v, want ErrInvariantViolation", err)
	}
}

func TestStrictInvariantsPanic(t *testing.T) {
	s := openTestStore(t, WithStrictInvariants(true))

	defer func() {
		if recover() == nil {
			t.Error("expected panic in strict mode")
		}
	}()
	_ = s.Attempts().Create(context.Background(), &Attempt{
		ID: "bad", StudentID: "stu", ConceptIDs: []string{"a"}, CurrentDifficulty: 11,
	})
}

func TestReviewDue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Reviews()
	now := time.Now().UTC()

	reviews := []WrongAnswerReview{
		{StudentID: "stu", QuestionID: "q1", Stage: 1, NextReviewDate: "2026-03-01", LastWrongAt: now},
		{StudentID: "stu", QuestionID: "q2", Stage: 2, NextReviewDate: "2026-03-02", LastWrongAt: now},
		{StudentID: "stu", QuestionID: "q3", Stage: 1, NextReviewDate: "2026-03-03", LastWrongAt: now},
		{StudentID: "stu", QuestionID: "q4", Stage: 5, IsGraduated: true, LastWrongAt: now},
		{StudentID: "other", QuestionID: "q1", Stage: 1, NextReviewDate: "2026-03-01", LastWrongAt: now},
	}
	for i := range reviews {
		if err := repo.Save(ctx, &reviews[i]); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	due, err := repo.Due(ctx, "stu", "2026-03-02")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	got := map[string]bool{}
	for _, r := range due {
		got[r.QuestionID] = true
	}
	if len(due) != 2 || !got["q1"] || !got["q2"] {
		t.Errorf("due = %v, want q1 and q2", got)
	}
}

func TestFocusCheckCreateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.FocusChecks()

	item := &FocusCheckItem{ID: "f1", StudentID: "stu", QuestionID: "q", AttemptID: "att", WrongCount: 4}
	created, err := repo.Create(ctx, item)
	if err != nil || !created {
		t.Fatalf("first create = %v, %v", created, err)
	}
	created, err = repo.Create(ctx, &FocusCheckItem{ID: "f2", StudentID: "stu", QuestionID: "q", AttemptID: "att", WrongCount: 5})
	if err != nil || created {
		t.Fatalf("second create = %v, %v; want false, nil", created, err)
	}

	items, err := repo.ByStudent(ctx, "stu", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].WrongCount != 4 {
		t.Errorf("items = %+v", items)
	}
}

func TestAnswerLogOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.AnswerLogs()

	for _, q := range []string{"q1", "q2", "q3"} {
		err := repo.Append(ctx, &AnswerLog{
			AttemptID: "att", StudentID: "stu", QuestionID: q, ConceptID: "a",
			Difficulty: 5, IsCorrect: true, PointsEarned: 1, PointsPossible: 1,
		})
		if err != nil {
			t.Fatalf("append %s: %v", q, err)
		}
	}

	recent, err := repo.Recent(ctx, "att", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].QuestionID != "q3" || recent[1].QuestionID != "q2" {
		t.Errorf("recent = %+v", recent)
	}

	all, err := repo.ByAttempt(ctx, "att")
	if err != nil {
		t.Fatalf("by attempt: %v", err)
	}
	if len(all) != 3 || all[0].QuestionID != "q1" {
		t.Errorf("all = %+v", all)
	}
}

func TestEventRepoAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	events := s.Events()

	if err := events.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "mock", Model: "m", Purpose: "hint", Success: true,
	}); err != nil {
		t.Fatalf("append llm: %v", err)
	}
	for _, kind := range []string{MasteryEventUnlocked, MasteryEventMastered} {
		if err := events.AppendMasteryEvent(ctx, MasteryEventData{
			StudentID: "stu", ConceptID: "a", Kind: kind,
		}); err != nil {
			t.Fatalf("append mastery: %v", err)
		}
	}

	llm, err := events.QueryLLMRequests(ctx, QueryOpts{})
	if err != nil || len(llm) != 1 || llm[0].Purpose != "hint" {
		t.Fatalf("llm events = %+v, %v", llm, err)
	}

	mastery, err := events.QueryMasteryEvents(ctx, "stu", QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("query mastery: %v", err)
	}
	if len(mastery) != 1 || mastery[0].Kind != MasteryEventMastered {
		t.Errorf("latest mastery event = %+v", mastery)
	}
	if mastery[0].Sequence <= llm[0].Sequence {
		t.Errorf("sequence not global: mastery %d <= llm %d", mastery[0].Sequence, llm[0].Sequence)
	}
}
