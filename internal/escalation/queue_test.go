package escalation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abhisek/mathprogress/internal/hints"
	"github.com/abhisek/mathprogress/internal/store"
)

func setup(t *testing.T, opts ...Option) (*store.Store, *Queue, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a := &store.Attempt{
		ID:                "att-1",
		StudentID:         "stu-1",
		ConceptIDs:        []string{"add"},
		CurrentDifficulty: 5,
		TotalCount:        10,
		Status:            store.AttemptInProgress,
	}
	require.NoError(t, st.Attempts().Create(context.Background(), a))

	n := 0
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("focus-%d", n) }),
	}, opts...)
	return st, NewQueue(st.Attempts(), st.FocusChecks(), opts...), a.ID
}

func question(id string) store.Question {
	return store.Question{
		ID:          id,
		ConceptID:   "add",
		Difficulty:  5,
		Text:        "What is 7 + 5?",
		Answer:      "12",
		Explanation: "Make a ten first. Then add 2.",
		Points:      10,
	}
}

func TestSubmitWithRetry_CorrectFirstTime(t *testing.T) {
	ctx := context.Background()
	st, q, id := setup(t)

	out, err := q.SubmitWithRetry(ctx, id, question("q1"), " 12 ", nil)
	require.NoError(t, err)
	assert.True(t, out.IsCorrect)
	assert.Equal(t, 10, out.PointsEarned)
	assert.Equal(t, 10, out.PointsPossible)
	assert.False(t, out.RetryScheduled)
	assert.Nil(t, out.Hint)

	a, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, a.RetryQueue)
	assert.Equal(t, 2, a.Version)
}

func TestSubmitWithRetry_EscalatesHints(t *testing.T) {
	ctx := context.Background()
	st, q, id := setup(t)

	wantKinds := []string{"concept", "explanation_prefix", "extended"}
	for i, kind := range wantKinds {
		out, err := q.SubmitWithRetry(ctx, id, question("q1"), "11", nil)
		require.NoError(t, err)
		assert.False(t, out.IsCorrect)
		assert.True(t, out.RetryScheduled)
		assert.Equal(t, i+1, out.RetryCount)
		require.NotNil(t, out.Hint)
		assert.Equal(t, hints.Level(i+1), out.Hint.Level)
		assert.Equal(t, kind, out.Hint.Kind)
		assert.False(t, out.Hint.Resolved)
		assert.False(t, out.MovedToFocusCheck)
	}

	a, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, a.RetryQueue)
	assert.Equal(t, 3, a.RetryCounts["q1"])
}

func TestSubmitWithRetry_FourthMissMovesToFocusCheck(t *testing.T) {
	ctx := context.Background()
	st, q, id := setup(t)

	for range 3 {
		_, err := q.SubmitWithRetry(ctx, id, question("q1"), "0", nil)
		require.NoError(t, err)
	}
	out, err := q.SubmitWithRetry(ctx, id, question("q1"), "0", nil)
	require.NoError(t, err)
	assert.True(t, out.MovedToFocusCheck)
	assert.False(t, out.RetryScheduled)
	assert.Nil(t, out.Hint)
	assert.Equal(t, 4, out.RetryCount)
	assert.Equal(t, MaxMisses, out.RetryCount)

	a, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, a.RetryQueue, "q1")

	items, err := st.FocusChecks().ByStudent(ctx, "stu-1", true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "focus-1", items[0].ID)
	assert.Equal(t, 4, items[0].WrongCount)
	assert.Equal(t, "att-1", items[0].AttemptID)
}

func TestSubmitWithRetry_CorrectRetryKeepsCount(t *testing.T) {
	ctx := context.Background()
	st, q, id := setup(t)

	_, err := q.SubmitWithRetry(ctx, id, question("q1"), "0", nil)
	require.NoError(t, err)
	_, err = q.SubmitWithRetry(ctx, id, question("q2"), "0", nil)
	require.NoError(t, err)

	out, err := q.SubmitWithRetry(ctx, id, question("q1"), "12", nil)
	require.NoError(t, err)
	assert.True(t, out.IsCorrect)

	a, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2"}, a.RetryQueue)
	assert.Equal(t, 1, a.RetryCounts["q1"])
}

func TestSubmitWithRetry_BlankKey(t *testing.T) {
	ctx := context.Background()
	_, q, id := setup(t)

	key := map[string]string{"blank_0": "ten", "blank_1": "two", "blank_2": "twelve"}
	answer := map[string]any{"blank_0": "Ten", "blank_1": "two", "blank_2": "eleven"}

	qq := question("q1")
	qq.Points = 9
	out, err := q.SubmitWithRetry(ctx, id, qq, answer, key)
	require.NoError(t, err)
	assert.False(t, out.IsCorrect)
	assert.Equal(t, 6, out.PointsEarned)
	assert.Equal(t, 2, out.Grade.Correct)
	assert.Equal(t, 3, out.Grade.Total)
	assert.True(t, out.RetryScheduled)
}

func TestSubmitWithRetry_ResolvesHintText(t *testing.T) {
	ctx := context.Background()
	_, q, id := setup(t, WithHints(hints.StaticProvider{}))

	_, err := q.SubmitWithRetry(ctx, id, question("q1"), "0", nil)
	require.NoError(t, err)
	out, err := q.SubmitWithRetry(ctx, id, question("q1"), "0", nil)
	require.NoError(t, err)

	require.NotNil(t, out.Hint)
	assert.True(t, out.Hint.Resolved)
	assert.Equal(t, "Make a ten first.", out.Hint.Text)
}

func TestSubmitWithRetry_UnknownAttempt(t *testing.T) {
	_, q, _ := setup(t)
	_, err := q.SubmitWithRetry(context.Background(), "nope", question("q1"), "12", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestApply_DoesNotSave(t *testing.T) {
	ctx := context.Background()
	st, q, id := setup(t)

	a, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	_, err = q.Apply(ctx, a, question("q1"), "0", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, a.RetryQueue)

	stored, err := st.Attempts().Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored.RetryQueue)
}
