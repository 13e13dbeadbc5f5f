package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// ConceptRepo reads and writes the concept catalog.
type ConceptRepo interface {
	Get(ctx context.Context, id string) (Concept, error)
	All(ctx context.Context) ([]Concept, error)
	Upsert(ctx context.Context, c Concept) error
}

// QuestionRepo reads and writes authored questions.
type QuestionRepo interface {
	Get(ctx context.Context, id string) (Question, error)

	// Pool returns active questions in the given concepts at exactly the
	// given difficulty, excluding the listed IDs.
	Pool(ctx context.Context, conceptIDs []string, difficulty int, exclude []string) ([]Question, error)

	Upsert(ctx context.Context, q Question) error
}

// ProfileRepo exposes learner profile data.
type ProfileRepo interface {
	Get(ctx context.Context, studentID string) (Student, error)
	Upsert(ctx context.Context, s Student) error

	// Accuracy returns the student's historical fraction of correct answers
	// across the given concepts. ok is false when there is no history.
	Accuracy(ctx context.Context, studentID string, conceptIDs []string) (acc float64, ok bool, err error)
}

// AttemptRepo manages test attempts. Save is a compare-and-set on Version
// and returns ErrConflict when the stored row has moved on.
type AttemptRepo interface {
	Create(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, id string) (*Attempt, error)
	Save(ctx context.Context, a *Attempt) error
}

// AnswerLogRepo is the append-only answer history.
type AnswerLogRepo interface {
	Append(ctx context.Context, l *AnswerLog) error

	// Recent returns up to limit logs of the attempt, newest first.
	Recent(ctx context.Context, attemptID string, limit int) ([]AnswerLog, error)

	// ByAttempt returns all logs of the attempt, oldest first.
	ByAttempt(ctx context.Context, attemptID string) ([]AnswerLog, error)
}

// MasteryRepo manages per-(student, concept) mastery rows. Get returns
// (nil, nil) when no row exists. Save inserts rows with Version 0 and
// compare-and-sets the rest.
type MasteryRepo interface {
	Get(ctx context.Context, studentID, conceptID string) (*ConceptMastery, error)
	Save(ctx context.Context, m *ConceptMastery) error
	ByStudent(ctx context.Context, studentID string) ([]ConceptMastery, error)
}

// ReviewRepo manages wrong-answer review records. Get returns (nil, nil)
// when the question has never been missed.
type ReviewRepo interface {
	Get(ctx context.Context, studentID, questionID string) (*WrongAnswerReview, error)
	Save(ctx context.Context, r *WrongAnswerReview) error

	// Due returns non-graduated reviews with a next review date on or
	// before today, in storage order.
	Due(ctx context.Context, studentID, today string) ([]WrongAnswerReview, error)

	ByStudent(ctx context.Context, studentID string) ([]WrongAnswerReview, error)
}

// FocusCheckRepo manages focus-check items.
type FocusCheckRepo interface {
	// Create inserts the item. It reports false without error when an item
	// for the same attempt and question already exists.
	Create(ctx context.Context, item *FocusCheckItem) (bool, error)

	ByStudent(ctx context.Context, studentID string, unresolvedOnly bool) ([]FocusCheckItem, error)
}

// EventRepo provides append and query access to audit events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMRequests(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	AppendMasteryEvent(ctx context.Context, data MasteryEventData) error
	QueryMasteryEvents(ctx context.Context, studentID string, opts QueryOpts) ([]MasteryEventRecord, error)
}
