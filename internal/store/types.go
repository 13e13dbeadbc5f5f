package store

import (
	"time"
)

// DateLayout is the storage format for calendar dates.
const DateLayout = "2006-01-02"

// Question categories.
const (
	CategoryChoice      = "choice"
	CategoryShortAnswer = "short_answer"
	CategoryFillBlank   = "fill_blank"
)

// Concept is a unit of knowledge in the prerequisite graph.
type Concept struct {
	ID            string   `validate:"required"`
	Name          string   `validate:"required"`
	Description   string
	Category      string
	Part          string
	Grade         int      `validate:"min=0"`
	Prerequisites []string `validate:"unique"`
}

// BlankPosition is a token of a question's text that may be blanked out.
type BlankPosition struct {
	Index      int    `json:"index"`
	Word       string `json:"word"`
	Importance int    `json:"importance"`
}

// RoundRule controls how many blanks are shown in a given round. A non-nil
// Count fixes the number, zero included; otherwise a number in [Min, Max]
// is sampled.
type RoundRule struct {
	Count         *int `json:"count,omitempty"`
	Min           int  `json:"min,omitempty"`
	Max           int  `json:"max,omitempty"`
	MinImportance int  `json:"min_importance,omitempty"`
}

// FixedCount returns a Count value for a RoundRule.
func FixedCount(n int) *int {
	return &n
}

// BlankConfig describes the blankable positions of a fill-blank question.
type BlankConfig struct {
	Positions  []BlankPosition   `json:"positions"`
	RoundRules map[int]RoundRule `json:"round_rules"`
}

// Question is an authored practice item.
type Question struct {
	ID          string `validate:"required"`
	ConceptID   string `validate:"required"`
	Difficulty  int    `validate:"min=1,max=10"`
	Category    string
	Text        string
	Answer      string
	Explanation string
	BlankConfig *BlankConfig
	Points      int `validate:"min=0"`
	Active      bool
}

// IsFillBlank reports whether the question is presented with blanks.
func (q Question) IsFillBlank() bool {
	return q.Category == CategoryFillBlank
}

// Student is the learner profile.
type Student struct {
	ID    string `validate:"required"`
	Name  string
	Level int `validate:"min=1,max=10"`
}

// AttemptStatus is the lifecycle state of a test attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// Attempt is one sitting of a practice test.
type Attempt struct {
	ID                string         `validate:"required"`
	StudentID         string         `validate:"required"`
	TestID            string
	ConceptIDs        []string       `validate:"min=1,unique"`
	CurrentDifficulty int            `validate:"min=1,max=10"`
	ServedIDs         []string       `validate:"unique"`
	TotalCount        int            `validate:"min=0"`
	RetryQueue        []string       `validate:"unique"`
	RetryCounts       map[string]int `validate:"dive,min=0"`
	PendingQuestionID string
	Status            AttemptStatus `validate:"oneof=in_progress completed"`
	StartedAt         time.Time
	CompletedAt       *time.Time
	Version           int
}

// AnswerLog is one graded answer. Sequence orders logs created within the
// same clock tick.
type AnswerLog struct {
	ID             int
	Sequence       int64
	Timestamp      time.Time
	AttemptID      string `validate:"required"`
	StudentID      string `validate:"required"`
	QuestionID     string `validate:"required"`
	ConceptID      string `validate:"required"`
	Difficulty     int    `validate:"min=1,max=10"`
	Round          int    `validate:"min=1"`
	IsCorrect      bool
	PointsEarned   int `validate:"min=0,ltefield=PointsPossible"`
	PointsPossible int `validate:"min=0"`
}

// ConceptMastery is the per-(student, concept) progress record.
type ConceptMastery struct {
	StudentID         string  `validate:"required"`
	ConceptID         string  `validate:"required"`
	MasteryPercentage int     `validate:"min=0,max=100"`
	TotalAttempts     int     `validate:"min=0"`
	CorrectCount      int     `validate:"min=0,ltefield=TotalAttempts"`
	AverageScore      float64 `validate:"gte=0,lte=100"`
	IsUnlocked        bool
	IsMastered        bool
	UnlockedAt        *time.Time
	MasteredAt        *time.Time
	UpdatedAt         time.Time
	Version           int
}

// WrongAnswerReview is the spaced-review record of a missed question.
// NextReviewDate is a DateLayout calendar date, empty once graduated.
type WrongAnswerReview struct {
	StudentID      string `validate:"required"`
	QuestionID     string `validate:"required"`
	Stage          int    `validate:"min=1,max=5"`
	NextReviewDate string `validate:"omitempty,datetime=2006-01-02"`
	WrongCount     int    `validate:"min=0"`
	CorrectStreak  int    `validate:"min=0"`
	LastWrongAt    time.Time
	LastReviewedAt *time.Time
	IsGraduated    bool
}

// FocusCheckItem flags a question that exhausted its retries in an attempt.
type FocusCheckItem struct {
	ID         string `validate:"required"`
	StudentID  string `validate:"required"`
	QuestionID string `validate:"required"`
	AttemptID  string `validate:"required"`
	WrongCount int    `validate:"min=1"`
	Resolved   bool
	CreatedAt  time.Time
}

// Mastery event kinds.
const (
	MasteryEventMastered = "mastered"
	MasteryEventUnlocked = "unlocked"
)

// MasteryEventData captures a mastery or unlock transition.
type MasteryEventData struct {
	StudentID         string
	ConceptID         string
	Kind              string
	MasteryPercentage int
	AttemptID         string
}

// MasteryEventRecord is a stored mastery event.
type MasteryEventRecord struct {
	Sequence  int64
	Timestamp time.Time
	MasteryEventData
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}
