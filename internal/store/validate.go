package store

import (
	"github.com/go-playground/validator/v10"
)

// newValidator returns the validator used for write-time invariant checks.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(reviewScheduleRule, WrongAnswerReview{})
	v.RegisterStructValidation(masteryFlagsRule, ConceptMastery{})
	return v
}

// reviewScheduleRule: graduated reviews have no next date, active ones do.
func reviewScheduleRule(sl validator.StructLevel) {
	rv := sl.Current().Interface().(WrongAnswerReview)
	switch {
	case rv.IsGraduated && rv.NextReviewDate != "":
		sl.ReportError(rv.NextReviewDate, "NextReviewDate", "NextReviewDate", "graduated_no_date", "")
	case !rv.IsGraduated && rv.NextReviewDate == "":
		sl.ReportError(rv.NextReviewDate, "NextReviewDate", "NextReviewDate", "required_unless_graduated", "")
	}
}

// masteryFlagsRule: a mastered concept carries a mastered timestamp.
func masteryFlagsRule(sl validator.StructLevel) {
	m := sl.Current().Interface().(ConceptMastery)
	if m.IsMastered && m.MasteredAt == nil {
		sl.ReportError(m.MasteredAt, "MasteredAt", "MasteredAt", "required_when_mastered", "")
	}
}
