package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type masteryRepo struct{ Repos }

var masteryColumns = []string{
	"student_id", "concept_id", "mastery_percentage", "total_attempts", "correct_count",
	"average_score", "is_unlocked", "is_mastered", "unlocked_at", "mastered_at",
	"updated_at", "version",
}

func scanMastery(row interface{ Scan(...any) error }) (ConceptMastery, error) {
	var (
		m                  ConceptMastery
		unlocked, mastered sql.NullTime
	)
	err := row.Scan(&m.StudentID, &m.ConceptID, &m.MasteryPercentage, &m.TotalAttempts,
		&m.CorrectCount, &m.AverageScore, &m.IsUnlocked, &m.IsMastered, &unlocked, &mastered,
		&m.UpdatedAt, &m.Version)
	if err != nil {
		return ConceptMastery{}, err
	}
	m.UnlockedAt = nullTime(unlocked)
	m.MasteredAt = nullTime(mastered)
	return m, nil
}

func (r *masteryRepo) Get(ctx context.Context, studentID, conceptID string) (*ConceptMastery, error) {
	query, args := builder().Select(masteryColumns...).
		From(builder().Table(tableMastery)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("concept_id", conceptID),
		)).
		Query()
	m, err := scanMastery(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return &m, nil
}

func (r *masteryRepo) Save(ctx context.Context, m *ConceptMastery) error {
	if err := r.s.check(m); err != nil {
		return err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	if m.Version == 0 {
		_, err := r.exec(ctx, builder().Insert(tableMastery).
			Columns(masteryColumns...).
			Values(m.StudentID, m.ConceptID, m.MasteryPercentage, m.TotalAttempts,
				m.CorrectCount, m.AverageScore, m.IsUnlocked, m.IsMastered,
				timeArg(m.UnlockedAt), timeArg(m.MasteredAt), m.UpdatedAt, 1))
		if isUniqueViolation(err) {
			return fmt.Errorf("insert mastery %s/%s: %w", m.StudentID, m.ConceptID, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert mastery: %w", err)
		}
		m.Version = 1
		return nil
	}

	err := r.execCAS(ctx, builder().Update(tableMastery).
		Set("mastery_percentage", m.MasteryPercentage).
		Set("total_attempts", m.TotalAttempts).
		Set("correct_count", m.CorrectCount).
		Set("average_score", m.AverageScore).
		Set("is_unlocked", m.IsUnlocked).
		Set("is_mastered", m.IsMastered).
		Set("unlocked_at", timeArg(m.UnlockedAt)).
		Set("mastered_at", timeArg(m.MasteredAt)).
		Set("updated_at", m.UpdatedAt).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("student_id", m.StudentID),
			entsql.EQ("concept_id", m.ConceptID),
			entsql.EQ("version", m.Version),
		)))
	if err != nil {
		return fmt.Errorf("save mastery %s/%s: %w", m.StudentID, m.ConceptID, err)
	}
	m.Version++
	return nil
}

func (r *masteryRepo) ByStudent(ctx context.Context, studentID string) ([]ConceptMastery, error) {
	rows, err := r.query(ctx, builder().Select(masteryColumns...).
		From(builder().Table(tableMastery)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("concept_id"))
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	defer rows.Close()

	var out []ConceptMastery
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
