package app

import (
	"context"
	"fmt"
	"strings"

	"season-predictions/internal/domain"
)

// normalizeAnswer is the comparison form used by exact-match grading.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MatchesCorrectAnswer resolves both sides through the question's variant and
// compares them case- and whitespace-insensitively.
func MatchesCorrectAnswer(tables LookupTables, q domain.Question, raw string) bool {
	if !q.HasCorrectAnswer() {
		return false
	}
	got := tables.Resolve(raw, q)
	want := tables.Resolve(strings.TrimSpace(*q.CorrectAnswer), q)
	return normalizeAnswer(got) == normalizeAnswer(want)
}

// gradeAnswers applies exact-match grading to every non-tournament answer whose
// question has a correct answer. Pending questions are left untouched.
func (r *run) gradeAnswers(ctx context.Context, tx Tx, tables LookupTables) error {
	questions, err := questionIndex(ctx, tx, r.season.ID)
	if err != nil {
		return err
	}
	answers, err := tx.Answers(ctx, r.season.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}

	changed := make([]domain.Answer, 0)
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			r.tally.processed++
			r.skip(SkipUnknownQuestion).Int64("answer_id", a.ID).Int64("question_id", a.QuestionID).Msg("answer references unknown question")
			continue
		}
		if q.IsTournament() {
			continue
		}
		r.tally.processed++
		if !q.HasCorrectAnswer() {
			r.skip(SkipNoCorrectAnswer).Int64("answer_id", a.ID).Int64("question_id", q.ID).Msg("question not resolved yet, answer left pending")
			continue
		}

		correct := MatchesCorrectAnswer(tables, q, a.Value)
		points := 0.0
		if correct {
			points = q.PointValue
		}
		if !applyGrade(&a, points, correct) {
			continue
		}
		changed = append(changed, a)
	}

	err = inBatches(changed, r.batchSize, func(batch []domain.Answer) error {
		return tx.UpdateAnswerGrades(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("update answer grades: %w", err)
	}
	r.tally.updated += len(changed)
	return nil
}

// applyGrade sets points and correctness on a, reporting whether either changed.
func applyGrade(a *domain.Answer, points float64, correct bool) bool {
	if a.PointsEarned == points && a.IsCorrect != nil && *a.IsCorrect == correct {
		return false
	}
	a.PointsEarned = points
	a.IsCorrect = &correct
	return true
}

func questionIndex(ctx context.Context, r Reader, seasonID int64) (map[int64]domain.Question, error) {
	questions, err := r.Questions(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	index := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		index[q.ID] = q
	}
	return index, nil
}
