package app

import (
	"math"
	"sort"

	"season-predictions/internal/domain"
)

// Insight thresholds on the global correct rate of a question.
const (
	HardWinBelow   = 0.35
	EasyMissAbove  = 0.65
	MaxInsights    = 3
	insightDecimal = 100
)

// QuestionRate is the share of known-outcome answers to a question that were correct.
type QuestionRate struct {
	Correct int
	Total   int
}

func (r QuestionRate) Value() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// QuestionRates computes per-question correct rates over answers with a known outcome.
func QuestionRates(answers []domain.Answer) map[int64]QuestionRate {
	rates := make(map[int64]QuestionRate)
	for _, a := range answers {
		if a.IsCorrect == nil {
			continue
		}
		r := rates[a.QuestionID]
		r.Total++
		if *a.IsCorrect {
			r.Correct++
		}
		rates[a.QuestionID] = r
	}
	return rates
}

// Annotate decorates built entries with best-in-category badges, hard wins and
// easy misses. Entries are modified in place.
func Annotate(entries []domain.LeaderboardEntry, rates map[int64]QuestionRate) {
	best := make(map[string]float64)
	for _, e := range entries {
		for name, cat := range e.Categories {
			if cat.Points > best[name] {
				best[name] = cat.Points
			}
		}
	}

	for i := range entries {
		e := &entries[i]
		e.Badges = e.Badges[:0]
		e.HardWins = e.HardWins[:0]
		e.EasyMisses = e.EasyMisses[:0]

		for _, name := range sortedCategories(e.Categories) {
			cat := e.Categories[name]
			if cat.Points > 0 && cat.Points == best[name] {
				e.Badges = append(e.Badges, domain.Badge{
					Type:     domain.BadgeBestInCategory,
					Category: name,
					Points:   cat.Points,
				})
			}
		}

		for _, name := range sortedCategories(e.Categories) {
			for _, p := range e.Categories[name].Predictions {
				if p.QuestionID == 0 || p.Correct == nil {
					continue
				}
				r, ok := rates[p.QuestionID]
				if !ok || r.Total == 0 {
					continue
				}
				rate := r.Value()
				switch {
				case *p.Correct && rate < HardWinBelow && len(e.HardWins) < MaxInsights:
					e.HardWins = append(e.HardWins, insight(p, rate))
				case !*p.Correct && rate > EasyMissAbove && len(e.EasyMisses) < MaxInsights:
					e.EasyMisses = append(e.EasyMisses, insight(p, rate))
				}
			}
		}
	}
}

func insight(p domain.Prediction, rate float64) domain.Insight {
	return domain.Insight{
		QuestionID: p.QuestionID,
		Question:   p.Question,
		Answer:     p.Answer,
		GlobalRate: math.Round(rate*insightDecimal) / insightDecimal,
	}
}

func sortedCategories(cats map[string]*domain.CategoryBreakdown) []string {
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
