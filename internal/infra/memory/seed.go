package memory

import (
	"fmt"

	"season-predictions/internal/domain"
)

// Seed helpers load fixtures outside any grading transaction. A zero ID is
// assigned automatically; the stored record is returned.

func (s *Store) AddSeason(season domain.Season) (domain.Season, error) {
	err := s.seed(func(d *dataset) error {
		for _, existing := range d.seasons {
			if existing.Slug == season.Slug {
				return fmt.Errorf("%w: season slug %q already exists", ErrConstraint, season.Slug)
			}
		}
		season.ID = d.id(season.ID)
		d.seasons[season.ID] = season
		return nil
	})
	return season, err
}

func (s *Store) AddUser(u domain.User) (domain.User, error) {
	err := s.seed(func(d *dataset) error {
		u.ID = d.id(u.ID)
		d.users[u.ID] = u
		return nil
	})
	return u, err
}

func (s *Store) AddPlayer(p domain.Player) (domain.Player, error) {
	err := s.seed(func(d *dataset) error {
		p.ID = d.id(p.ID)
		d.players[p.ID] = p
		return nil
	})
	return p, err
}

func (s *Store) AddTeam(t domain.Team) (domain.Team, error) {
	err := s.seed(func(d *dataset) error {
		t.ID = d.id(t.ID)
		d.teams[t.ID] = t
		return nil
	})
	return t, err
}

func (s *Store) AddAward(a domain.Award) (domain.Award, error) {
	err := s.seed(func(d *dataset) error {
		a.ID = d.id(a.ID)
		d.awards[a.ID] = a
		return nil
	})
	return a, err
}

func (s *Store) AddOdds(entries ...domain.OddsEntry) error {
	return s.seed(func(d *dataset) error {
		d.odds = append(d.odds, entries...)
		return nil
	})
}

// AddQuestion stores a validated question. A zero PointValue gets domain.DefaultPointValue.
func (s *Store) AddQuestion(q domain.Question) (domain.Question, error) {
	if q.PointValue == 0 {
		q.PointValue = domain.DefaultPointValue
	}
	err := s.seed(func(d *dataset) error {
		if _, ok := d.seasons[q.SeasonID]; !ok {
			return fmt.Errorf("%w: season %d", domain.ErrSeasonNotFound, q.SeasonID)
		}
		if err := q.Validate(); err != nil {
			return err
		}
		q.ID = d.id(q.ID)
		d.questions[q.ID] = cloneQuestion(q)
		return nil
	})
	return q, err
}

// AddAnswer enforces one answer per user and question.
func (s *Store) AddAnswer(a domain.Answer) (domain.Answer, error) {
	err := s.seed(func(d *dataset) error {
		if _, ok := d.questions[a.QuestionID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, a.QuestionID)
		}
		for _, existing := range d.answers {
			if existing.UserID == a.UserID && existing.QuestionID == a.QuestionID {
				return fmt.Errorf("%w: user %d already answered question %d", ErrConstraint, a.UserID, a.QuestionID)
			}
		}
		a.ID = d.id(a.ID)
		d.answers[a.ID] = a
		return nil
	})
	return a, err
}

// AddStandingPrediction enforces one prediction per user, season and team.
func (s *Store) AddStandingPrediction(p domain.StandingPrediction) (domain.StandingPrediction, error) {
	err := s.seed(func(d *dataset) error {
		for _, existing := range d.predictions {
			if existing.UserID == p.UserID && existing.SeasonID == p.SeasonID && existing.TeamID == p.TeamID {
				return fmt.Errorf("%w: user %d already predicted team %d", ErrConstraint, p.UserID, p.TeamID)
			}
		}
		p.ID = d.id(p.ID)
		d.predictions[p.ID] = p
		return nil
	})
	return p, err
}

func (s *Store) SetRegularSeasonStandings(seasonID int64, rows []domain.RegularSeasonStanding) error {
	return s.seed(func(d *dataset) error {
		for i := range rows {
			rows[i].SeasonID = seasonID
		}
		d.regular[seasonID] = append([]domain.RegularSeasonStanding(nil), rows...)
		return nil
	})
}

func (s *Store) SetTournamentStandings(seasonID int64, rows []domain.TournamentStanding) error {
	return s.seed(func(d *dataset) error {
		for i := range rows {
			rows[i].SeasonID = seasonID
		}
		d.tournament[seasonID] = append([]domain.TournamentStanding(nil), rows...)
		return nil
	})
}
