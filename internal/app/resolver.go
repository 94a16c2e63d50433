package app

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"season-predictions/internal/domain"
)

// LookupTables maps opaque ids embedded in answers to display names.
type LookupTables struct {
	Players map[int64]string
	Teams   map[int64]string
}

// BuildLookupTables loads both catalogs concurrently.
func BuildLookupTables(ctx context.Context, loader CatalogLoader) (LookupTables, error) {
	var players []domain.Player
	var teams []domain.Team

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		players, err = loader.LoadPlayers(gctx)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		teams, err = loader.LoadTeams(gctx)
		if err != nil {
			return fmt.Errorf("load teams: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return LookupTables{}, err
	}

	tables := LookupTables{
		Players: make(map[int64]string, len(players)),
		Teams:   make(map[int64]string, len(teams)),
	}
	for _, p := range players {
		tables.Players[p.ID] = p.Name
	}
	for _, t := range teams {
		tables.Teams[t.ID] = t.Name
	}
	return tables, nil
}

// Resolve turns a raw answer into a display value for the question's variant.
// Non-integer answers and numeric totals are returned unchanged.
func (t LookupTables) Resolve(raw string, q domain.Question) string {
	id, ok := parseID(raw)
	if !ok {
		return raw
	}

	switch v := q.Variant.(type) {
	case *domain.SuperlativeQuestion, *domain.PropQuestion, *domain.PlayerStatPredictionQuestion:
		return t.player(id)
	case *domain.InSeasonTournamentQuestion:
		if v.Tiebreaker() {
			return raw
		}
		return t.team(id)
	case *domain.NBAFinalsPredictionQuestion:
		if domain.IsWinsTotal(q.Text) {
			return raw
		}
		return t.team(id)
	case *domain.HeadToHeadQuestion:
		return t.team(id)
	default:
		return raw
	}
}

// ResolveBatch resolves many answers against a pre-fetched question map. Output
// order matches answers and is identical to calling Resolve per row.
func (t LookupTables) ResolveBatch(answers []domain.Answer, questions map[int64]domain.Question) []string {
	out := make([]string, len(answers))
	for i, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			out[i] = a.Value
			continue
		}
		out[i] = t.Resolve(a.Value, q)
	}
	return out
}

func (t LookupTables) player(id int64) string {
	if name, ok := t.Players[id]; ok {
		return name
	}
	return fmt.Sprintf("Player ID %d not found", id)
}

func (t LookupTables) team(id int64) string {
	if name, ok := t.Teams[id]; ok {
		return name
	}
	return fmt.Sprintf("Team ID %d not found", id)
}

// parseID accepts only pure digit strings.
func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
