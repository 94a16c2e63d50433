package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// NewGradeCmd runs one grading pass and prints its summary.
func NewGradeCmd(configPath *string) *cobra.Command {
	var (
		season        string
		grader        string
		forceKnockout bool
		timeout       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a season and recompute user totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd.Context(), timeout)
			defer cancel()

			rt, err := newRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.grading.Grade(ctx, app.GradeRequest{
				Season:        season,
				Grader:        app.GraderName(grader),
				ForceKnockout: forceKnockout,
			})
			if err != nil {
				if summary.Season != "" {
					if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&season, "season", domain.CurrentSeason, "season slug or \"current\"")
	cmd.Flags().StringVar(&grader, "grader", string(app.GraderAll), "standings, answers, tournament or all")
	cmd.Flags().BoolVar(&forceKnockout, "force-knockout", false, "grade knockout picks before the knockout round is detected")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "abort the run after this long (0 disables)")
	return cmd
}

// NewLeaderboardCmd prints a season leaderboard.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		season     string
		tournament bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print a season leaderboard as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			var lb domain.Leaderboard
			if tournament {
				lb, err = rt.board.TournamentLeaderboard(cmd.Context(), season)
			} else {
				lb, err = rt.board.Leaderboard(cmd.Context(), season)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lb)
		},
	}
	cmd.Flags().StringVar(&season, "season", domain.CurrentSeason, "season slug or \"current\"")
	cmd.Flags().BoolVar(&tournament, "tournament", false, "print the in-season tournament leaderboard")
	return cmd
}

// NewLookupsCmd groups lookup table maintenance.
func NewLookupsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookups",
		Short: "Manage the player and team name tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Clear and rebuild the name tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			tables, err := rt.admin.RefreshLookups(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d players, %d teams\n", len(tables.Players), len(tables.Teams))
			return nil
		},
	})
	return cmd
}

// NewAnswerCmd sets or clears a question's correct answer.
func NewAnswerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Manage question answer keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <question-id> [value]",
		Short: "Set the correct answer; omit the value to clear it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQuestionID(args[0])
			if err != nil {
				return err
			}
			value := ""
			if len(args) == 2 {
				value = args[1]
			}

			rt, err := newRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.admin.SetCorrectAnswer(cmd.Context(), id, value)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	})
	return cmd
}

// NewSuperlativeCmd groups award question maintenance.
func NewSuperlativeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superlative",
		Short: "Manage award questions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "odds <question-id>",
		Short: "Refresh leader and runner-up from the latest odds snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQuestionID(args[0])
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.admin.UpdateFromLatestOdds(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q.Variant)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "finalize <question-id> <winner>",
		Short: "Lock in the award winner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQuestionID(args[0])
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.admin.FinalizeWinners(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q.Variant)
		},
	})
	return cmd
}

func parseQuestionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid question id %q", raw)
	}
	return id, nil
}
