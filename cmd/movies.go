package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/model"
	"github.com/timvw/reel-judge/internal/store"
)

// movieReport is the JSON shape printed by show.
type movieReport struct {
	model.Movie
	Results []model.TestResult  `json:"results"`
	Counts  model.VerdictCounts `json:"counts"`
}

var showCmd = &cobra.Command{
	Use:   "show <movie-id>",
	Short: "Print a stored movie with its active results as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMovieID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := buildReport(cmd, a.repo, id)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <movie-id>",
	Short: "Delete a stored movie with its results and genre links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMovieID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		exists, err := a.repo.MovieExists(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("movie %d: %w", id, store.ErrNotFound)
		}
		if err := a.repo.DeleteMovie(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted movie %d\n", id)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print totals, movies per year and verdicts per test as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.repo.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	rootCmd.AddCommand(showCmd, deleteCmd, statsCmd)
}

func buildReport(cmd *cobra.Command, repo *store.Repository, id int64) (movieReport, error) {
	movie, err := repo.GetMovie(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return movieReport{}, fmt.Errorf("movie %d: %w", id, err)
	}
	if err != nil {
		return movieReport{}, err
	}
	results, err := repo.ActiveResults(cmd.Context(), id)
	if err != nil {
		return movieReport{}, err
	}

	report := movieReport{Movie: movie, Results: results}
	if report.Results == nil {
		report.Results = []model.TestResult{}
	}
	for _, r := range results {
		report.Counts.Count(r.Verdict)
	}
	return report, nil
}

func parseMovieID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", arg)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
