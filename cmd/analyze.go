package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/pipeline"
	"github.com/timvw/reel-judge/internal/tui"
)

var (
	flagYear       int
	flagPage       int
	flagOverwrite  bool
	flagClearCache bool
	flagMovieID    int64
	flagTUI        bool
	flagTheme      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fetch movies from TMDB and judge them against every test",
	Long: `Fetch one page of popular movies released in a year (or a single movie
with --movie-id) and run every stored test against each of them.

Movies that are already stored are skipped unless --overwrite is given; an
overwrite keeps the previous results but marks them inactive. Movies the
model knows nothing about are removed again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.TMDB.Token == "" {
			return fmt.Errorf("no TMDB token found. Set REEL_JUDGE_TMDB_TOKEN or TMDB_API_TOKEN")
		}

		work := func(ctx context.Context, progress func(string)) error {
			p, err := a.newPipeline(ctx, progress)
			if err != nil {
				return err
			}
			if flagMovieID > 0 {
				outcome, err := p.AnalyzeMovie(ctx, flagMovieID, flagOverwrite, flagClearCache)
				if err != nil {
					return err
				}
				progress(fmt.Sprintf("%s: %s", movieLabel(outcome), outcome.State))
				return nil
			}
			_, err = p.AnalyzeMovies(ctx, pipeline.Options{
				Year:       flagYear,
				Page:       flagPage,
				Overwrite:  flagOverwrite,
				ClearCache: flagClearCache,
			})
			return err
		}

		if flagTUI {
			view := &tui.Progress{Title: analyzeTitle(), ThemeName: flagTheme}
			return view.Run(cmd.Context(), work)
		}
		return work(cmd.Context(), printLine(cmd))
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&flagYear, "year", time.Now().Year(), "release year to analyze")
	analyzeCmd.Flags().IntVar(&flagPage, "page", 1, "TMDB result page")
	analyzeCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "re-analyze movies that are already stored")
	analyzeCmd.Flags().BoolVar(&flagClearCache, "clear-cache", false, "empty the probe cache before starting")
	analyzeCmd.Flags().Int64Var(&flagMovieID, "movie-id", 0, "analyze a single TMDB movie instead of a page")
	analyzeCmd.Flags().BoolVar(&flagTUI, "tui", false, "show a live progress view")
	analyzeCmd.Flags().StringVar(&flagTheme, "theme", "dark", "color theme for --tui: dark, light")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeTitle() string {
	if flagMovieID > 0 {
		return fmt.Sprintf("reel-judge: movie %d", flagMovieID)
	}
	return fmt.Sprintf("reel-judge: %d page %d", flagYear, flagPage)
}

func movieLabel(o pipeline.Outcome) string {
	if o.Movie.Title == "" {
		return fmt.Sprintf("movie %d", o.Movie.ID)
	}
	return fmt.Sprintf("%s (%d)", o.Movie.Title, o.Movie.Year)
}

// printLine returns a progress callback writing to the command's stdout.
func printLine(cmd *cobra.Command) func(string) {
	out := cmd.OutOrStdout()
	return func(line string) { fmt.Fprintln(out, line) }
}
