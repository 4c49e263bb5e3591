package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/pipeline"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Repair stored results",
}

var updateIncompleteCmd = &cobra.Command{
	Use:   "incomplete",
	Short: "Re-run tests whose active result is incomplete",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(cmd, "re-ran", (*pipeline.Pipeline).UpdateIncomplete)
	},
}

var updateTranslationsCmd = &cobra.Command{
	Use:   "translations",
	Short: "Translate active results that have no Spanish reason",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(cmd, "translated", (*pipeline.Pipeline).UpdateTranslations)
	},
}

var updateSummariesCmd = &cobra.Command{
	Use:   "summaries",
	Short: "Regenerate the summary and score of every stored movie",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(cmd, "summarized", (*pipeline.Pipeline).UpdateSummaries)
	},
}

func init() {
	updateCmd.AddCommand(updateIncompleteCmd, updateTranslationsCmd, updateSummariesCmd)
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, verb string, run func(*pipeline.Pipeline, context.Context) (int, error)) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.newPipeline(cmd.Context(), printLine(cmd))
	if err != nil {
		return err
	}
	n, err := run(p, cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", verb, n)
	return nil
}
