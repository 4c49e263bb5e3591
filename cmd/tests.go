package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/model"
	"gopkg.in/yaml.v3"
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Manage the test battery",
}

var testsLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load tests from a YAML file into the database",
	Long: `Load tests from a YAML list such as

  - id: 1
    name: Bechdel-Wallace
    objective: At least two named women talk to each other about something other than a man.

Existing tests with the same id are updated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tests, err := readTests(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.repo.SaveTests(cmd.Context(), tests); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d tests\n", len(tests))
		return nil
	},
}

var testsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tests in run order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tests, err := a.repo.GetTests(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tOBJECTIVE")
		for _, t := range tests {
			fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Objective)
		}
		return w.Flush()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// openApp migrates before returning.
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", a.gw.Driver())
		return nil
	},
}

func init() {
	testsCmd.AddCommand(testsLoadCmd, testsListCmd)
	rootCmd.AddCommand(testsCmd, migrateCmd)
}

// readTests parses and checks a test battery file.
func readTests(path string) ([]model.Test, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tests: %w", err)
	}
	var tests []model.Test
	if err := yaml.Unmarshal(data, &tests); err != nil {
		return nil, fmt.Errorf("parsing tests file %s: %w", path, err)
	}
	seen := make(map[int64]bool, len(tests))
	for i, t := range tests {
		if t.ID <= 0 || t.Name == "" {
			return nil, fmt.Errorf("test %d in %s needs a positive id and a name", i+1, path)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate test id %d in %s", t.ID, path)
		}
		seen[t.ID] = true
	}
	return tests, nil
}
