package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/catalog"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate repository and script descriptors",
	Long: `Validate every configured repository's index.yaml and the index.yaml of
each script it declares: schema conformance, semantic version syntax, and
whether the entry point and source files exist.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	results := current.catalog.Check()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}

	if checkJSON {
		if results == nil {
			results = []catalog.CheckResult{}
		}
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No repositories with an index.yaml are configured.")
		}
		for _, r := range results {
			if r.OK() {
				fmt.Fprintf(out, "  [ OK ] %s\n", r.Subject)
				continue
			}
			fmt.Fprintf(out, "  [FAIL] %s (%s)\n", r.Subject, r.Path)
			for _, issue := range r.Issues {
				fmt.Fprintf(out, "         %s\n", issue)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d descriptors have problems", failed, len(results))
	}
	return nil
}
