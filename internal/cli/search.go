package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/catalog"
)

var (
	searchRepos  []string
	searchCutoff float64
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search script names",
	Long: `Rank scripts by how closely their name matches the query.

Names containing the query score highest; other names are scored by edit
distance. Matching is case-insensitive. Matches below --cutoff are hidden.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringArrayVar(&searchRepos, "repo", nil, "Only search this repository (repeatable)")
	searchCmd.Flags().Float64Var(&searchCutoff, "cutoff", catalog.DefaultCutoff, "Minimum score between 0 and 1")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	cutoff := searchCutoff
	if cutoff == 0 {
		// An explicit 0 means "show everything".
		cutoff = -1
	}

	matches := current.catalog.FuzzySearch(query, catalog.SearchOptions{
		Repositories: searchRepos,
		Cutoff:       cutoff,
	})

	if searchJSON {
		if matches == nil {
			matches = []catalog.Match{}
		}
		return printJSON(cmd.OutOrStdout(), matches)
	}

	if len(matches) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No scripts found matching %q\n", query)
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tSCORE")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%.3f\n", m.Name, m.Score)
	}
	return w.Flush()
}
