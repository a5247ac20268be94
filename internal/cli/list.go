package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/repository"
)

var (
	listRepos []string
	listLong  bool
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scripts",
	Long: `List the scripts of every configured repository as <repository>.<script>.

Repositories without an index.yaml are skipped, as are scripts whose
descriptor cannot be read.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringArrayVar(&listRepos, "repo", nil, "Only list scripts of this repository (repeatable)")
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "Show version, folder, author, license and description")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents a script for display.
type listEntry struct {
	Name        string `json:"name"`
	Repository  string `json:"repository"`
	Script      string `json:"script"`
	Version     string `json:"version"`
	Folder      string `json:"folder"`
	Author      string `json:"author,omitempty"`
	License     string `json:"license,omitempty"`
	Description string `json:"description,omitempty"`
}

func newListEntry(s repository.Script) listEntry {
	return listEntry{
		Name:        s.QualifiedName(),
		Repository:  s.Repository,
		Script:      s.Name,
		Version:     s.Version,
		Folder:      s.FolderPath,
		Author:      s.Author,
		License:     s.License,
		Description: s.Description,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	for _, name := range listRepos {
		if _, err := current.catalog.Repository(name); err != nil {
			return err
		}
	}

	scripts := current.catalog.Scripts(listRepos...)
	entries := make([]listEntry, 0, len(scripts))
	for _, s := range scripts {
		entries = append(entries, newListEntry(s))
	}

	if listJSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	if len(entries) == 0 {
		msg := "No scripts found"
		if len(listRepos) > 0 {
			msg += " in " + strings.Join(listRepos, ", ")
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg+".")
		return nil
	}

	if !listLong {
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), e.Name)
		}
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tVERSION\tFOLDER\tAUTHOR\tLICENSE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Name, orDash(e.Version), e.Folder, orDash(e.Author), orDash(e.License), truncate(e.Description, 60))
	}
	return w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(strings.ReplaceAll(s, "\n", " ")))
	if len(r) <= n {
		return orDash(string(r))
	}
	return string(r[:n-3]) + "..."
}
