package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/repository"
)

var (
	showSource bool
	showJSON   bool
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a script's descriptor",
	Long: `Print the descriptor of a script, given as <repository>.<script> or a bare
script name. With --source the script's source files are printed too.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showSource, "source", false, "Print the script's source files")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(showCmd)
}

// showEntry is the JSON form of a script.
type showEntry struct {
	listEntry
	EntryPoint string              `json:"entry_point"`
	Sources    []string            `json:"sources"`
	Params     []map[string]string `json:"params,omitempty"`
	Email      string              `json:"email,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := resolveScript(current.catalog, args[0])
	if err != nil {
		return err
	}

	if showJSON {
		return printJSON(cmd.OutOrStdout(), showEntry{
			listEntry:  newListEntry(*s),
			EntryPoint: s.EntryPointPath(),
			Sources:    s.SourcePaths(),
			Params:     s.Params,
			Email:      s.Email,
		})
	}

	out := cmd.OutOrStdout()
	w := newTable(out)
	fmt.Fprintf(w, "Name:\t%s\n", s.QualifiedName())
	fmt.Fprintf(w, "Version:\t%s\n", orDash(s.Version))
	fmt.Fprintf(w, "Description:\t%s\n", orDash(s.Description))
	fmt.Fprintf(w, "Author:\t%s\n", authorLine(s))
	fmt.Fprintf(w, "License:\t%s\n", orDash(s.License))
	fmt.Fprintf(w, "Folder:\t%s\n", s.FolderPath)
	fmt.Fprintf(w, "Entry point:\t%s\n", s.EntryPointPath())
	fmt.Fprintf(w, "Sources:\t%s\n", orDash(strings.Join(s.SourceFiles, ", ")))
	if err := w.Flush(); err != nil {
		return err
	}

	if len(s.Params) > 0 {
		fmt.Fprintln(out, "\nParameters:")
		for _, p := range s.Params {
			fmt.Fprintf(out, "  %s\n", formatParam(p))
		}
	}

	if !showSource {
		return nil
	}
	for _, p := range s.SourcePaths() {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(out, "\n--- %s (unreadable: %v) ---\n", p, err)
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p)
		fmt.Fprint(out, string(data))
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func authorLine(s *repository.Script) string {
	switch {
	case s.Author != "" && s.Email != "":
		return fmt.Sprintf("%s <%s>", s.Author, s.Email)
	case s.Author != "":
		return s.Author
	}
	return orDash(s.Email)
}

// formatParam renders a parameter map as "name: description" when it has
// those keys, otherwise as sorted key=value pairs.
func formatParam(p map[string]string) string {
	if name, ok := p["name"]; ok {
		if desc := p["description"]; desc != "" {
			return name + ": " + desc
		}
		return name
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return strings.Join(parts, " ")
}
