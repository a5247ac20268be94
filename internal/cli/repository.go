package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/branding"
	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/fetcher"
	"github.com/tutils-dev/tutils/internal/repository"
)

func init() {
	repositoryCmd.AddCommand(repositoryListCmd)
	repositoryCmd.AddCommand(repositoryAddCmd)
	repositoryCmd.AddCommand(repositoryRemoveCmd)
	repositoryCmd.AddCommand(repositoryUpdateCmd)
	repositoryCmd.AddCommand(repositoryCreateCmd)
	repositoryCmd.AddCommand(repositoryFetchCmd)
	rootCmd.AddCommand(repositoryCmd)
}

var repositoryCmd = &cobra.Command{
	Use:     "repository",
	Aliases: []string{"repo"},
	Short:   "Manage script repositories",
	Long: `Manage the repositories listed in ~/.tutils/config.yaml.

A local repository is a directory with an index.yaml. A remote repository is
a local directory mirrored from the index.yaml at its link by
'tutils repository update'.`,
}

// ─── repository list ───────────────────────────────────────────────

var repositoryListJSON bool

var repositoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repos := current.catalog.Repositories()
		entries := make([]repositoryEntry, 0, len(repos))
		for _, r := range repos {
			entries = append(entries, newRepositoryEntry(r))
		}

		if repositoryListJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No repositories configured. Add one with '%s repository add <path>'.\n", branding.CLIName())
			return nil
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "NAME\tTYPE\tSCRIPTS\tUPDATED\tPATH\tLINK")
		for _, e := range entries {
			scripts := "-"
			if e.HasIndex {
				scripts = fmt.Sprintf("%d", e.Scripts)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				orDash(e.Name), e.Type, scripts, orDash(e.Updated), e.Path, orDash(e.Link))
		}
		return w.Flush()
	},
}

// repositoryEntry represents a configured repository for display.
type repositoryEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Link     string `json:"link,omitempty"`
	HasIndex bool   `json:"has_index"`
	Scripts  int    `json:"scripts"`
	Updated  string `json:"updated,omitempty"`
}

func newRepositoryEntry(r *repository.Repository) repositoryEntry {
	e := repositoryEntry{
		Name:     r.Name,
		Path:     r.Path,
		Type:     string(r.Kind),
		Link:     r.Link,
		HasIndex: r.HasIndex(),
		Scripts:  len(r.Scripts),
	}
	if t := r.LastUpdated(); !t.IsZero() {
		e.Updated = t.Local().Format("2006-01-02 15:04")
	}
	return e
}

// ─── repository add ────────────────────────────────────────────────

var (
	repositoryAddType string
	repositoryAddLink string
)

var repositoryAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a repository to the configuration",
	Long: `Add a local directory, or a remote repository mirrored into it, to the
configuration.

Examples:
  tutils repository add ~/scripts/File
  tutils repository add ~/scripts/Net --type remote --link https://example.com/net/index.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := config.RepoEntry{Path: args[0], Type: repositoryAddType, Link: repositoryAddLink}
		if entry.Link != "" {
			if err := fetcher.ValidateURL(entry.Link); err != nil {
				return err
			}
		}

		cfg, err := current.cfg.WithRepository(entry)
		if err != nil {
			return err
		}
		if err := config.Save(current.configPath, cfg); err != nil {
			return err
		}

		added := cfg.Repositories[len(cfg.Repositories)-1]
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s repository %s\n", added.Type, added.Path)
		if added.Type == config.TypeRemote {
			fmt.Fprintf(cmd.OutOrStdout(), "Run '%s repository update' to download its scripts.\n", branding.CLIName())
		}
		return nil
	},
}

// ─── repository remove ─────────────────────────────────────────────

var repositoryRemoveCmd = &cobra.Command{
	Use:     "remove <name|path>",
	Aliases: []string{"rm"},
	Short:   "Remove a repository from the configuration",
	Long:    `Remove a repository from the configuration. Files on disk are left in place.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if r, err := current.catalog.Repository(args[0]); err == nil {
			path = r.Path
		}

		cfg, removed := current.cfg.WithoutRepository(path)
		if !removed {
			return fmt.Errorf("repository %q is not configured", args[0])
		}
		if err := config.Save(current.configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed repository %s\n", config.ExpandPath(path))
		return nil
	},
}

// ─── repository update ─────────────────────────────────────────────

var repositoryUpdateCmd = &cobra.Command{
	Use:   "update [name...]",
	Short: "Download remote repositories into their local paths",
	Long: `Mirror every remote repository, or only the named ones, from its link.

Each repository is updated independently: a failure is reported and the
remaining repositories are still updated. Local repositories are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outcomes := current.catalog.UpdateAll(cmd.Context(), args...)
		if len(args) > 0 && len(outcomes) == 0 {
			return fmt.Errorf("no configured repository matches %s", strings.Join(args, ", "))
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, o := range outcomes {
			if !o.OK {
				failed++
				fmt.Fprintf(out, "  [FAIL] %s: %v\n", o.Repository, o.Err)
				continue
			}
			printUpdateReport(cmd, o.Report)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d repositories failed to update", failed, len(outcomes))
		}
		return nil
	},
}

func printUpdateReport(cmd *cobra.Command, report *repository.UpdateReport) {
	out := cmd.OutOrStdout()
	if report == nil {
		return
	}
	if report.Files == 0 {
		fmt.Fprintf(out, "  [ OK ] %s: nothing to update\n", report.Repository)
		return
	}
	fmt.Fprintf(out, "  [ OK ] %s: %d files, %d bytes\n", report.Repository, report.Files, report.Bytes)
	for _, s := range report.Scripts {
		switch s.Change {
		case descriptor.ChangeUnchanged:
			continue
		case descriptor.ChangeAdded:
			fmt.Fprintf(out, "         + %s %s\n", s.Name, s.Current)
		default:
			fmt.Fprintf(out, "         %s %s -> %s (%s)\n", s.Name, orDash(s.Previous), s.Current, s.Change)
		}
	}
}

// ─── repository create ─────────────────────────────────────────────

var (
	repositoryCreateName string
	repositoryCreateAdd  bool
)

var repositoryCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create an empty repository",
	Long: `Write an index.yaml with no scripts at <path>. When <path> is a directory,
or has no .yaml extension, index.yaml is created inside it.

Examples:
  tutils repository create ~/scripts/File --name File --add`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ExpandPath(args[0])
		if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
			path = filepath.Join(path, descriptor.IndexFileName)
		} else if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, descriptor.IndexFileName)
		}

		name := repositoryCreateName
		if name == "" {
			name = filepath.Base(filepath.Dir(path))
		}
		if !namePattern.MatchString(name) {
			return fmt.Errorf("invalid repository name %q: use letters, digits, '_' and '-'", name)
		}

		if err := current.catalog.CreateRepository(path, name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created repository %s at %s\n", name, path)

		if !repositoryCreateAdd {
			return nil
		}
		cfg, err := current.cfg.WithRepository(config.RepoEntry{Path: filepath.Dir(path), Type: config.TypeLocal})
		if err != nil {
			return err
		}
		if err := config.Save(current.configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Added it to the configuration.")
		return nil
	},
}

// ─── repository fetch ──────────────────────────────────────────────

var (
	repositoryFetchRef   string
	repositoryFetchClean bool
)

var repositoryFetchCmd = &cobra.Command{
	Use:   "fetch <git-url> <dest> [path...]",
	Short: "Sparse-clone script folders from a git repository",
	Long: `Clone only the given paths of a git repository into <dest> using a shallow,
blobless, sparse checkout. Requires git on PATH. An existing <dest> is left
alone unless --clean is given.

Examples:
  tutils repository fetch https://github.com/me/scripts.git ~/scripts/mine File Net`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := fetcher.NewGitFetcher(args[0], fetcher.WithGitLogger(current.log))
		if err != nil {
			return err
		}
		dest, err := g.Fetch(cmd.Context(), args[2:], args[1], fetcher.FetchOptions{
			Ref:   repositoryFetchRef,
			Clean: repositoryFetchClean,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s into %s\n", g.URL(), dest)
		fmt.Fprintf(cmd.OutOrStdout(), "Add its repositories with '%s repository add <path>'.\n", branding.CLIName())
		return nil
	},
}

func init() {
	repositoryListCmd.Flags().BoolVar(&repositoryListJSON, "json", false, "Output in JSON format")
	repositoryAddCmd.Flags().StringVar(&repositoryAddType, "type", config.TypeLocal, "Repository type (local, remote)")
	repositoryAddCmd.Flags().StringVar(&repositoryAddLink, "link", "", "URL of the remote index.yaml")
	repositoryCreateCmd.Flags().StringVar(&repositoryCreateName, "name", "", "Repository name (default: directory name)")
	repositoryCreateCmd.Flags().BoolVar(&repositoryCreateAdd, "add", false, "Add the new repository to the configuration")
	repositoryFetchCmd.Flags().StringVar(&repositoryFetchRef, "ref", fetcher.DefaultRef, "Git ref to check out")
	repositoryFetchCmd.Flags().BoolVar(&repositoryFetchClean, "clean", false, "Remove <dest> before cloning")
}
