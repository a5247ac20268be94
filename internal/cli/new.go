package cli

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/branding"
	"github.com/tutils-dev/tutils/internal/scaffold"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var (
	newLang        string
	newDescription string
	newAuthor      string
	newEmail       string
	newLicense     string
)

var newCmd = &cobra.Command{
	Use:   "new <repository> <script>",
	Short: "Scaffold a new script in a repository",
	Long: `Create a script folder with an index.yaml and an entry point inside an
existing repository, and add the script to the repository's index.yaml.

Examples:
  tutils new File getCount
  tutils new File rename --lang python --author "Jane Doe"`,
	Args: cobra.ExactArgs(2),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVar(&newLang, "lang", scaffold.LangShell, "Script language ("+strings.Join(scaffold.Languages(), ", ")+")")
	newCmd.Flags().StringVar(&newDescription, "description", "", "Script description")
	newCmd.Flags().StringVar(&newAuthor, "author", "", "Script author")
	newCmd.Flags().StringVar(&newEmail, "email", "", "Author email")
	newCmd.Flags().StringVar(&newLicense, "license", "", "License identifier (e.g. MIT)")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	repoName, scriptName := args[0], args[1]
	if !namePattern.MatchString(scriptName) {
		return fmt.Errorf("invalid script name %q: must start with a letter or digit and contain only letters, digits, '_' and '-'", scriptName)
	}

	repo, err := current.catalog.Repository(repoName)
	if err != nil {
		return err
	}
	if !repo.HasIndex() {
		return fmt.Errorf("repository %s has no %s; create it with '%s repository create %s --name <name>'",
			repo.Path, filepath.Base(repo.IndexFilePath), branding.CLIName(), repo.Path)
	}

	data := scaffold.NewScaffoldData(scriptName, repo.Name)
	if newDescription != "" {
		data.Description = newDescription
	}
	data.Author = newAuthor
	data.Email = newEmail
	data.License = newLicense

	result, err := scaffold.NewScript(repo.IndexFilePath, newLang, data)
	if err != nil {
		return fmt.Errorf("scaffolding %s.%s: %w", repo.Name, scriptName, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s.%s in %s\n", repo.Name, scriptName, result.OutputDir)
	for _, f := range result.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	return nil
}
