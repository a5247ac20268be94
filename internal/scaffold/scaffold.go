package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/errs"
)

// Supported script languages.
const (
	LangPython = "python"
	LangShell  = "shell"
	LangNode   = "node"
)

// repositorySet holds the templates written next to a new repository descriptor.
const repositorySet = "repository"

// ScaffoldData holds all template variables available to scaffold templates.
type ScaffoldData struct {
	Name        string // script identifier, e.g. "getCount"
	Repository  string // repository name, e.g. "File"
	Description string
	Version     string
	Author      string
	Email       string
	License     string
	Date        string // creation date, YYYY-MM-DD
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewScaffoldData creates a ScaffoldData with derived fields populated.
func NewScaffoldData(name, repository string) *ScaffoldData {
	return &ScaffoldData{
		Name:        name,
		Repository:  repository,
		Description: fmt.Sprintf("%s script in %s", name, repository),
		Version:     descriptor.DefaultVersion,
		Date:        time.Now().Format("2006-01-02"),
	}
}

// Languages returns the script languages that have a template set.
func Languages() []string {
	return []string{LangPython, LangShell, LangNode}
}

// Generate renders the template set for lang into outputDir, which must be
// empty or absent. The generated descriptor is validated and any schema
// issues are returned as warnings.
func Generate(lang string, data *ScaffoldData, outputDir string) (*Result, error) {
	if !slices.Contains(Languages(), lang) {
		return nil, fmt.Errorf("unsupported language %q (supported: %s)", lang, strings.Join(Languages(), ", "))
	}

	entries, err := fs.ReadDir(scaffoldFS, path.Join("scaffolds", lang))
	if err != nil {
		return nil, fmt.Errorf("template set %q not found: %w", lang, err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.New(errs.ErrIO, outputDir, err)
	}

	// Refuse to overwrite an existing script.
	existingEntries, err := os.ReadDir(outputDir)
	if err == nil && len(existingEntries) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}
	if err := render(lang, entries, data, outputDir, result); err != nil {
		return nil, err
	}

	descPath := filepath.Join(outputDir, descriptor.IndexFileName)
	valResult, valErr := descriptor.ValidateFile(descPath)
	if valErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not validate descriptor: %v", valErr))
	} else if !valResult.Valid {
		for _, issue := range valResult.Issues {
			result.Warnings = append(result.Warnings, issue.String())
		}
	}

	return result, nil
}

// NewScript generates a script folder inside the repository whose descriptor
// lives at repoIndexPath and appends the script to the descriptor's list.
func NewScript(repoIndexPath, lang string, data *ScaffoldData) (*Result, error) {
	repo, err := descriptor.ParseRepository(repoIndexPath)
	if err != nil {
		return nil, err
	}
	if slices.Contains(repo.Scripts, data.Name) {
		return nil, fmt.Errorf("script %q is already declared in %s", data.Name, repoIndexPath)
	}
	if data.Repository == "" {
		data.Repository = repo.Name
	}

	result, err := Generate(lang, data, filepath.Join(filepath.Dir(repoIndexPath), data.Name))
	if err != nil {
		return nil, err
	}

	repo.Scripts = append(repo.Scripts, data.Name)
	if err := descriptor.WriteRepository(repoIndexPath, repo); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateRepository writes an empty repository descriptor named name at
// descriptorPath, creating its directory, plus a README when none exists.
// An existing descriptor is never overwritten.
func CreateRepository(descriptorPath, name string) error {
	dir := filepath.Dir(descriptorPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.New(errs.ErrIO, dir, err)
	}
	if _, err := os.Stat(descriptorPath); err == nil {
		return fmt.Errorf("repository descriptor %s already exists", descriptorPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return errs.New(errs.ErrIO, descriptorPath, err)
	}

	if err := descriptor.WriteRepository(descriptorPath, &descriptor.Repository{Name: name, Scripts: []string{}}); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, "README.md")); err == nil {
		return nil
	}
	entries, err := fs.ReadDir(scaffoldFS, path.Join("scaffolds", repositorySet))
	if err != nil {
		return fmt.Errorf("template set %q not found: %w", repositorySet, err)
	}
	return render(repositorySet, entries, NewScaffoldData("", name), dir, &Result{OutputDir: dir})
}

func render(set string, entries []fs.DirEntry, data *ScaffoldData, outputDir string, result *Result) error {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		tmplPath := path.Join("scaffolds", set, entry.Name())
		tmplBytes, err := fs.ReadFile(scaffoldFS, tmplPath)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", tmplPath, err)
		}

		// Strip .tmpl extension for the output filename.
		outName := strings.TrimSuffix(entry.Name(), ".tmpl")
		outPath := filepath.Join(outputDir, outName)

		tmpl, err := template.New(entry.Name()).Parse(string(tmplBytes))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("executing template %s: %w", entry.Name(), err)
		}

		if err := os.WriteFile(outPath, buf.Bytes(), fileMode(outName)); err != nil {
			return errs.New(errs.ErrIO, outPath, err)
		}

		result.Files = append(result.Files, outName)
	}
	return nil
}

// fileMode makes entry points executable.
func fileMode(name string) os.FileMode {
	switch filepath.Ext(name) {
	case ".sh", ".py", ".mjs":
		return 0755
	}
	return 0644
}
