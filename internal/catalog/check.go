package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/repository"
)

// CheckResult lists the problems found in one descriptor.
type CheckResult struct {
	Subject string   `json:"subject"` // repository name or qualified script name
	Path    string   `json:"path"`
	Issues  []string `json:"issues,omitempty"`
}

// OK reports whether no issues were found.
func (r CheckResult) OK() bool { return len(r.Issues) == 0 }

// Check validates every repository descriptor that exists and every script
// it declares: schema conformance, version syntax, and the presence of the
// entry point and source files.
func (c *Catalog) Check() []CheckResult {
	var results []CheckResult
	for _, r := range c.repos {
		if !r.HasIndex() {
			continue
		}
		results = append(results, checkRepository(r))
		for _, id := range r.Scripts {
			results = append(results, checkScript(r, id))
		}
	}
	return results
}

func checkRepository(r *repository.Repository) CheckResult {
	res := CheckResult{Subject: r.DisplayName(), Path: r.IndexFilePath}
	vr, err := descriptor.ValidateRepositoryFile(r.IndexFilePath)
	if err != nil {
		res.Issues = append(res.Issues, err.Error())
		return res
	}
	for _, issue := range vr.Issues {
		res.Issues = append(res.Issues, issue.String())
	}
	return res
}

func checkScript(r *repository.Repository, id string) CheckResult {
	indexPath := filepath.Join(r.ScriptDir(id), descriptor.IndexFileName)
	res := CheckResult{Subject: r.DisplayName() + "." + id, Path: indexPath}

	vr, err := descriptor.ValidateFile(indexPath)
	if err != nil {
		res.Issues = append(res.Issues, err.Error())
		return res
	}
	for _, issue := range vr.Issues {
		res.Issues = append(res.Issues, issue.String())
	}

	s, err := r.Script(id)
	if err != nil {
		res.Issues = append(res.Issues, err.Error())
		return res
	}
	if err := descriptor.CheckVersion(s.Version); err != nil {
		res.Issues = append(res.Issues, err.Error())
	}
	if s.EntryPoint != "" {
		if _, err := os.Stat(s.EntryPointPath()); err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("entry point %s is missing", s.EntryPoint))
		}
	}
	for i, p := range s.SourcePaths() {
		if _, err := os.Stat(p); err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("source file %s is missing", s.SourceFiles[i]))
		}
	}
	return res
}
