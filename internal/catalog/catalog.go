package catalog

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/logger"
	"github.com/tutils-dev/tutils/internal/repository"
	"github.com/tutils-dev/tutils/internal/scaffold"
	"go.uber.org/zap"
)

// Catalog owns the repositories of one invocation, in configured order.
// It is not safe for concurrent mutation.
type Catalog struct {
	repos    []*repository.Repository
	repoOpts []repository.Option
	log      *logger.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger passed down to every repository.
func WithLogger(l *logger.Logger) Option {
	return func(c *Catalog) {
		c.log = l
	}
}

// WithRepositoryOptions applies opts to every repository the catalog builds.
func WithRepositoryOptions(opts ...repository.Option) Option {
	return func(c *Catalog) {
		c.repoOpts = append(c.repoOpts, opts...)
	}
}

// New builds a repository record for each entry.
func New(entries []config.RepoEntry, opts ...Option) *Catalog {
	c := &Catalog{}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)

	ropts := append([]repository.Option{repository.WithLogger(c.log)}, c.repoOpts...)
	for _, e := range entries {
		c.repos = append(c.repos, repository.New(e, ropts...))
	}
	return c
}

// Repositories returns every configured repository, including those without
// a descriptor file.
func (c *Catalog) Repositories() []*repository.Repository {
	return slices.Clone(c.repos)
}

// Repository finds a repository by descriptor name or by path.
func (c *Catalog) Repository(nameOrPath string) (*repository.Repository, error) {
	for _, r := range c.repos {
		if r.Name == nameOrPath {
			return r, nil
		}
	}
	abs := config.ExpandPath(nameOrPath)
	for _, r := range c.repos {
		if filepath.Clean(r.Path) == filepath.Clean(abs) {
			return r, nil
		}
	}
	return nil, errs.New(errs.ErrRepositoryNotFound, nameOrPath, nil)
}

// Scripts returns the script records of every repository whose descriptor
// file exists, optionally restricted to the named repositories. Order is
// configured repository order, then declared script order.
func (c *Catalog) Scripts(filter ...string) []repository.Script {
	var out []repository.Script
	for _, r := range c.repos {
		if !r.HasIndex() {
			continue
		}
		if len(filter) > 0 && !slices.Contains(filter, r.Name) {
			continue
		}
		out = append(out, r.ListScripts()...)
	}
	return out
}

// ListScripts returns the qualified names of Scripts(filter...).
func (c *Catalog) ListScripts(filter ...string) []string {
	scripts := c.Scripts(filter...)
	names := make([]string, 0, len(scripts))
	for _, s := range scripts {
		names = append(names, s.QualifiedName())
	}
	return names
}

// Resolve finds a script by name. A name containing "." is split on the
// first "." into repository and script, which must match both exactly. When
// no repository has that name, or the name has no ".", it is treated as bare
// and resolves to the first script, in catalog order, whose qualified name
// ends with "."+name; a script called "convert.ico" is still found by its
// own name. Use Candidates to detect ambiguity.
func (c *Catalog) Resolve(name string) (*repository.Script, error) {
	matches := c.match(name, true)
	if len(matches) == 0 {
		return nil, errs.New(errs.ErrScriptNotFound, name, nil)
	}
	return &matches[0], nil
}

// Candidates returns the qualified names of every script that Resolve could
// pick for name.
func (c *Catalog) Candidates(name string) []string {
	matches := c.match(name, false)
	names := make([]string, 0, len(matches))
	for _, s := range matches {
		names = append(names, s.QualifiedName())
	}
	return names
}

func (c *Catalog) match(name string, firstOnly bool) []repository.Script {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var out []repository.Script
	if repoName, scriptName, ok := strings.Cut(name, "."); ok {
		for _, s := range c.Scripts(repoName) {
			if s.Name == scriptName {
				out = append(out, s)
				if firstOnly {
					return out
				}
			}
		}
		if len(out) > 0 || c.hasRepository(repoName) {
			return out
		}
	}

	suffix := "." + name
	for _, s := range c.Scripts() {
		if strings.HasSuffix(s.QualifiedName(), suffix) {
			out = append(out, s)
			if firstOnly {
				return out
			}
		}
	}
	return out
}

func (c *Catalog) hasRepository(name string) bool {
	for _, r := range c.repos {
		if r.HasIndex() && r.Name == name {
			return true
		}
	}
	return false
}

// CreateRepository writes an empty repository descriptor named name at
// descriptorPath, creating the parent directory. It does not add the
// repository to the configuration.
func (c *Catalog) CreateRepository(descriptorPath, name string) error {
	if err := scaffold.CreateRepository(descriptorPath, name); err != nil {
		return err
	}
	c.log.Info("repository created", zap.String("name", name), zap.String("path", descriptorPath))
	return nil
}

// UpdateAll syncs every repository, or only the named ones. Each repository
// is synced independently; a failure is reported in its Outcome and never
// stops the rest.
func (c *Catalog) UpdateAll(ctx context.Context, names ...string) []repository.Outcome {
	var outcomes []repository.Outcome
	for _, r := range c.repos {
		if len(names) > 0 && !slices.Contains(names, r.Name) && !slices.Contains(names, r.DisplayName()) {
			continue
		}
		if ctx.Err() != nil {
			outcomes = append(outcomes, repository.Outcome{Repository: r.DisplayName(), Err: ctx.Err()})
			continue
		}
		outcomes = append(outcomes, r.Sync(ctx))
	}
	return outcomes
}
