package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/logger"
	"go.uber.org/zap"
)

// DefaultRef is checked out when FetchOptions.Ref is empty.
const DefaultRef = "HEAD"

// GitFetcher checks out selected paths of a remote git repository with a
// blobless, shallow, sparse clone.
type GitFetcher struct {
	url string
	git string
	log *logger.Logger
}

// FetchOptions controls GitFetcher.Fetch.
type FetchOptions struct {
	Ref   string // branch, tag or commit; DefaultRef when empty
	Clean bool   // remove an existing dest and clone again
}

// GitOption configures a GitFetcher.
type GitOption func(*GitFetcher)

// WithGitBinary overrides the git executable.
func WithGitBinary(path string) GitOption {
	return func(g *GitFetcher) {
		g.git = path
	}
}

// WithGitLogger sets the logger.
func WithGitLogger(l *logger.Logger) GitOption {
	return func(g *GitFetcher) {
		g.log = l
	}
}

// NewGitFetcher validates url and returns a fetcher for it.
func NewGitFetcher(url string, opts ...GitOption) (*GitFetcher, error) {
	if err := ValidateGitURL(url); err != nil {
		return nil, err
	}
	g := &GitFetcher{url: strings.TrimSpace(url), git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logger.OrNop(g.log)
	return g, nil
}

// URL returns the remote this fetcher clones from.
func (g *GitFetcher) URL() string { return g.url }

// Fetch clones paths of the remote into dest and returns the absolute dest.
// An existing dest is returned untouched unless opts.Clean is set.
func (g *GitFetcher) Fetch(ctx context.Context, paths []string, dest string, opts FetchOptions) (string, error) {
	dest = config.ExpandPath(dest)

	if _, err := os.Stat(dest); err == nil {
		if !opts.Clean {
			g.log.Debug("destination exists, skipping clone", zap.String("dest", dest))
			return dest, nil
		}
		if err := os.RemoveAll(dest); err != nil {
			return "", errs.New(errs.ErrIO, dest, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", errs.New(errs.ErrIO, dest, err)
	}

	if err := g.ensureGit(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", errs.New(errs.ErrIO, filepath.Dir(dest), err)
	}

	ref := opts.Ref
	if ref == "" {
		ref = DefaultRef
	}

	// Step 1: shallow blobless clone without a working tree.
	if out, err := g.run(ctx, "", "clone", "--filter=blob:none", "--no-checkout", "--depth=1", g.url, dest); err != nil {
		return "", g.abort(dest, fmt.Errorf("clone: %w\n%s", err, out))
	}

	// Step 2: restrict the working tree to the requested paths.
	if out, err := g.run(ctx, dest, "sparse-checkout", "init", "--cone"); err != nil {
		return "", g.abort(dest, fmt.Errorf("sparse-checkout init: %w\n%s", err, out))
	}
	if len(paths) > 0 {
		args := append([]string{"sparse-checkout", "set"}, paths...)
		if out, err := g.run(ctx, dest, args...); err != nil {
			return "", g.abort(dest, fmt.Errorf("sparse-checkout set: %w\n%s", err, out))
		}
	}

	// Step 3: materialize the files.
	if out, err := g.run(ctx, dest, "checkout", ref); err != nil {
		return "", g.abort(dest, fmt.Errorf("checkout %s: %w\n%s", ref, err, out))
	}

	g.log.Info("fetched", zap.String("url", g.url), zap.String("dest", dest), zap.Strings("paths", paths))
	return dest, nil
}

// abort removes a partial clone so a later Fetch does not mistake it for a
// finished one.
func (g *GitFetcher) abort(dest string, err error) error {
	if rmErr := os.RemoveAll(dest); rmErr != nil {
		g.log.Warn("removing partial clone failed", zap.String("dest", dest), zap.Error(rmErr))
	}
	return errs.New(errs.ErrConnectFailed, g.url, err)
}

func (g *GitFetcher) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.git, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// ensureGit checks that git is available on PATH.
func (g *GitFetcher) ensureGit() error {
	if _, err := exec.LookPath(g.git); err != nil {
		return fmt.Errorf("git is required but not found in PATH")
	}
	return nil
}
