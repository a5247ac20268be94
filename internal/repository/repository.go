package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/fetcher"
	"github.com/tutils-dev/tutils/internal/logger"
	"go.uber.org/zap"
)

// Kind says where a repository's content comes from.
type Kind string

const (
	Local  Kind = config.TypeLocal
	Remote Kind = config.TypeRemote
)

// Repository is the runtime view of one configured repository.
type Repository struct {
	Name          string
	Path          string
	Kind          Kind
	Link          string
	Scripts       []string
	IndexFilePath string

	fetcher *fetcher.HTTPFetcher
	log     *logger.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithFetcher sets the HTTP fetcher used by UpdateToLocal.
func WithFetcher(f *fetcher.HTTPFetcher) Option {
	return func(r *Repository) {
		r.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

// New builds a repository from a config entry and reads its descriptor if
// one is present. An unknown type is treated as local.
func New(entry config.RepoEntry, opts ...Option) *Repository {
	path := config.ExpandPath(entry.Path)
	r := &Repository{
		Path:          path,
		Kind:          Local,
		Link:          strings.TrimSpace(entry.Link),
		Scripts:       []string{},
		IndexFilePath: filepath.Join(path, descriptor.IndexFileName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log).WithFields(zap.String("path", path))
	if r.fetcher == nil {
		r.fetcher = fetcher.NewHTTPFetcher(fetcher.WithLogger(r.log))
	}

	switch strings.ToLower(strings.TrimSpace(entry.Type)) {
	case config.TypeLocal, "":
	case config.TypeRemote:
		r.Kind = Remote
	default:
		r.log.Warn("unknown repository type, treating as local", zap.String("type", entry.Type))
	}

	r.Load()
	return r
}

// Load re-reads the repository descriptor. On any failure the current Name
// and Scripts are kept.
func (r *Repository) Load() {
	d, ok := descriptor.LoadRepository(r.IndexFilePath)
	if !ok {
		return
	}
	r.Name = d.Name
	r.Scripts = d.Scripts
}

// HasIndex reports whether the repository descriptor file exists.
func (r *Repository) HasIndex() bool {
	info, err := os.Stat(r.IndexFilePath)
	return err == nil && !info.IsDir()
}

// DisplayName returns Name, or the directory name when no descriptor has
// been read.
func (r *Repository) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.Path)
}

// Entry converts the repository back into a config entry.
func (r *Repository) Entry() config.RepoEntry {
	return config.RepoEntry{Path: r.Path, Type: string(r.Kind), Link: r.Link}
}

// ScriptDir returns the folder of the script with identifier id.
func (r *Repository) ScriptDir(id string) string {
	return filepath.Join(r.Path, id)
}

// ListScripts returns a record for every declared script whose descriptor can
// be read, in declaration order. Unreadable entries are skipped, so the
// result may be shorter than Scripts.
func (r *Repository) ListScripts() []Script {
	scripts := make([]Script, 0, len(r.Scripts))
	for _, id := range r.Scripts {
		s, err := r.loadScript(id)
		if err != nil {
			r.log.Debug("skipping script", zap.String("script", id), zap.Error(err))
			continue
		}
		scripts = append(scripts, *s)
	}
	return scripts
}

// Script returns the record for one declared script.
func (r *Repository) Script(name string) (*Script, error) {
	for _, id := range r.Scripts {
		if id != name {
			continue
		}
		s, err := r.loadScript(id)
		if err != nil {
			return nil, errs.New(errs.ErrScriptNotFound, r.Name+"."+name, err)
		}
		return s, nil
	}
	return nil, errs.New(errs.ErrScriptNotFound, r.Name+"."+name, nil)
}

func (r *Repository) loadScript(id string) (*Script, error) {
	if err := checkRelative(id); err != nil {
		return nil, err
	}
	dir := r.ScriptDir(id)
	d, err := descriptor.ParseScript(filepath.Join(dir, descriptor.IndexFileName))
	if err != nil {
		return nil, err
	}
	if d.Name == "" {
		d.Name = id
	}
	return &Script{Script: *d, Repository: r.Name, FolderPath: dir}, nil
}

// checkRelative rejects identifiers and source entries that would escape
// their parent directory.
func checkRelative(p string) error {
	if p == "" {
		return errs.New(errs.ErrFormat, p, errors.New("empty path"))
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errs.New(errs.ErrFormat, p, fmt.Errorf("path escapes the repository"))
	}
	return nil
}
