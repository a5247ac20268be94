//go:build integration

package integration_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tutils-dev/tutils/internal/catalog"
	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/fetcher"
	"github.com/tutils-dev/tutils/internal/repository"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir    string // TUTILS_HOME, holds config.yaml
	MirrorDir  string // local path of the remote repository
	LocalDir   string // a hand-written local repository
	ProjectDir string // working directory for runs
	Remote     *remoteRepo
}

// setupTestEnv creates isolated temp directories, points TUTILS_HOME at one
// of them and starts a server publishing the remote repository.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:    t.TempDir(),
		MirrorDir:  t.TempDir(),
		LocalDir:   t.TempDir(),
		ProjectDir: t.TempDir(),
		Remote:     newRemoteRepo(t),
	}
	t.Setenv("TUTILS_HOME", env.HomeDir)
	return env
}

// config returns a configuration with the remote and local repositories.
func (e *testEnv) config(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Repositories = nil

	var err error
	cfg, err = cfg.WithRepository(config.RepoEntry{Path: e.MirrorDir, Type: config.TypeRemote, Link: e.Remote.URL("/net/index.yaml")})
	if err != nil {
		t.Fatalf("WithRepository(remote): %v", err)
	}
	cfg, err = cfg.WithRepository(config.RepoEntry{Path: e.LocalDir, Type: config.TypeLocal})
	if err != nil {
		t.Fatalf("WithRepository(local): %v", err)
	}
	return cfg
}

// catalog builds a catalog whose remote repositories download from the
// test server.
func (e *testEnv) catalog(cfg config.Config) *catalog.Catalog {
	f := fetcher.NewHTTPFetcher(fetcher.WithHTTPClient(e.Remote.srv.Client()))
	return catalog.New(cfg.Repositories, catalog.WithRepositoryOptions(repository.WithFetcher(f)))
}

// remoteRepo serves an in-memory file tree over HTTP.
type remoteRepo struct {
	srv   *httptest.Server
	mu    sync.Mutex
	files map[string]string
}

func newRemoteRepo(t *testing.T) *remoteRepo {
	t.Helper()
	r := &remoteRepo{files: map[string]string{}}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		body, ok := r.files[req.URL.Path]
		r.mu.Unlock()
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		if req.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *remoteRepo) URL(path string) string {
	return r.srv.URL + path
}

func (r *remoteRepo) put(path, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = body
}

// writeFile creates a file with the given content, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file %s to exist: %v", path, err)
		return
	}
	if info.IsDir() {
		t.Errorf("expected %s to be a file, got directory", path)
	}
}
