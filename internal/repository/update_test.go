package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/fetcher"
)

// remoteFiles is the content served under /repo/.
var remoteFiles = map[string]string{
	"/repo/index.yaml":           "name: File\nscripts:\n  - getCount\n  - rename\n",
	"/repo/getCount/index.yaml":  "name: getCount\nversion: 1.1.0\nrun: main.sh\nsrc:\n  - main.sh\n  - lib/util.sh\n",
	"/repo/getCount/main.sh":     "echo 3\n",
	"/repo/getCount/lib/util.sh": "count() { :; }\n",
	"/repo/rename/index.yaml":    "name: rename\nrun: rename.sh\nsrc: [rename.sh]\n",
	"/repo/rename/rename.sh":     "echo renamed\n",
	"/broken/index.yaml":         "name: Broken\nscripts: [good, bad]\n",
	"/broken/good/index.yaml":    "name: good\nrun: good.sh\nsrc: [good.sh]\n",
	"/broken/good/good.sh":       "echo good\n",
	"/broken/bad/index.yaml":     "name: bad\nrun: bad.sh\nsrc: [bad.sh]\n",
	"/escape/index.yaml":         "name: Escape\nscripts: [x]\n",
	"/escape/x/index.yaml":       "name: x\nrun: x.sh\nsrc: [../../outside.sh]\n",
}

func newRemote(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := remoteFiles[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRemoteRepo(t *testing.T, srv *httptest.Server, path, link string) *Repository {
	t.Helper()
	return New(
		config.RepoEntry{Path: path, Type: "remote", Link: link},
		WithFetcher(fetcher.NewHTTPFetcher(fetcher.WithHTTPClient(srv.Client()))),
	)
}

func TestUpdateToLocal_Remote(t *testing.T) {
	srv := newRemote(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "getCount", "index.yaml"), "name: getCount\nversion: 1.0.0\nrun: main.sh\n")
	writeFile(t, filepath.Join(dir, "index.yaml"), "name: Old\nscripts: [getCount]\n")

	r := newRemoteRepo(t, srv, dir, srv.URL+"/repo/index.yaml")
	if r.Name != "Old" {
		t.Fatalf("precondition: Name = %q", r.Name)
	}

	report, err := r.UpdateToLocal(context.Background())
	if err != nil {
		t.Fatalf("UpdateToLocal() error: %v", err)
	}

	if r.Name != "File" || !reflect.DeepEqual(r.Scripts, []string{"getCount", "rename"}) {
		t.Errorf("state after update: %q %v", r.Name, r.Scripts)
	}
	for _, rel := range []string{"index.yaml", "getCount/index.yaml", "getCount/main.sh", "getCount/lib/util.sh", "rename/rename.sh"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	if report.Files != 6 {
		t.Errorf("Files = %d, want 6", report.Files)
	}
	want := []ScriptChange{
		{Name: "getCount", Previous: "1.0.0", Current: "1.1.0", Change: descriptor.ChangeUpgraded},
		{Name: "rename", Current: "0.0.1", Change: descriptor.ChangeAdded},
	}
	if !reflect.DeepEqual(report.Scripts, want) {
		t.Errorf("Scripts = %+v, want %+v", report.Scripts, want)
	}
	if r.LastUpdated().IsZero() {
		t.Error("freshness marker not written")
	}
	if got := len(r.ListScripts()); got != 2 {
		t.Errorf("ListScripts() after update = %d, want 2", got)
	}
}

func TestUpdateToLocal_Errors(t *testing.T) {
	srv := newRemote(t)

	tests := []struct {
		name string
		path func(t *testing.T) string
		link string
		kind error
	}{
		{"invalid link", func(t *testing.T) string { return t.TempDir() }, "not-a-link", errs.ErrInvalidLink},
		{"empty link", func(t *testing.T) string { return t.TempDir() }, "", errs.ErrInvalidLink},
		{"unreachable", func(t *testing.T) string { return t.TempDir() }, srv.URL + "/nowhere/index.yaml", errs.ErrConnectFailed},
		{"missing local path", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") }, srv.URL + "/repo/index.yaml", errs.ErrLocalPathNotExist},
		{"source escapes", func(t *testing.T) string { return t.TempDir() }, srv.URL + "/escape/index.yaml", errs.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path(t)
			r := newRemoteRepo(t, srv, path, tt.link)
			_, err := r.UpdateToLocal(context.Background())
			if !errors.Is(err, tt.kind) {
				t.Fatalf("UpdateToLocal() error = %v, want %v", err, tt.kind)
			}
			if tt.kind == errs.ErrLocalPathNotExist {
				if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
					t.Error("update must not create the local path")
				}
			}
		})
	}
}

func TestUpdateToLocal_PartialFailureKeepsFiles(t *testing.T) {
	srv := newRemote(t)
	dir := t.TempDir()
	r := newRemoteRepo(t, srv, dir, srv.URL+"/broken/index.yaml")

	report, err := r.UpdateToLocal(context.Background())
	if !errors.Is(err, errs.ErrConnectFailed) {
		t.Fatalf("UpdateToLocal() error = %v, want ErrConnectFailed", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "good", "good.sh")); err != nil {
		t.Errorf("files from the successful script should remain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad", "index.yaml")); err != nil {
		t.Errorf("descriptor downloaded before the failure should remain: %v", err)
	}
	if len(report.Scripts) != 1 || report.Scripts[0].Name != "good" {
		t.Errorf("report.Scripts = %+v", report.Scripts)
	}
	if !r.LastUpdated().IsZero() {
		t.Error("failed update should not refresh the marker")
	}
}

func TestSync(t *testing.T) {
	srv := newRemote(t)

	ok := newRemoteRepo(t, srv, t.TempDir(), srv.URL+"/repo/index.yaml").Sync(context.Background())
	if !ok.OK || ok.Err != nil || ok.Report == nil || ok.Repository != "File" {
		t.Errorf("Sync(ok) = %+v", ok)
	}

	bad := newRemoteRepo(t, srv, t.TempDir(), "ftp://").Sync(context.Background())
	if bad.OK || !errors.Is(bad.Err, errs.ErrInvalidLink) {
		t.Errorf("Sync(bad) = %+v", bad)
	}
}
