package repository

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tutils-dev/tutils/internal/descriptor"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/fetcher"
	"go.uber.org/zap"
)

// freshnessFile records the time of the last successful update.
const freshnessFile = ".tutils-updated"

// ScriptChange describes what an update did to one script.
type ScriptChange struct {
	Name     string            `json:"name"`
	Previous string            `json:"previous,omitempty"`
	Current  string            `json:"current"`
	Change   descriptor.Change `json:"change"`
}

// UpdateReport summarizes an UpdateToLocal call.
type UpdateReport struct {
	Repository string         `json:"repository"`
	Scripts    []ScriptChange `json:"scripts"`
	Files      int            `json:"files"`
	Bytes      int64          `json:"bytes"`
}

// Outcome is the result of Sync: the update report or the error that
// stopped it.
type Outcome struct {
	Repository string        `json:"repository"`
	OK         bool          `json:"ok"`
	Err        error         `json:"-"`
	Report     *UpdateReport `json:"report,omitempty"`
}

// UpdateToLocal mirrors a remote repository into Path. Local repositories are
// left untouched. For remote ones the link is validated and probed, Path must
// already exist, the repository descriptor is downloaded and re-read, and then
// every declared script's descriptor and source files are downloaded from the
// folder next to the link. Files already written stay in place when a later
// download fails.
func (r *Repository) UpdateToLocal(ctx context.Context) (*UpdateReport, error) {
	report := &UpdateReport{Repository: r.DisplayName(), Scripts: []ScriptChange{}}
	if r.Kind != Remote {
		return report, nil
	}

	if err := fetcher.ValidateURL(r.Link); err != nil {
		return report, err
	}
	if err := r.fetcher.Probe(ctx, r.Link); err != nil {
		return report, err
	}
	if info, err := os.Stat(r.Path); err != nil || !info.IsDir() {
		return report, errs.New(errs.ErrLocalPathNotExist, r.Path, err)
	}

	previous := r.versions()

	n, err := r.fetcher.Download(ctx, r.Link, r.IndexFilePath)
	if err != nil {
		return report, err
	}
	report.Files++
	report.Bytes += n

	d, err := descriptor.ParseRepository(r.IndexFilePath)
	if err != nil {
		return report, err
	}
	r.Name = d.Name
	r.Scripts = d.Scripts
	report.Repository = r.DisplayName()

	base := fetcher.Dir(r.Link)
	for _, id := range r.Scripts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		change, files, bytes, err := r.updateScript(ctx, base, id, previous[id])
		report.Files += files
		report.Bytes += bytes
		if err != nil {
			return report, err
		}
		report.Scripts = append(report.Scripts, change)
	}

	writeFreshnessMarker(r.Path)
	r.log.Info("repository updated",
		zap.String("repository", r.DisplayName()),
		zap.Int("scripts", len(report.Scripts)),
		zap.Int("files", report.Files))
	return report, nil
}

func (r *Repository) updateScript(ctx context.Context, base, id, previous string) (ScriptChange, int, int64, error) {
	change := ScriptChange{Name: id, Previous: previous}
	if err := checkRelative(id); err != nil {
		return change, 0, 0, err
	}

	dir := r.ScriptDir(id)
	indexPath := filepath.Join(dir, descriptor.IndexFileName)
	files := 0
	var total int64

	n, err := r.fetcher.Download(ctx, fetcher.Join(base, id, descriptor.IndexFileName), indexPath)
	if err != nil {
		return change, files, total, err
	}
	files++
	total += n

	s, err := descriptor.ParseScript(indexPath)
	if err != nil {
		return change, files, total, err
	}
	for _, src := range s.SourceFiles {
		if err := checkRelative(src); err != nil {
			return change, files, total, err
		}
		link := fetcher.Join(base, append([]string{id}, strings.Split(filepath.ToSlash(src), "/")...)...)
		n, err := r.fetcher.Download(ctx, link, filepath.Join(dir, filepath.FromSlash(src)))
		if err != nil {
			return change, files, total, err
		}
		files++
		total += n
	}

	change.Current = s.Version
	change.Change = descriptor.Classify(previous, s.Version)
	r.log.Debug("script updated", zap.String("script", id), zap.String("change", string(change.Change)))
	return change, files, total, nil
}

// versions maps each currently declared script to its local version.
func (r *Repository) versions() map[string]string {
	out := make(map[string]string, len(r.Scripts))
	for _, id := range r.Scripts {
		if s, err := r.loadScript(id); err == nil {
			out[id] = s.Version
		}
	}
	return out
}

// Sync runs UpdateToLocal and turns a failure into an Outcome instead of an
// error, logging it. A failing repository never stops its siblings.
func (r *Repository) Sync(ctx context.Context) Outcome {
	report, err := r.UpdateToLocal(ctx)
	out := Outcome{Repository: r.DisplayName(), OK: err == nil, Err: err, Report: report}
	if err != nil {
		r.log.Error("update failed", zap.String("repository", r.DisplayName()), zap.Error(err))
	}
	return out
}

// LastUpdated returns the time of the last successful update, or the zero
// time when the repository was never updated.
func (r *Repository) LastUpdated() time.Time {
	return readFreshnessMarker(r.Path)
}

// writeFreshnessMarker writes the current Unix timestamp to the freshness file.
func writeFreshnessMarker(dir string) {
	markerPath := filepath.Join(dir, freshnessFile)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	_ = os.WriteFile(markerPath, []byte(ts), 0644)
}

// readFreshnessMarker returns zero time if the file doesn't exist or can't be parsed.
func readFreshnessMarker(dir string) time.Time {
	data, err := os.ReadFile(filepath.Join(dir, freshnessFile))
	if err != nil {
		return time.Time{}
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
