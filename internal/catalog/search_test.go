package catalog

import (
	"path/filepath"
	"testing"

	"github.com/tutils-dev/tutils/internal/config"
)

func TestScore(t *testing.T) {
	tests := []struct {
		query string
		name  string
		want  float64
	}{
		{"count", "countLines", 0.95},
		{"GETCOUNT", "getCount", 1},
		{"", "getCount", 0.9},
		{"getcount", "getCount", 1},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := Score(tt.query, tt.name); got != tt.want {
			t.Errorf("Score(%q, %q) = %v, want %v", tt.query, tt.name, got, tt.want)
		}
	}

	// A near miss scores by edit similarity, below every substring match.
	if got := Score("getCont", "getCount"); got <= DefaultCutoff || got >= 0.9 {
		t.Errorf("Score(getCont, getCount) = %v, want between %v and 0.9", got, DefaultCutoff)
	}
}

func TestScore_SubstringMonotonic(t *testing.T) {
	name := "getFileCount"
	queries := []string{"c", "co", "cou", "coun", "count", "ecount", "lecount"}
	prev := 0.0
	for _, q := range queries {
		got := Score(q, name)
		if got < 0.9 {
			t.Errorf("Score(%q, %q) = %v, substring matches must score at least 0.9", q, name, got)
		}
		if got <= prev {
			t.Errorf("Score(%q) = %v not greater than previous %v", q, got, prev)
		}
		prev = got
	}
}

func TestFuzzySearch(t *testing.T) {
	root := t.TempDir()
	c := New([]config.RepoEntry{
		makeRepo(t, filepath.Join(root, "a"), "File", []string{"getCount", "rename", "countLines"}),
		makeRepo(t, filepath.Join(root, "b"), "Net", []string{"ping", "count"}),
	})

	got := c.FuzzySearch("count", SearchOptions{})
	var names []string
	for _, m := range got {
		names = append(names, m.Name)
	}
	want := []string{"Net.count", "File.getCount", "File.countLines"}
	if len(names) != len(want) {
		t.Fatalf("FuzzySearch(count) = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q (all: %v)", i, names[i], want[i], names)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted: %v", got)
		}
	}
	if got[0].Score != 1 || got[0].Repository != "Net" || got[0].Script != "count" {
		t.Errorf("top match = %+v", got[0])
	}

	if filtered := c.FuzzySearch("count", SearchOptions{Repositories: []string{"File"}}); len(filtered) != 2 {
		t.Errorf("filtered search returned %d matches, want 2", len(filtered))
	}
	if all := c.FuzzySearch("zzzz", SearchOptions{Cutoff: -1}); len(all) != 5 {
		t.Errorf("negative cutoff returned %d matches, want 5", len(all))
	}
	if none := c.FuzzySearch("zzzz", SearchOptions{}); len(none) != 0 {
		t.Errorf("FuzzySearch(zzzz) = %v, want none", none)
	}
}

func TestFuzzySearch_StableTies(t *testing.T) {
	root := t.TempDir()
	c := New([]config.RepoEntry{
		makeRepo(t, filepath.Join(root, "a"), "A", []string{"build"}),
		makeRepo(t, filepath.Join(root, "b"), "B", []string{"build"}),
	})
	got := c.FuzzySearch("build", SearchOptions{})
	if len(got) != 2 || got[0].Name != "A.build" || got[1].Name != "B.build" {
		t.Errorf("ties should keep catalog order: %+v", got)
	}
}
