package cli

import (
	"fmt"
	"strings"

	"github.com/tutils-dev/tutils/internal/catalog"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/repository"
)

// resolveScript looks a script up by qualified or bare name. Bare names that
// match scripts in several repositories are refused with the candidates
// listed; unknown names get close matches as suggestions.
func resolveScript(cat *catalog.Catalog, name string) (*repository.Script, error) {
	candidates := cat.Candidates(name)
	switch {
	case len(candidates) == 0:
		return nil, notFound(cat, name)
	case len(candidates) > 1:
		return nil, fmt.Errorf("script name %q is ambiguous, use one of: %s", name, strings.Join(candidates, ", "))
	}
	return cat.Resolve(candidates[0])
}

func notFound(cat *catalog.Catalog, name string) error {
	bare := name
	if _, after, ok := strings.Cut(name, "."); ok {
		bare = after
	}
	matches := cat.FuzzySearch(bare, catalog.SearchOptions{})
	if len(matches) == 0 {
		return errs.New(errs.ErrScriptNotFound, name, nil)
	}
	var names []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		names = append(names, m.Name)
	}
	return errs.New(errs.ErrScriptNotFound, name, fmt.Errorf("did you mean %s?", strings.Join(names, ", ")))
}
