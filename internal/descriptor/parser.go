package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tutils-dev/tutils/internal/errs"
	"go.yaml.in/yaml/v3"
)

// ParseRepository reads a repository descriptor. A missing file yields an
// errs.ErrNotFound error; content that is not a YAML mapping yields
// errs.ErrFormat. Absent fields take their defaults.
func ParseRepository(path string) (*Repository, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	r, err := parseTyped[Repository](data, path)
	if err != nil {
		return nil, err
	}
	r.applyDefaults()
	return r, nil
}

// ParseScript reads a script descriptor with the same error contract as
// ParseRepository. Version defaults to DefaultVersion.
func ParseScript(path string) (*Script, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s, err := parseTyped[Script](data, path)
	if err != nil {
		return nil, err
	}
	s.applyDefaults()
	return s, nil
}

// LoadRepository is ParseRepository for callers that skip unreadable
// descriptors: ok is false on any failure.
func LoadRepository(path string) (r *Repository, ok bool) {
	r, err := ParseRepository(path)
	return r, err == nil
}

// LoadScript is ParseScript for callers that skip unreadable descriptors.
func LoadScript(path string) (s *Script, ok bool) {
	s, err := ParseScript(path)
	return s, err == nil
}

// WriteRepository serializes r to path, creating parent directories.
func WriteRepository(path string, r *Repository) error {
	return writeYAML(path, r)
}

// WriteScript serializes s to path, creating parent directories.
func WriteScript(path string, s *Script) error {
	return writeYAML(path, s)
}

// parseTyped checks that data is a YAML mapping (or empty) and decodes it
// into T.
func parseTyped[T any](data []byte, path string) (*T, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.ErrFormat, path, err)
	}
	var m T
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.New(errs.ErrFormat, path, err)
	}
	return &m, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.New(errs.ErrIO, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.New(errs.ErrIO, path, err)
	}
	return nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New(errs.ErrNotFound, path, nil)
	}
	if err != nil {
		return nil, errs.New(errs.ErrIO, path, err)
	}
	return data, nil
}
