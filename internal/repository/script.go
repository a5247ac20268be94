package repository

import (
	"path/filepath"

	"github.com/tutils-dev/tutils/internal/descriptor"
)

// Script joins a script descriptor with the repository that publishes it.
type Script struct {
	descriptor.Script
	Repository string `json:"repository"`
	FolderPath string `json:"folder_path"`
}

// QualifiedName returns "repository.script".
func (s Script) QualifiedName() string {
	return s.Repository + "." + s.Name
}

// EntryPointPath returns the absolute path of the script's entry point.
func (s Script) EntryPointPath() string {
	return filepath.Join(s.FolderPath, s.EntryPoint)
}

// SourcePaths returns the absolute paths of the script's source files.
func (s Script) SourcePaths() []string {
	paths := make([]string, 0, len(s.SourceFiles))
	for _, f := range s.SourceFiles {
		paths = append(paths, filepath.Join(s.FolderPath, filepath.FromSlash(f)))
	}
	return paths
}
