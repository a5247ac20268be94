// Package repository models one configured script repository: a directory
// holding a repository descriptor and one folder per published script,
// optionally mirrored from a remote link. Records are built from config
// entries, loaded best-effort and only mutated by UpdateToLocal.
package repository
