// Package cli defines the Cobra command tree for the tutils CLI. Each file
// in this package registers one top-level command (list, run, repository,
// etc.) with the root command. Command implementations delegate to internal
// packages for business logic and only handle flag parsing, I/O formatting
// and exit codes.
package cli
