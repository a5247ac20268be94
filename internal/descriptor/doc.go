// Package descriptor reads and writes the two index.yaml descriptor kinds that
// make up a script repository: the repository descriptor at the repository
// root (name plus the list of published script identifiers) and the script
// descriptor inside each script directory (metadata, entry point and source
// manifest). It also validates descriptors against embedded JSON schemas and
// compares descriptor versions with semver.
package descriptor
