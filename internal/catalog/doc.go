// Package catalog aggregates the configured repositories into one script
// namespace. Scripts are addressed as "repository.script"; the catalog lists
// them, resolves qualified or bare names, ranks fuzzy matches, creates new
// repositories and drives bulk updates.
package catalog
