// Package fetcher retrieves repository content from remote sources. The
// HTTP strategy downloads individual files next to a descriptor link; the
// git strategy performs a shallow sparse-checkout of selected paths.
package fetcher
