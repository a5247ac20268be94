package descriptor

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Change classifies a version transition seen during a repository update.
type Change string

const (
	ChangeAdded      Change = "added"
	ChangeUpgraded   Change = "upgraded"
	ChangeDowngraded Change = "downgraded"
	ChangeUnchanged  Change = "unchanged"
	ChangeUnknown    Change = "changed"
)

// CheckVersion reports whether v is a valid semantic version.
// A leading "v" is tolerated.
func CheckVersion(v string) error {
	if _, err := parseSemver(v); err != nil {
		return fmt.Errorf("invalid version %q: %w", v, err)
	}
	return nil
}

// CompareVersions compares two version strings using semver.
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	av, err := parseSemver(a)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", a, err)
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", b, err)
	}
	return av.Compare(bv), nil
}

// Classify describes the move from previous to next. An empty previous means
// the script was not present before. Unparseable versions fall back to a
// plain string comparison.
func Classify(previous, next string) Change {
	if previous == "" {
		return ChangeAdded
	}
	cmp, err := CompareVersions(previous, next)
	if err != nil {
		if previous == next {
			return ChangeUnchanged
		}
		return ChangeUnknown
	}
	switch cmp {
	case -1:
		return ChangeUpgraded
	case 1:
		return ChangeDowngraded
	default:
		return ChangeUnchanged
	}
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}
