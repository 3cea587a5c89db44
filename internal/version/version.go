// Package version holds build-time metadata injected via ldflags.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// These variables are set at build time using -ldflags:
//
//	-X 'github.com/janekbaraniewski/codexbar/internal/version.Version=...'
//	-X 'github.com/janekbaraniewski/codexbar/internal/version.CommitHash=...'
//	-X 'github.com/janekbaraniewski/codexbar/internal/version.BuildDate=...'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + CommitHash + ") built " + BuildDate
}

// IsReleaseSemver reports whether value is a canonical release version such
// as v1.2.3 (no prerelease or build suffix).
func IsReleaseSemver(value string) bool {
	v := strings.TrimSpace(value)
	if !semver.IsValid(v) {
		return false
	}
	if semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return false
	}
	return v == semver.Canonical(v)
}

// UserAgent is sent on outbound vendor requests. Snapshot and dirty builds
// advertise themselves as "dev".
func UserAgent() string {
	v := strings.TrimSpace(Version)
	if !IsReleaseSemver(v) {
		return "codexbar/dev"
	}
	return "codexbar/" + strings.TrimPrefix(v, "v")
}
