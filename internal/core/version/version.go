// Package version provides information about the build version of the service.
package version

// APIVersion is the surface version reported by the status endpoint and
// served as the docs version.
const APIVersion = "2.0.0"

// BuildInfo holds version information about the service build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Info() BuildInfo {
	// Set via -ldflags "-X 'facewarden/internal/core/version.version=v2.0.0'
	// -X 'facewarden/internal/core/version.commit=abcd' -X 'facewarden/internal/core/version.date=2025-08-23'"
	return BuildInfo{
		Service: "facewarden-agent",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
