// Package version carries build metadata injected at link time via
// -ldflags "-X github.com/oakfield-data/motion.report/internal/version.Version=...".
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was built, RFC3339.
	BuildTime = "unknown"
)
