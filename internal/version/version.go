// Package version holds the build version string, overridable at link
// time via -ldflags, following the teacher's internal/core/version
// convention.
package version

// Version is the release version, set by the build at link time.
var Version = "0.1.0"
