// Package version reports build information for the host tools.
package version

import "runtime"

// Both are overridden at link time via -ldflags "-X".
var (
	version   = "v0.1.0"
	gitCommit = ""
)

// BuildInfo describes the build that produced the running binary.
type BuildInfo struct {
	Version   string
	GitCommit string
	GoVersion string
}

// Get returns the build information of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   version,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
}
