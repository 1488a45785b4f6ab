package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X .../internal/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }

// Describe renders the version block printed by each service's version command.
func Describe(service string) string {
	return fmt.Sprintf("%s %s\n  commit:     %s\n  built:      %s\n  go version: %s\n",
		service, Version, GitCommit, BuildTime, GoVersion())
}
