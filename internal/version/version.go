// Package version carries build identification, stamped via -ldflags.
package version

import "fmt"

var (
	// Version is the current release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the full build identification line.
func String() string {
	return fmt.Sprintf("sentinel %s (%s, built %s)", Version, GitSHA, BuildTime)
}
