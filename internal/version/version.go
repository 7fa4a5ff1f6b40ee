// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X aigateway/internal/version.Version=v1.0.0 -X aigateway/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("aigateway %s (commit %s, built %s)", Version, Commit, Date)
}
