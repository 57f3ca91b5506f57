// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/assetpipe/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release tag.
var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by --version.
func String() string {
	return fmt.Sprintf("assetpipe %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
