// Package version carries the scanner's build stamp.
package version

import "fmt"

// Set with -ldflags "-X card-scanner/internal/version.GitCommit=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders "v0.1.0 (abc1234, 2026-01-02T03:04:05Z)", leaving out the
// parts that were not stamped.
func String() string {
	switch {
	case GitCommit == "unknown" && BuildTime == "unknown":
		return "v" + Version
	case BuildTime == "unknown":
		return fmt.Sprintf("v%s (%s)", Version, GitCommit)
	default:
		return fmt.Sprintf("v%s (%s, %s)", Version, GitCommit, BuildTime)
	}
}
