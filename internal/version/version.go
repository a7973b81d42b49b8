package version

import (
	"fmt"
	"runtime"
	"time"
)

// Overridden at build time via -ldflags "-X".
var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()
)

// String renders the build info on one line for startup logs.
func String() string {
	return fmt.Sprintf("nekogallery %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
