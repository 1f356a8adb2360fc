// Package utils holds small helpers shared by landscape packages that do not
// warrant a package of their own.
package utils

import "fmt"

// Build metadata, set with -ldflags "-X" at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo renders the build metadata on one line.
func BuildInfo() string {
	return fmt.Sprintf("landscape %s (%s, built %s)", Version, Sha, Buildtime)
}
