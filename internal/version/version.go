// Package version provides build and version information for PatternHunt.
package version

// Version is the current release version of PatternHunt.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/patternhunt/PatternHunt/internal/version.Version=x.y.z"
var Version = "1.0.0"
