// Package version holds the build version string.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/m-lab/iperfx/pkg/version.Version=<version>".
var Version = "dev"
