// Package version holds the build version, injected at link time.
package version

// Version is set via -ldflags "-X github.com/openrig/rigup/pkg/version.Version=...".
var Version = "dev"
