// Package version carries the build version, overridden at link time with
// -ldflags "-X klepto/internal/shared/version.Version=...".
package version

var Version = "dev"
