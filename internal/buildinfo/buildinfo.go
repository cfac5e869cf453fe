// Package buildinfo holds the version string reported by
// `proctrace --version`. Version is overridden at link time via
// -ldflags "-X github.com/git-ecosystem/proctrace/internal/buildinfo.Version=...".
package buildinfo

var Version = "dev"
