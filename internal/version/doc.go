// Package version exposes build metadata for the provisioner.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Full renders them for the `version` subcommand and UserAgent
// identifies the tool to the download endpoints.
package version
