// Package provisioner runs the complete bootstrap of an IDE installation.
//
// The run moves through fixed stages: the platform is detected, the release
// archive is downloaded unless the installation directory already exists,
// Gatekeeper is configured on macOS and finally the configured plugins are
// reconciled. The first failure aborts the run; nothing is retried or rolled
// back.
package provisioner
