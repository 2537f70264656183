// Package common holds helpers shared by several services.
//
// It provides the process runner every external tool (tar, uname, spctl and
// the p2 director) is invoked through, and the error type reported when such
// a tool exits with a non-zero status.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
