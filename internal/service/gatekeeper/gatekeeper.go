// Package gatekeeper registers the extracted application with macOS Gatekeeper.
package gatekeeper

import (
	"context"
	"fmt"

	"github.com/oshokin/eclipse-provisioner/internal/logger"
	"github.com/oshokin/eclipse-provisioner/internal/service/common"
)

// securityTool is the macOS system policy utility.
const securityTool = "spctl"

// Ensure makes Gatekeeper allow the application bundle to run.
// It reports whether a new rule had to be added.
func Ensure(ctx context.Context, runner common.Runner, appBundle, label string) (bool, error) {
	ctx = logger.WithName(ctx, "gatekeeper")

	// A failed assessment only means the bundle is not trusted yet.
	if _, err := runner.Run(ctx, securityTool, "-a", appBundle); err == nil {
		logger.InfoKV(ctx, "Gatekeeper already allows the application", "bundle", appBundle)
		return false, nil
	}

	logger.InfoKV(ctx, "Configuring Gatekeeper to allow the application", "bundle", appBundle, "label", label)

	if _, err := runner.Run(ctx, securityTool, "--add", "--label", label, appBundle); err != nil {
		return false, fmt.Errorf("register %s with gatekeeper: %w", appBundle, err)
	}

	return true, nil
}
