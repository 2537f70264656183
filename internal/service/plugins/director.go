package plugins

import (
	"context"
	"fmt"

	"github.com/oshokin/eclipse-provisioner/internal/domain/plugin"
	"github.com/oshokin/eclipse-provisioner/internal/service/common"
)

// Director invokes the p2 director application through the IDE launcher.
type Director struct {
	runner      common.Runner
	launcher    string
	application string
}

// NewDirector creates a Director for the given launcher and director application id.
func NewDirector(runner common.Runner, launcher, application string) *Director {
	return &Director{
		runner:      runner,
		launcher:    launcher,
		application: application,
	}
}

// ListInstalledRoots returns the raw listing of installed root units.
func (d *Director) ListInstalledRoots(ctx context.Context) (string, error) {
	res, err := d.runner.Run(ctx, d.launcher, d.args("-listInstalledRoots")...)
	if err != nil {
		return "", fmt.Errorf("list installed roots: %w", err)
	}

	return res.Stdout, nil
}

// Install installs the plugin from its repository and tags the transaction.
// It returns the director output.
func (d *Director) Install(ctx context.Context, p plugin.Plugin) (string, error) {
	res, err := d.runner.Run(ctx, d.launcher, d.args(
		"-repository", p.Repository,
		"-installIU", p.Package,
		"-tag", p.Tag(),
	)...)
	if err != nil {
		return "", fmt.Errorf("install %s: %w", p.Package, err)
	}

	return res.Stdout, nil
}

func (d *Director) args(extra ...string) []string {
	args := make([]string, 0, len(extra)+3)
	args = append(args, "-nosplash", "-application", d.application)

	return append(args, extra...)
}
