package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/eclipse-provisioner/internal/config"
	"github.com/oshokin/eclipse-provisioner/internal/domain/plugin"
	"github.com/oshokin/eclipse-provisioner/internal/logger"
	"github.com/oshokin/eclipse-provisioner/internal/service/common"
)

var (
	// ErrPluginVerification is returned when a plugin is still missing after its install reported success.
	ErrPluginVerification = errors.New("plugin did not install correctly")
	// ErrApplicationRunning is returned when the IDE is running and cannot be modified.
	ErrApplicationRunning = errors.New("application is running")
)

// Installer installs the configured plugins that are missing.
type Installer struct {
	director *Director
	plugins  []plugin.Plugin
	// launcherName is the process name of a running IDE.
	launcherName string
	// launcherPath is the absolute path of the launcher of this installation.
	launcherPath string
	// processes lists running processes; nil disables the running-IDE check.
	processes func() ([]ps.Process, error)
	// executable resolves the executable path of a running process.
	executable func(pid int) (string, error)
}

// Option configures the Installer.
type Option func(*Installer)

// WithProcessLister replaces the process listing used to detect a running IDE.
// Passing nil disables the check.
func WithProcessLister(list func() ([]ps.Process, error)) Option {
	return func(i *Installer) {
		i.processes = list
	}
}

// WithExecutableResolver replaces the lookup of a process executable path.
func WithExecutableResolver(resolve func(pid int) (string, error)) Option {
	return func(i *Installer) {
		if resolve != nil {
			i.executable = resolve
		}
	}
}

// New creates an Installer for the plugins of cfg.
func New(cfg *config.Config, runner common.Runner, opts ...Option) *Installer {
	launcherPath, err := filepath.Abs(cfg.Launcher)
	if err != nil {
		launcherPath = cfg.Launcher
	}

	i := &Installer{
		director:     NewDirector(runner, cfg.Launcher, cfg.DirectorApplication),
		plugins:      slices.Clone(cfg.Plugins),
		launcherName: filepath.Base(cfg.Launcher),
		launcherPath: launcherPath,
		processes:    ps.Processes,
		executable:   procExecutable,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Reconcile installs every missing plugin sequentially and verifies each one.
// It stops at the first failure; plugins installed before it stay installed.
// It returns the number of plugins installed.
func (i *Installer) Reconcile(ctx context.Context) (int, error) {
	ctx = logger.WithName(ctx, "plugins")

	if err := i.ensureNotRunning(ctx); err != nil {
		return 0, err
	}

	logger.InfoKV(ctx, "Checking existing plugins", "wanted", len(i.plugins))

	pending, err := i.FilterInstalled(ctx, i.plugins)
	if err != nil {
		return 0, err
	}

	logger.InfoKV(ctx, "Plugins reconciled against installation",
		"installed", len(i.plugins)-len(pending), "pending", len(pending))

	for n, p := range pending {
		if err = i.install(ctx, p); err != nil {
			return n, err
		}
	}

	return len(pending), nil
}

// FilterInstalled returns the plugins that the director does not list as installed.
func (i *Installer) FilterInstalled(ctx context.Context, plugins []plugin.Plugin) ([]plugin.Plugin, error) {
	listing, err := i.director.ListInstalledRoots(ctx)
	if err != nil {
		return nil, err
	}

	roots := plugin.ParseInstalledRoots(listing)
	logger.DebugKV(ctx, "Director listed installed roots", "roots", len(roots))

	return roots.Missing(plugins), nil
}

// install installs one plugin and checks that the director lists it afterwards.
func (i *Installer) install(ctx context.Context, p plugin.Plugin) error {
	logger.InfoKV(ctx, "Installing plugin", "package", p.Package, "repository", p.Repository, "tag", p.Tag())

	output, err := i.director.Install(ctx, p)
	if err != nil {
		return err
	}

	if output = strings.TrimSpace(output); output != "" {
		logger.Info(ctx, output)
	}

	missing, err := i.FilterInstalled(ctx, []plugin.Plugin{p})
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", p.Package, ErrPluginVerification)
	}

	logger.InfoKV(ctx, "Plugin installed", "package", p.Package)

	return nil
}

// ensureNotRunning fails when the launcher of this installation is running.
// IDE processes started from other installations are ignored.
func (i *Installer) ensureNotRunning(ctx context.Context) error {
	if i.processes == nil {
		return nil
	}

	processList, err := i.processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != i.launcherName {
			continue
		}

		path, err := i.executable(process.Pid())
		if err != nil {
			logger.WarnKV(ctx, "Cannot tell which installation a running IDE belongs to, continuing",
				"pid", process.Pid(), "error", err)

			continue
		}

		if !sameExecutable(path, i.launcherPath) {
			logger.DebugKV(ctx, "Ignoring IDE from another installation", "pid", process.Pid(), "path", path)
			continue
		}

		logger.WarnKV(ctx, "Close the IDE before installing plugins", "pid", process.Pid())

		return fmt.Errorf("%s (pid %d): %w", i.launcherPath, process.Pid(), ErrApplicationRunning)
	}

	return nil
}

// procExecutable reads the executable path of a process from procfs.
// It fails on systems without /proc.
func procExecutable(pid int) (string, error) {
	return os.Readlink(filepath.Join("/proc", strconv.Itoa(pid), "exe"))
}

// sameExecutable reports whether both paths name the same file.
func sameExecutable(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}

	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}

	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}

	return os.SameFile(infoA, infoB)
}
