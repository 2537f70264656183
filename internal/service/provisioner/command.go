package provisioner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/eclipse-provisioner/internal/config"
	"github.com/oshokin/eclipse-provisioner/internal/domain/platform"
	"github.com/oshokin/eclipse-provisioner/internal/logger"
	"github.com/oshokin/eclipse-provisioner/internal/service/acquire"
	"github.com/oshokin/eclipse-provisioner/internal/service/common"
	"github.com/oshokin/eclipse-provisioner/internal/service/gatekeeper"
	"github.com/oshokin/eclipse-provisioner/internal/service/plugins"
)

// Options are inputs accepted by the provisioner entry point.
// Zero values select the production behavior.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// WorkDir is the directory the installation lives in (current directory by default).
	WorkDir string
	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer
	// ErrOutput receives the checksum mismatch alert (stderr by default).
	ErrOutput io.Writer

	// Runner replaces the process runner used for every external command.
	Runner common.Runner
	// HTTPClient replaces the HTTP client used for downloads.
	HTTPClient acquire.HTTPDoer
	// PickMirror replaces the uniform random mirror choice.
	PickMirror func(n int) int
	// Processes replaces the process listing used to detect a running IDE.
	Processes func() ([]ps.Process, error)
	// Platform skips host detection when set.
	Platform *platform.Target
}

// provisioner holds the state of a single run.
type provisioner struct {
	cfg     *config.Config
	opts    *Options
	runner  common.Runner
	workDir string
	target  platform.Target
	stage   Stage
	// stages records every stage reached, in order.
	stages []Stage
}

// Run executes the provisioning workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "eclipse-provisioner")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	p, err := newProvisioner(cfg, opts)
	if err != nil {
		return err
	}

	if err = p.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Provisioning aborted", "error", err)
		reportChecksumMismatch(p.errOutput(), err)

		return err
	}

	logger.Info(ctx, "Done")

	return nil
}

// newProvisioner resolves the working directory and the default collaborators.
func newProvisioner(cfg *config.Config, opts *Options) (*provisioner, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	runner := opts.Runner
	if runner == nil {
		runner = common.NewExecRunner(common.WithDir(workDir))
	}

	return &provisioner{
		cfg:     cfg,
		opts:    opts,
		runner:  runner,
		workDir: workDir,
		stage:   StageStart,
		stages:  []Stage{StageStart},
	}, nil
}

// run walks the stages and stops at the first failure.
func (p *provisioner) run(ctx context.Context) error {
	if err := p.detectPlatform(ctx); err != nil {
		return p.abort(err)
	}

	p.transition(ctx, StagePlatformDetected)

	acquired, err := p.acquireArchive(ctx)
	if err != nil {
		return p.abort(err)
	}

	if acquired {
		p.transition(ctx, StageArchiveAcquired)
	} else {
		p.transition(ctx, StageArchivePresent)
	}

	if p.target.NeedsGatekeeper {
		bundle := p.resolve(p.cfg.AppBundle)
		if _, err = gatekeeper.Ensure(ctx, p.runner, bundle, p.cfg.GatekeeperLabel); err != nil {
			return p.abort(err)
		}

		p.transition(ctx, StageTrustConfigured)
	}

	if err = p.reconcilePlugins(ctx); err != nil {
		return p.abort(err)
	}

	p.transition(ctx, StagePluginsReconciled)
	p.transition(ctx, StageDone)

	return nil
}

// detectPlatform runs uname unless the platform was provided.
func (p *provisioner) detectPlatform(ctx context.Context) error {
	if p.opts.Platform != nil {
		p.target = *p.opts.Platform
	} else {
		target, err := DetectHost(ctx, p.runner)
		if err != nil {
			return err
		}

		p.target = target
	}

	logger.InfoKV(ctx, "Detected platform", "platform", p.target.Name)

	return nil
}

func (p *provisioner) acquireArchive(ctx context.Context) (bool, error) {
	acquirer := acquire.New(p.cfg, p.target, p.runner,
		acquire.WithWorkDir(p.workDir),
		acquire.WithHTTPClient(p.opts.HTTPClient),
		acquire.WithPicker(p.opts.PickMirror),
		acquire.WithProgressOutput(p.opts.Progress),
	)

	return acquirer.Run(ctx)
}

func (p *provisioner) reconcilePlugins(ctx context.Context) error {
	installCfg := *p.cfg
	installCfg.Launcher = p.resolve(p.cfg.Launcher)

	var opts []plugins.Option
	if p.opts.Processes != nil {
		opts = append(opts, plugins.WithProcessLister(p.opts.Processes))
	}

	installed, err := plugins.New(&installCfg, p.runner, opts...).Reconcile(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Plugins reconciled", "newly_installed", installed)

	return nil
}

// transition records and logs the stage that was reached.
func (p *provisioner) transition(ctx context.Context, next Stage) {
	logger.DebugKV(ctx, "Stage reached", "from", p.stage, "to", next)

	p.stage = next
	p.stages = append(p.stages, next)
}

// abort moves the run to the aborted stage and annotates the error with the last good stage.
func (p *provisioner) abort(err error) error {
	last := p.stage

	p.stage = StageAborted
	p.stages = append(p.stages, StageAborted)

	return fmt.Errorf("after stage %s: %w", last, err)
}

// resolve anchors a configured relative path at the working directory.
func (p *provisioner) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(p.workDir, path)
}

func (p *provisioner) errOutput() io.Writer {
	if p.opts.ErrOutput != nil {
		return p.opts.ErrOutput
	}

	return os.Stderr
}

// DetectHost identifies the platform from `uname` and `uname -m`.
func DetectHost(ctx context.Context, runner common.Runner) (platform.Target, error) {
	osName, err := runner.Run(ctx, "uname")
	if err != nil {
		return platform.Target{}, fmt.Errorf("detect operating system: %w", err)
	}

	machine, err := runner.Run(ctx, "uname", "-m")
	if err != nil {
		return platform.Target{}, fmt.Errorf("detect machine architecture: %w", err)
	}

	return platform.Detect(osName.Stdout, machine.Stdout)
}
