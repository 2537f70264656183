package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/eclipse-provisioner/internal/config"
	"github.com/oshokin/eclipse-provisioner/internal/logger"
	"github.com/oshokin/eclipse-provisioner/internal/service/provisioner"
	"github.com/oshokin/eclipse-provisioner/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// workDir where the IDE is installed.
	workDir string
	// logLevel is the minimum level of printed log entries.
	logLevel string
	// noProgress hides the download progress bar.
	noProgress bool

	// rootCmd downloads the IDE if needed and installs the configured plugins.
	rootCmd = &cobra.Command{
		Use:   "eclipse-provisioner",
		Short: "Install Eclipse and the configured plugins into the working directory.",
		Long: `Downloads the Eclipse release for this platform from a random mirror,
verifies its checksum and extracts it, unless the installation directory already exists.
On macOS the application is registered with Gatekeeper.
Missing plugins are then installed one by one with the p2 director and verified.

Running it again on a complete installation changes nothing.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			var progress io.Writer = os.Stderr
			if noProgress {
				progress = nil
			}

			options := &provisioner.Options{
				ConfigPath: configPath,
				WorkDir:    workDir,
				Progress:   progress,
			}

			return provisioner.Run(ctx, options)
		},
	}
)

// Execute runs the eclipse-provisioner CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel switches the global logger to the requested level.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+
		config.DefaultConfigFilename+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVarP(&workDir, "workdir", "w", ".", "directory to install into")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the download progress bar")

	rootCmd.AddCommand(configCmd)
}
