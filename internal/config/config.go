package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/eclipse-provisioner/internal/domain/plugin"
)

// Config holds every setting of a provisioning run.
// It is built once at startup and must be treated as read-only afterwards.
type Config struct {
	// ReleaseBase is the server-side path of the release without the platform suffix.
	ReleaseBase string `yaml:"release_base"`
	// ChecksumURL is the endpoint returning the artifact checksum as plain text.
	ChecksumURL string `yaml:"checksum_url"`
	// MirrorListURL is the endpoint returning the XML list of mirrors.
	MirrorListURL string `yaml:"mirror_list_url"`
	// MirrorProtocol selects which mirrors the list should contain (http, https).
	MirrorProtocol string `yaml:"mirror_protocol"`
	// ChecksumType is the hash algorithm used to verify the archive.
	ChecksumType string `yaml:"checksum_type"`
	// InstallDir is the directory the archive extracts into; its presence skips the download.
	InstallDir string `yaml:"install_dir"`
	// Launcher is the IDE executable that hosts the p2 director application.
	Launcher string `yaml:"launcher"`
	// DirectorApplication is the Equinox application id of the p2 director.
	DirectorApplication string `yaml:"director_application"`
	// AppBundle is the macOS application bundle registered with Gatekeeper.
	AppBundle string `yaml:"app_bundle"`
	// GatekeeperLabel is the label attached to the Gatekeeper rule.
	GatekeeperLabel string `yaml:"gatekeeper_label"`
	// HTTPTimeout bounds each HTTP request; zero means no timeout.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// Plugins lists the features that must be installed.
	Plugins []plugin.Plugin `yaml:"plugins"`
}

const (
	// DefaultConfigFilename is the configuration file looked up when no path is given.
	DefaultConfigFilename = "eclipse-provisioner.yaml"

	// DefaultFilePermissions is the file permission for saved config files.
	DefaultFilePermissions = 0o600

	// DefaultChecksumType is the hash algorithm requested from the checksum endpoint.
	DefaultChecksumType = "sha512"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFieldRequired is returned when a mandatory setting is empty.
	errFieldRequired = errors.New("setting must be provided")
	// errUnknownChecksumType is returned for unsupported hash algorithms.
	errUnknownChecksumType = errors.New("unknown checksum type")
	// errNegativeTimeout is returned for negative HTTP timeouts.
	errNegativeTimeout = errors.New("http timeout must not be negative")
	// errInvalidPlugin is returned for incomplete plugin entries.
	errInvalidPlugin = errors.New("invalid plugin entry")
)

// ChecksumTypes lists the supported hash algorithms.
func ChecksumTypes() []string {
	return []string{"sha1", "sha256", "sha512"}
}

// Default returns the compiled-in configuration: Eclipse IDE for Java EE
// Developers, Luna SR1, plus the standard plugin set.
func Default() *Config {
	return &Config{
		ReleaseBase:         "/technology/epp/downloads/release/luna/SR1/eclipse-jee-luna-SR1",
		ChecksumURL:         "https://www.eclipse.org/downloads/sums.php",
		MirrorListURL:       "https://www.eclipse.org/downloads/download.php",
		MirrorProtocol:      "http",
		ChecksumType:        DefaultChecksumType,
		InstallDir:          "eclipse",
		Launcher:            filepath.Join("eclipse", "eclipse"),
		DirectorApplication: "org.eclipse.equinox.p2.director",
		AppBundle:           filepath.Join("eclipse", "Eclipse.app"),
		GatekeeperLabel:     "Eclipse",
		Plugins: []plugin.Plugin{
			{Package: "AnyEditTools.feature.group", Repository: "http://andrei.gmxhome.de/eclipse/"},
			{
				Package:    "ch.acanda.eclipse.pmd.feature.feature.group",
				Repository: "http://www.acanda.ch/eclipse-pmd/release/latest",
			},
			{Package: "com.mountainminds.eclemma.feature.feature.group", Repository: "http://update.eclemma.org/"},
			{Package: "org.testng.eclipse.feature.group", Repository: "http://beust.com/eclipse"},
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Compiled-in defaults only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errConfigIsNotSet
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	return data, nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	required := []struct {
		name  string
		value string
	}{
		{"release_base", cfg.ReleaseBase},
		{"mirror_protocol", cfg.MirrorProtocol},
		{"install_dir", cfg.InstallDir},
		{"launcher", cfg.Launcher},
		{"director_application", cfg.DirectorApplication},
		{"app_bundle", cfg.AppBundle},
		{"gatekeeper_label", cfg.GatekeeperLabel},
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s: %w", field.name, errFieldRequired)
		}
	}

	for name, raw := range map[string]string{"checksum_url": cfg.ChecksumURL, "mirror_list_url": cfg.MirrorListURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if !slices.Contains(ChecksumTypes(), cfg.ChecksumType) {
		return fmt.Errorf("%q: %w", cfg.ChecksumType, errUnknownChecksumType)
	}

	if cfg.HTTPTimeout < 0 {
		return errNegativeTimeout
	}

	for i, p := range cfg.Plugins {
		if p.Package == "" || p.Repository == "" {
			return fmt.Errorf("plugin #%d: %w", i+1, errInvalidPlugin)
		}
	}

	return nil
}
