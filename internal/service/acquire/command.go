package acquire

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/eclipse-provisioner/internal/config"
	"github.com/oshokin/eclipse-provisioner/internal/domain/platform"
	"github.com/oshokin/eclipse-provisioner/internal/logger"
	"github.com/oshokin/eclipse-provisioner/internal/service/common"
	"github.com/oshokin/eclipse-provisioner/internal/version"
)

// maxMetadataSize caps the checksum and mirror list responses.
const maxMetadataSize = 1 << 20

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Acquirer downloads, verifies and extracts the release archive for one platform.
type Acquirer struct {
	cfg    *config.Config
	target platform.Target
	runner common.Runner
	client HTTPDoer
	pick   func(n int) int
	// workDir is where the archive is placed and extracted.
	workDir string
	// progress receives the download progress bar; nil disables it.
	progress io.Writer
}

// Option configures the Acquirer.
type Option func(*Acquirer)

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(client HTTPDoer) Option {
	return func(a *Acquirer) {
		if client != nil {
			a.client = client
		}
	}
}

// WithPicker replaces the uniform random mirror picker.
func WithPicker(pick func(n int) int) Option {
	return func(a *Acquirer) {
		if pick != nil {
			a.pick = pick
		}
	}
}

// WithWorkDir sets the directory the installation lives in.
func WithWorkDir(dir string) Option {
	return func(a *Acquirer) {
		a.workDir = dir
	}
}

// WithProgressOutput renders a download progress bar to w.
func WithProgressOutput(w io.Writer) Option {
	return func(a *Acquirer) {
		a.progress = w
	}
}

// New creates an Acquirer. The default HTTP client applies cfg.HTTPTimeout,
// which is zero (no timeout) unless configured.
func New(cfg *config.Config, target platform.Target, runner common.Runner, opts ...Option) *Acquirer {
	a := &Acquirer{
		cfg:     cfg,
		target:  target,
		runner:  runner,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		pick:    rand.Intn,
		workDir: ".",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// InstallDir returns the path of the installation directory.
func (a *Acquirer) InstallDir() string {
	return filepath.Join(a.workDir, a.cfg.InstallDir)
}

// Run makes sure the installation directory exists, downloading and extracting
// the archive when it does not. It reports whether a download happened.
func (a *Acquirer) Run(ctx context.Context) (bool, error) {
	ctx = logger.WithName(ctx, "acquire")

	if info, err := os.Stat(a.InstallDir()); err == nil && info.IsDir() {
		logger.InfoKV(ctx, "Installation already downloaded, skipping download", "dir", a.InstallDir())
		return false, nil
	}

	hash, err := HashByName(a.cfg.ChecksumType)
	if err != nil {
		return false, err
	}

	artifact := a.target.ArtifactPath(a.cfg.ReleaseBase)

	logger.InfoKV(ctx, "Getting checksum", "artifact", artifact, "type", a.cfg.ChecksumType)

	expected, err := a.FetchChecksum(ctx, artifact)
	if err != nil {
		return false, fmt.Errorf("fetch checksum: %w", err)
	}

	logger.InfoKV(ctx, "Checksum received", "checksum", expected)
	logger.Info(ctx, "Getting list of mirrors")

	mirrors, err := a.FetchMirrors(ctx, artifact)
	if err != nil {
		return false, fmt.Errorf("fetch mirror list: %w", err)
	}

	logger.InfoKV(ctx, "Mirror list received", "mirrors", len(mirrors))

	mirror, err := PickMirror(mirrors, a.pick)
	if err != nil {
		return false, fmt.Errorf("choose mirror: %w", err)
	}

	if err = a.fetchArchive(ctx, mirror, path.Base(artifact), expected, hash); err != nil {
		return false, err
	}

	return true, nil
}

// fetchArchive downloads, verifies, places, extracts and removes the archive.
func (a *Acquirer) fetchArchive(
	ctx context.Context,
	mirror, archiveName, expected string,
	hash crypto.Hash,
) error {
	stagingDir, err := os.MkdirTemp("", stagingPattern)
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	downloaded := filepath.Join(stagingDir, archiveName)

	logger.InfoKV(ctx, "Downloading from mirror", "url", mirror)

	if err = a.Download(ctx, mirror, downloaded); err != nil {
		return fmt.Errorf("download archive: %w", err)
	}

	actual, err := GetFileChecksum(downloaded, hash)
	if err != nil {
		return err
	}

	if err = VerifyChecksum(archiveName, expected, actual); err != nil {
		return err
	}

	logger.Info(ctx, "Checksum verified")

	archivePath := filepath.Join(a.workDir, archiveName)
	if err = placeArchive(downloaded, archivePath, expected, hash); err != nil {
		return fmt.Errorf("place archive: %w", err)
	}

	logger.InfoKV(ctx, "Extracting archive", "archive", archivePath)

	if _, err = a.runner.Run(ctx, "tar", "-xf", archivePath, "-C", a.workDir); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	logger.InfoKV(ctx, "Removing archive", "archive", archivePath)

	if err = os.Remove(archivePath); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}

	return nil
}

// FetchChecksum returns the published checksum of the artifact.
func (a *Acquirer) FetchChecksum(ctx context.Context, artifact string) (string, error) {
	body, err := a.getMetadata(ctx, a.cfg.ChecksumURL, url.Values{
		"file": {artifact},
		"type": {a.cfg.ChecksumType},
	})
	if err != nil {
		return "", err
	}

	checksum, ok := ParseChecksum(string(body))
	if !ok {
		return "", fmt.Errorf("empty checksum response: %w", ErrNetworkFailure)
	}

	return checksum, nil
}

// FetchMirrors returns the mirrors serving the artifact.
func (a *Acquirer) FetchMirrors(ctx context.Context, artifact string) ([]string, error) {
	body, err := a.getMetadata(ctx, a.cfg.MirrorListURL, url.Values{
		"file":     {artifact},
		"protocol": {a.cfg.MirrorProtocol},
		"format":   {"xml"},
	})
	if err != nil {
		return nil, err
	}

	mirrors, err := ParseMirrorList(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	return mirrors, nil
}

// Download streams rawURL into dest. A progress bar is drawn when an output
// is configured and the server announces the content length.
func (a *Acquirer) Download(ctx context.Context, rawURL, dest string) error {
	response, err := a.get(ctx, rawURL)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	out, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return err
	}

	var writer io.Writer = out

	if a.progress != nil && response.ContentLength > 0 {
		bar := progressbar.NewOptions64(response.ContentLength,
			progressbar.OptionSetWriter(a.progress),
			progressbar.OptionSetDescription("downloading "+filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)

		defer func() {
			_ = bar.Finish()
		}()

		writer = io.MultiWriter(out, bar)
	}

	if _, err = io.Copy(writer, response.Body); err != nil {
		_ = out.Close()

		return fmt.Errorf("%s: %w: %w", rawURL, ErrNetworkFailure, err)
	}

	return out.Close()
}

// getMetadata fetches a small document from an endpoint with query parameters.
func (a *Acquirer) getMetadata(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	target.RawQuery = query.Encode()

	response, err := a.get(ctx, target.String())
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", target, ErrNetworkFailure, err)
	}

	return data, nil
}

// get performs a GET request and rejects non-success statuses.
func (a *Acquirer) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", rawURL, ErrNetworkFailure, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrNetworkFailure)
	}

	return response, nil
}

// placeArchive moves the verified download to target using go-update,
// which re-checks the checksum before swapping the file in.
func placeArchive(source, target, checksum string, hash crypto.Hash) error {
	sum, err := hex.DecodeString(checksum)
	if err != nil {
		return err
	}

	// go-update renames the existing target aside before moving the new file in,
	// so a fresh install gets an empty placeholder. Apply then replaces it.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(filepath.Clean(target)); err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	file, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	return goupdate.Apply(file, goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   sum,
		Hash:       hash,
	})
}
