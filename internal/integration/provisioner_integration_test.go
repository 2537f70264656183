package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/eclipse-provisioner/internal/config"
	"github.com/oshokin/eclipse-provisioner/internal/domain/platform"
	"github.com/oshokin/eclipse-provisioner/internal/domain/plugin"
	"github.com/oshokin/eclipse-provisioner/internal/service/plugins"
	"github.com/oshokin/eclipse-provisioner/internal/service/provisioner"
)

// directorScript emulates the p2 director: it keeps installed roots in a file next to itself.
const directorScript = `#!/bin/sh
state="$(dirname "$0")/installed-roots.txt"
for arg in "$@"; do
  if [ "$arg" = "-listInstalledRoots" ]; then
    echo "Operation completed in 12 ms."
    if [ -f "$state" ]; then cat "$state"; fi
    exit 0
  fi
done
while [ $# -gt 0 ]; do
  if [ "$1" = "-installIU" ]; then
    echo "Installing $2."
    echo "$2/1.0.0.v20140925" >> "$state"
  fi
  shift
done
echo "Operation completed in 1500 ms."
`

// brokenDirectorScript reports success for every install without recording it.
const brokenDirectorScript = `#!/bin/sh
echo "Operation completed in 3 ms."
`

// releaseSite serves the checksum, the mirror list and the archive.
type releaseSite struct {
	*httptest.Server

	hits atomic.Int32
}

func newReleaseSite(t *testing.T, artifact string, archive []byte) *releaseSite {
	t.Helper()

	site := new(releaseSite)
	sum := sha512.Sum512(archive)
	archiveName := path.Base(artifact)

	mux := http.NewServeMux()
	mux.HandleFunc("/downloads/sums.php", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)

		if r.URL.Query().Get("file") != artifact {
			http.NotFound(w, r)
			return
		}

		_, _ = fmt.Fprintf(w, "%s  %s\n", hex.EncodeToString(sum[:]), archiveName)
	})
	mux.HandleFunc("/downloads/download.php", func(w http.ResponseWriter, _ *http.Request) {
		site.hits.Add(1)

		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><mirrors><mirror url="%s/mirror/%s" label="[Local] test"/></mirrors>`,
			site.URL, archiveName)
	})
	mux.HandleFunc("/mirror/", func(w http.ResponseWriter, _ *http.Request) {
		site.hits.Add(1)

		_, _ = w.Write(archive)
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)

	return site
}

// buildRelease packs an installation directory whose launcher runs script.
func buildRelease(t *testing.T, script string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := []struct {
		name string
		mode int64
		body string
	}{
		{"eclipse/eclipse", 0o755, script},
		{"eclipse/eclipse.ini", 0o644, "-vmargs\n-Xmx1024m\n"},
		{"eclipse/plugins/.keep", 0o644, ""},
	}

	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Mode:     f.mode,
			Size:     int64(len(f.body)),
			Typeflag: tar.TypeReg,
		}))

		_, err := io.WriteString(tw, f.body)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// writeConfig stores a configuration pointing at site and returns its path.
func writeConfig(t *testing.T, dir string, site *releaseSite, wanted []plugin.Plugin) string {
	t.Helper()

	cfg := config.Default()
	cfg.ChecksumURL = site.URL + "/downloads/sums.php"
	cfg.MirrorListURL = site.URL + "/downloads/download.php"
	cfg.Plugins = wanted

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, cfg))

	return cfgPath
}

func noProcesses() ([]ps.Process, error) {
	return nil, nil
}

// TestProvisioner_Run_InstallsAndIsIdempotent downloads, extracts and installs, then changes nothing on a rerun.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestProvisioner_Run_InstallsAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(workDir, 0o750))

	target := platform.Linux64
	site := newReleaseSite(t, target.ArtifactPath(config.Default().ReleaseBase), buildRelease(t, directorScript))

	wanted := []plugin.Plugin{
		{Package: "org.example.alpha.feature.group", Repository: site.URL + "/alpha/"},
		{Package: "org.example.beta.feature.group", Repository: site.URL + "/beta/"},
	}

	options := &provisioner.Options{
		ConfigPath: writeConfig(t, dir, site, wanted),
		WorkDir:    workDir,
		Platform:   &target,
		Processes:  noProcesses,
	}

	require.NoError(t, provisioner.Run(context.Background(), options))

	// Checksum, mirror list and archive.
	require.EqualValues(t, 3, site.hits.Load())
	require.FileExists(t, filepath.Join(workDir, "eclipse", "eclipse.ini"))

	archives, err := filepath.Glob(filepath.Join(workDir, "*.tar.gz"))
	require.NoError(t, err)
	require.Empty(t, archives)

	rootsPath := filepath.Join(workDir, "eclipse", "installed-roots.txt")
	roots, err := os.ReadFile(rootsPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(roots)), "\n")
	require.Len(t, lines, len(wanted))

	for i, p := range wanted {
		require.True(t, strings.HasPrefix(lines[i], p.Package+"/"))
	}

	// A second run finds everything in place.
	require.NoError(t, provisioner.Run(context.Background(), options))
	require.EqualValues(t, 3, site.hits.Load())

	again, err := os.ReadFile(rootsPath)
	require.NoError(t, err)
	require.Equal(t, string(roots), string(again))
}

// TestProvisioner_Run_DetectsSilentInstallFailure aborts when the director does not list a plugin after installing it.
func TestProvisioner_Run_DetectsSilentInstallFailure(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(workDir, 0o750))

	target := platform.Linux64
	site := newReleaseSite(t, target.ArtifactPath(config.Default().ReleaseBase), buildRelease(t, brokenDirectorScript))

	wanted := []plugin.Plugin{{Package: "org.example.alpha.feature.group", Repository: site.URL + "/alpha/"}}

	err := provisioner.Run(context.Background(), &provisioner.Options{
		ConfigPath: writeConfig(t, dir, site, wanted),
		WorkDir:    workDir,
		Platform:   &target,
		Processes:  noProcesses,
	})

	require.ErrorIs(t, err, plugins.ErrPluginVerification)
	require.Contains(t, err.Error(), wanted[0].Package)

	// The installation itself stays in place.
	require.DirExists(t, filepath.Join(workDir, "eclipse"))
}
