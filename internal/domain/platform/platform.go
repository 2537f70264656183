// Package platform maps the host operating system and machine architecture
// onto the release artifact built for it.
package platform

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupportedPlatform is returned for OS and architecture combinations without a release artifact.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// legacyIntel matches the 32-bit x86 machine names reported by uname.
var legacyIntel = regexp.MustCompile(`^i[3-6]86$`)

// Target describes the artifact published for one platform.
type Target struct {
	// Name identifies the platform, e.g. "Linux-x86_64".
	Name string
	// Suffix is appended to the release base path to form the artifact path.
	Suffix string
	// NeedsGatekeeper is set when the extracted application must be trusted by macOS Gatekeeper.
	NeedsGatekeeper bool
}

var (
	// MacOS64 is the Cocoa build for Intel Macs.
	MacOS64 = Target{Name: "macOS-x86_64", Suffix: "-macosx-cocoa-x86_64.tar.gz", NeedsGatekeeper: true}
	// Linux64 is the GTK build for 64-bit Linux.
	Linux64 = Target{Name: "Linux-x86_64", Suffix: "-linux-gtk-x86_64.tar.gz"}
	// Linux32 is the GTK build for 32-bit Linux.
	Linux32 = Target{Name: "Linux-x86_32", Suffix: "-linux-gtk.tar.gz"}
)

// Targets lists every supported platform.
func Targets() []Target {
	return []Target{MacOS64, Linux64, Linux32}
}

// Detect returns the target for the `uname -s` and `uname -m` values.
func Detect(osName, machine string) (Target, error) {
	osName, machine = strings.TrimSpace(osName), strings.TrimSpace(machine)

	switch {
	case osName == "Darwin" && machine == "x86_64":
		return MacOS64, nil
	case osName == "Linux" && machine == "x86_64":
		return Linux64, nil
	case osName == "Linux" && legacyIntel.MatchString(machine):
		return Linux32, nil
	default:
		return Target{}, fmt.Errorf("%w: %s %s (supported: %s)",
			ErrUnsupportedPlatform, osName, machine, strings.Join(supportedNames(), ", "))
	}
}

func supportedNames() []string {
	targets := Targets()
	names := make([]string, 0, len(targets))

	for _, t := range targets {
		names = append(names, t.Name)
	}

	return names
}

// ArtifactPath joins the release base path with the platform suffix.
func (t Target) ArtifactPath(releaseBase string) string {
	return releaseBase + t.Suffix
}

// String returns the platform name.
func (t Target) String() string {
	return t.Name
}
