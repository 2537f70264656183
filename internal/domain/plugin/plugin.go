package plugin

import "strings"

// ListingPreamble starts the status line the director prints before the installed roots.
const ListingPreamble = "Operation completed"

// Plugin is a feature installed from a p2 repository.
type Plugin struct {
	// Package is the installable unit identifier, e.g. "org.testng.eclipse.feature.group".
	Package string `yaml:"package"`
	// Repository is the p2 update site the unit is installed from.
	Repository string `yaml:"repository"`
}

// Tag returns the human-readable transaction tag recorded for the plugin install.
func (p Plugin) Tag() string {
	return Tag(p.Package)
}

// Tag derives a transaction tag from a package identifier: the text before the first slash.
func Tag(pkg string) string {
	name, _, _ := strings.Cut(pkg, "/")

	return name
}

// InstalledRoots holds the non-preamble lines of a director listing,
// one installed root per line, e.g. "org.example.feature.group/1.0.0".
type InstalledRoots []string

// ParseInstalledRoots extracts the installed roots from director output.
// The preamble line and blank lines are ignored. Lines have no length limit.
func ParseInstalledRoots(output string) InstalledRoots {
	var roots InstalledRoots

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, ListingPreamble) {
			continue
		}

		roots = append(roots, line)
	}

	return roots
}

// Contains reports whether any root starts with the package identifier.
func (r InstalledRoots) Contains(pkg string) bool {
	for _, root := range r {
		if strings.HasPrefix(root, pkg) {
			return true
		}
	}

	return false
}

// Missing returns the plugins that are not among the installed roots.
func (r InstalledRoots) Missing(plugins []Plugin) []Plugin {
	missing := make([]Plugin, 0, len(plugins))

	for _, p := range plugins {
		if !r.Contains(p.Package) {
			missing = append(missing, p)
		}
	}

	return missing
}

// FilterInstalled returns the plugins from the list that do not appear in the
// director output. A plugin counts as installed when any listing line other
// than the preamble starts with its package identifier.
func FilterInstalled(plugins []Plugin, output string) []Plugin {
	return ParseInstalledRoots(output).Missing(plugins)
}
