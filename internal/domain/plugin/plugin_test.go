package plugin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const listing = `Operation completed in 412 ms.
AnyEditTools.feature.group/2.4.10.201406292039
epp.package.jee/2.0.1.20140925-0400
org.testng.eclipse.feature.group
`

var (
	anyEdit = Plugin{Package: "AnyEditTools.feature.group", Repository: "http://andrei.gmxhome.de/eclipse/"}
	testNG  = Plugin{Package: "org.testng.eclipse.feature.group", Repository: "http://beust.com/eclipse"}
	eclemma = Plugin{
		Package:    "com.mountainminds.eclemma.feature.feature.group",
		Repository: "http://update.eclemma.org/",
	}
)

// TestFilterInstalled_ExcludesPrefixedLines checks that listed plugins are dropped from the missing result.
func TestFilterInstalled_ExcludesPrefixedLines(t *testing.T) {
	t.Parallel()

	missing := FilterInstalled([]Plugin{anyEdit, eclemma, testNG}, listing)
	require.Equal(t, []Plugin{eclemma}, missing)
}

// TestFilterInstalled_PreambleOnly returns the full list when nothing but the preamble is printed.
func TestFilterInstalled_PreambleOnly(t *testing.T) {
	t.Parallel()

	plugins := []Plugin{anyEdit, eclemma, testNG}

	require.Equal(t, plugins, FilterInstalled(plugins, "Operation completed in 97 ms.\n"))
	require.Equal(t, plugins, FilterInstalled(plugins, ""))
}

// TestFilterInstalled_PreambleNeverMatches ensures a package named like the preamble is not treated as installed.
func TestFilterInstalled_PreambleNeverMatches(t *testing.T) {
	t.Parallel()

	odd := Plugin{Package: "Operation", Repository: "http://example.com"}
	require.Equal(t, []Plugin{odd}, FilterInstalled([]Plugin{odd}, "Operation completed in 5 ms.\n"))
}

// TestParseInstalledRoots keeps listing lines and drops the preamble.
func TestParseInstalledRoots(t *testing.T) {
	t.Parallel()

	roots := ParseInstalledRoots(listing)
	require.Equal(t, InstalledRoots{
		"AnyEditTools.feature.group/2.4.10.201406292039",
		"epp.package.jee/2.0.1.20140925-0400",
		"org.testng.eclipse.feature.group",
	}, roots)
	require.True(t, roots.Contains("epp.package.jee"))
	require.False(t, roots.Contains("Operation completed in 412 ms."))

	require.Empty(t, ParseInstalledRoots("Operation completed in 1 ms.\r\n"))
}

// TestFilterInstalled_LongLines keeps reading past a listing line longer than 64 KiB.
func TestFilterInstalled_LongLines(t *testing.T) {
	t.Parallel()

	output := "Operation completed in 8 ms.\n" +
		strings.Repeat("x", 70_000) + "\n" +
		testNG.Package + "/6.8.6\n"

	require.Equal(t, []Plugin{eclemma}, FilterInstalled([]Plugin{testNG, eclemma}, output))
}

// TestTag checks the transaction tag derivation.
func TestTag(t *testing.T) {
	t.Parallel()

	require.Equal(t, "AnyEditTools.feature.group", anyEdit.Tag())
	require.Equal(t, "org.example", Tag("org.example/1.0.0"))
	require.Empty(t, Tag(""))
}
