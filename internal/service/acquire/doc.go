// Package acquire downloads the release archive and unpacks it.
//
// It fetches the expected checksum and the mirror list, downloads the
// archive from a randomly chosen mirror into a staging directory, verifies
// the checksum, atomically moves the archive next to the installation
// directory and extracts it with tar. An existing installation directory
// skips the whole phase without touching the network.
package acquire
