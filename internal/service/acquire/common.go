package acquire

import (
	"crypto"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Register the hash functions selectable through the checksum type setting.
	_ "crypto/sha1"   //nolint:gosec // The release server still publishes SHA-1 sums.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

var (
	// ErrNetworkFailure is returned when an endpoint or mirror cannot be fetched.
	ErrNetworkFailure = errors.New("network failure")
	// ErrEmptyMirrorList is returned when the mirror list contains no usable URL.
	ErrEmptyMirrorList = errors.New("mirror list is empty")
	// ErrChecksumMismatch is returned when the downloaded archive does not match the published checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	errHashUnavailable     = errors.New("hash function unavailable")
	errUnknownChecksumType = errors.New("unknown checksum type")
	errMirrorOutOfRange    = errors.New("mirror index out of range")
)

const (
	// DefaultFileMode is applied to the archive moved into the working directory.
	DefaultFileMode os.FileMode = 0o644

	// stagingPattern names the temporary directory archives are downloaded into.
	stagingPattern = "eclipse-provisioner-"
)

// ChecksumError describes a downloaded file whose hash differs from the published one.
type ChecksumError struct {
	// File is the downloaded file name.
	File string
	// Expected is the published checksum.
	Expected string
	// Actual is the checksum of the downloaded bytes.
	Actual string
}

// Error implements the error interface.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// Is makes every ChecksumError match ErrChecksumMismatch.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// HashByName maps a checksum type setting onto a crypto.Hash.
func HashByName(name string) (crypto.Hash, error) {
	var h crypto.Hash

	switch strings.ToLower(name) {
	case "sha1":
		h = crypto.SHA1
	case "sha256":
		h = crypto.SHA256
	case "sha512":
		h = crypto.SHA512
	default:
		return 0, fmt.Errorf("%q: %w", name, errUnknownChecksumType)
	}

	if !h.Available() {
		return 0, fmt.Errorf("%s: %w", name, errHashUnavailable)
	}

	return h, nil
}

// GetFileChecksum streams the file through the hash and returns the lowercase hex digest.
func GetFileChecksum(path string, h crypto.Hash) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := h.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyChecksum compares the checksums byte for byte.
func VerifyChecksum(file, expected, actual string) error {
	if expected != actual {
		return &ChecksumError{File: file, Expected: expected, Actual: actual}
	}

	return nil
}

// ParseChecksum returns the first whitespace-delimited token of a checksum response.
func ParseChecksum(body string) (string, bool) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", false
	}

	return fields[0], true
}

// mirrorList is the XML document returned by the mirror endpoint.
type mirrorList struct {
	XMLName xml.Name `xml:"mirrors"`
	Mirrors []struct {
		URL   string `xml:"url,attr"`
		Label string `xml:"label,attr"`
	} `xml:"mirror"`
}

// ParseMirrorList extracts the url attribute of every mirrors/mirror element.
// Mirrors without a URL are skipped.
func ParseMirrorList(data []byte) ([]string, error) {
	var list mirrorList
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode mirror list: %w", err)
	}

	urls := make([]string, 0, len(list.Mirrors))

	for _, m := range list.Mirrors {
		if u := strings.TrimSpace(m.URL); u != "" {
			urls = append(urls, u)
		}
	}

	return urls, nil
}

// PickMirror selects one mirror using pick, which must return a value in [0, n).
func PickMirror(mirrors []string, pick func(n int) int) (string, error) {
	if len(mirrors) == 0 {
		return "", ErrEmptyMirrorList
	}

	i := pick(len(mirrors))
	if i < 0 || i >= len(mirrors) {
		return "", fmt.Errorf("%d of %d: %w", i, len(mirrors), errMirrorOutOfRange)
	}

	return mirrors[i], nil
}
