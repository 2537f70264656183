package provisioner

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/oshokin/eclipse-provisioner/internal/service/acquire"
)

// reportChecksumMismatch prints a highlighted warning about a possibly tampered download.
// Other errors are left to the regular error log.
func reportChecksumMismatch(w io.Writer, err error) {
	var checksumErr *acquire.ChecksumError
	if !errors.As(err, &checksumErr) {
		return
	}

	alert := color.New(color.FgRed, color.Bold)

	_, _ = alert.Fprintln(w, "*** ERROR CHECKSUMS DO NOT MATCH, POSSIBLE MALICIOUS ACTIVITY")
	_, _ = fmt.Fprintf(w, "%s Expected\n", checksumErr.Expected)
	_, _ = fmt.Fprintf(w, "%s Hash of downloaded file %s\n", checksumErr.Actual, checksumErr.File)
}
