package download

import "errors"

var (
	// ErrFileTooLarge means a file exceeded the configured size cap,
	// either by declared Content-Length or mid-stream.
	ErrFileTooLarge = errors.New("download: file exceeds size cap")

	// ErrDownloadRejected means the server answered with an error status.
	ErrDownloadRejected = errors.New("download: server rejected request")
)

// errorsIsTooLarge reports whether err is the permanent oversize failure.
func errorsIsTooLarge(err error) bool {
	return errors.Is(err, ErrFileTooLarge)
}
