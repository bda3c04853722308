package main

import (
	"errors"

	"s3-to-onedrive/internal/graph"
)

var (
	// ErrConfiguration marks a missing or malformed setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransfer marks a failed or empty download from S3.
	ErrTransfer = errors.New("transfer error")
	// ErrNoRecords is returned for a notification without any S3 record.
	ErrNoRecords = errors.New("notification contains no records")
)

// errorKind names the category of err for logging. The outcome returned to
// the runtime does not carry it.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNoRecords):
		return "no_records"
	case errors.Is(err, graph.ErrAuthentication):
		return "authentication"
	case errors.Is(err, graph.ErrFolderNotFound):
		return "not_found"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, graph.ErrUpload):
		return "upload"
	case errors.Is(err, graph.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}
