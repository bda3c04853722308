// Package graph provides a minimal Microsoft Graph client for locating a
// folder shared with the signed-in identity and uploading a file into it.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind sentinels. Use errors.Is(err, graph.ErrAuthentication) to check.
var (
	ErrAuthentication = errors.New("graph: authentication failed")
	ErrFolderNotFound = errors.New("graph: shared folder not found")
	ErrUpload         = errors.New("graph: upload failed")
	ErrTransport      = errors.New("graph: transport error")
)

// Sentinel errors for HTTP status code classification.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrTooLarge     = errors.New("graph: request entity too large")
	ErrThrottled    = errors.New("graph: throttled")
	ErrServerError  = errors.New("graph: server error")
)

// GraphError wraps a status sentinel with the HTTP status code, request ID,
// and the API error body for debugging.
type GraphError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *GraphError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
