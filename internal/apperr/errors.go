// Package apperr holds the sentinel errors shared by the service, API and
// MCP layers.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidDate       = errors.New("invalid date")
	ErrRemoteUnavailable = errors.New("remote calendar unavailable")
)
