package services

import (
	"errors"

	"github.com/miradorstack/water-ai/internal/registry"
	"github.com/miradorstack/water-ai/internal/repo"
)

var (
	// ErrInvalidRequest marks a request rejected at the service boundary.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStorageUnavailable means the operation needs persistence that is not configured.
	ErrStorageUnavailable = errors.New("storage not configured")
	// ErrReportsUnavailable means no report renderer or object store is configured.
	ErrReportsUnavailable = errors.New("report generation not configured")
)

// IsNotFound reports whether err means a named resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, registry.ErrModelNotFound) || errors.Is(err, repo.ErrNotFound)
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || registry.IsClientError(err) || IsNotFound(err)
}

// IsUnavailable reports whether err means a required subsystem is not configured.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrReportsUnavailable)
}
