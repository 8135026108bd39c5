package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelNotFound means the requested dataset key has no loaded artifact.
	ErrModelNotFound = errors.New("model not found")
	// ErrNoSuitableModel means auto-selection found no artifact with enough feature overlap.
	ErrNoSuitableModel = errors.New("no suitable model")
	// ErrNoModelsAvailable means ensemble mode had no usable artifact.
	ErrNoModelsAvailable = errors.New("no models available")
	// ErrEmptyFeatureVector means the request carried no features.
	ErrEmptyFeatureVector = errors.New("features cannot be empty")
	// ErrInvalidFeatureValue means a feature value was NaN or infinite.
	ErrInvalidFeatureValue = errors.New("feature values must be finite")
	// ErrArtifactLoad marks an artifact that could not be loaded.
	ErrArtifactLoad = errors.New("artifact load failed")
)

// ModelNotFoundError names the missing key and what is available instead.
type ModelNotFoundError struct {
	Key       string
	Available []string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found; available: %s", e.Key, joinKeys(e.Available))
}

func (e *ModelNotFoundError) Unwrap() error { return ErrModelNotFound }

// NoSuitableModelError lists the keys a caller could request explicitly.
type NoSuitableModelError struct {
	Available []string
}

func (e *NoSuitableModelError) Error() string {
	return fmt.Sprintf("no suitable model found for given features; available: %s", joinKeys(e.Available))
}

func (e *NoSuitableModelError) Unwrap() error { return ErrNoSuitableModel }

// ArtifactLoadError records why a single artifact file was skipped.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() []error { return []error{ErrArtifactLoad, e.Err} }

func joinKeys(keys []string) string {
	if len(keys) == 0 {
		return "none"
	}
	return strings.Join(keys, ", ")
}
