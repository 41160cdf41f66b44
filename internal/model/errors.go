package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed input parameter. It is raised before
// any I/O or computation and is never recovered internally.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ResourceMissingError reports an absent or unreadable raster or polygon
// source. Callers switch the owning component to its default-value mode.
type ResourceMissingError struct {
	Resource string
	Path     string
	Err      error
}

func (e *ResourceMissingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s not available at %q", e.Resource, e.Path)
	}
	return fmt.Sprintf("%s not available at %q: %v", e.Resource, e.Path, e.Err)
}

func (e *ResourceMissingError) Unwrap() error {
	return e.Err
}

// SpatialJoinError reports that the bulk zone join could not evaluate a
// polygon. It triggers the index fallback and does not leave the zone package.
type SpatialJoinError struct {
	Index  int
	Reason string
}

func (e *SpatialJoinError) Error() string {
	return fmt.Sprintf("spatial join: polygon %d: %s", e.Index, e.Reason)
}

// IsValidation returns true if err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsResourceMissing returns true if err (or any error in its chain) is a ResourceMissingError.
func IsResourceMissing(err error) bool {
	var re *ResourceMissingError
	return errors.As(err, &re)
}

// IsSpatialJoin returns true if err (or any error in its chain) is a SpatialJoinError.
func IsSpatialJoin(err error) bool {
	var se *SpatialJoinError
	return errors.As(err, &se)
}
