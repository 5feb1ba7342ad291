package cardio

import "fmt"

// MalformedDatasetError is returned when a voxel dataset is missing or has garbled
// geometry metadata.  It aborts a domain load.
type MalformedDatasetError struct {
	Field  string
	Reason string
}

func (e *MalformedDatasetError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed dataset: %s", e.Reason)
	}
	return fmt.Sprintf("malformed dataset: field %q %s", e.Field, e.Reason)
}

// NewMalformedDatasetError returns a MalformedDatasetError for the given field.
func NewMalformedDatasetError(field, format string, args ...interface{}) error {
	return &MalformedDatasetError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UninitializedEngineError is returned when an engine operation is called before
// a domain has been loaded into it.  The engine stays usable once initialized.
type UninitializedEngineError struct {
	Op string
}

func (e *UninitializedEngineError) Error() string {
	return fmt.Sprintf("cannot %s: simulation engine has no domain loaded", e.Op)
}

// DegenerateDomainError flags a domain with zero active voxels.  Stepping such a
// domain is a no-op so callers may treat this as a warning.
type DegenerateDomainError struct {
	AtlasTexels int
}

func (e *DegenerateDomainError) Error() string {
	return fmt.Sprintf("degenerate domain: none of %d atlas texels are active", e.AtlasTexels)
}
