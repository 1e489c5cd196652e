package common

import (
	"errors"
)

// Sentinel errors shared across services. Absence of a record is not an
// error at the service layer; these cover genuinely exceptional states.
var (
	// ErrInvalidEncoding reports an upload that is not valid UTF-8 text.
	ErrInvalidEncoding = errors.New("file content is not valid UTF-8 text")

	// ErrUnsupportedType reports an upload whose extension has no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrCorruptIndex reports an unusable persisted index: one artifact of
	// the vector/chunk-map pair is missing, or their lengths disagree.
	ErrCorruptIndex = errors.New("vector index is corrupt")

	// ErrInvalidInput reports a structurally invalid request parameter.
	ErrInvalidInput = errors.New("invalid input")
)
