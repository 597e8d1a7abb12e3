package overlay

import "github.com/rotisserie/eris"

// Sentinel errors for the overlay engine. Geometry-level and pair-level
// errors are collected into the report alongside partial results; only
// schema-level errors (and any error in strict mode) abort a call.
var (
	// ErrInvalidGeometry marks a geometry that is not polygonal or that the
	// overlay provider cannot resolve.
	ErrInvalidGeometry = eris.New("invalid geometry")

	// ErrDegenerateArea marks a source feature with zero area that was
	// needed as an extensive-weighting divisor.
	ErrDegenerateArea = eris.New("degenerate area")

	// ErrSRIDMismatch marks source and target collections in different
	// spatial reference systems. Reprojection is out of scope.
	ErrSRIDMismatch = eris.New("srid mismatch")

	// ErrNotNumeric marks a non-numeric attribute requested for
	// interpolation.
	ErrNotNumeric = eris.New("attribute not numeric")
)
