package hologram

import "errors"

// ErrConfiguration is returned when an array, grid or optimizer is configured
// with values that make the requested computation meaningless: no sources,
// empty or mismatched foci, non-positive resolution or wavelength, and so on.
var ErrConfiguration = errors.New("invalid configuration")

// ErrNumericalDegeneracy is returned when a decomposition needed to produce any
// result at all fails (for example the eigensolver used by Long).
var ErrNumericalDegeneracy = errors.New("numerical degeneracy")

// ErrExclusiveAccess is returned when an array that is held by an in-flight
// optimizer call is evaluated or handed to a second optimizer.
var ErrExclusiveAccess = errors.New("array is in use by another optimizer call")

// ErrNonFinitePoint is returned when the field is requested at a point with a
// NaN or infinite coordinate.
var ErrNonFinitePoint = errors.New("observation point is not finite")

// ErrBuilderConsumed is returned when a GridBuilder value is reused after it
// has been consumed by a configuration step or by Generate.
var ErrBuilderConsumed = errors.New("grid builder already consumed")
