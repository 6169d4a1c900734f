package hmm

import "errors"

var (
	// ErrWrongModelType is returned when a serialized model's type tag does
	// not match the loader it was handed to.
	ErrWrongModelType = errors.New("wrong model type")
	// ErrMalformedFile is returned for missing fields, wrong token counts
	// and failed numeric parses.
	ErrMalformedFile = errors.New("malformed model file")
	// ErrNonFiniteParameter is returned when a writer finds NaN among the
	// transitions. The body of the file is suppressed; only the header is
	// written, so no partial parameter block is left behind. During
	// training this signals that the EM step must be discarded.
	ErrNonFiniteParameter = errors.New("non-finite parameter")
)
