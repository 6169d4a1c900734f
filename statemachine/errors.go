package statemachine

import "errors"

// ErrWrongModelType is returned when a machine is asked to load parameters
// from an expectation container of an incompatible variant.
var ErrWrongModelType = errors.New("wrong model type")
