package statemachine

import "math"

// LogAdd returns log(exp(x) + exp(y)) without leaving log space. Forward and
// backward accumulators must combine edge contributions with this rather
// than plain addition.
func LogAdd(x, y float64) float64 {
	if x < y {
		x, y = y, x
	}
	if y <= LogZero {
		return x
	}
	return x + math.Log1p(math.Exp(y-x))
}
