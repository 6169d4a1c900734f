package hmm

import (
	"math/rand"

	"github.com/bebop/nanopair/statemachine"
	"github.com/mroth/weightedrand"
)

// TransitionSource is any container exposing a normalized transition
// matrix; Symbol and ContinuousPair both qualify.
type TransitionSource interface {
	StateNumber() int
	Transition(from, to statemachine.State) float64
}

// SampleStatePath draws a synthetic state path of the given length from a
// normalized transition matrix, starting in the match state. Useful for
// smoke-testing a freshly randomized model and for simulating reads.
func SampleStatePath(source TransitionSource, length int, seed int64) ([]statemachine.State, error) {
	rng := rand.New(rand.NewSource(seed))
	stateNumber := source.StateNumber()

	choosers := make([]*weightedrand.Chooser, stateNumber)
	for from := 0; from < stateNumber; from++ {
		choices := make([]weightedrand.Choice, 0, stateNumber)
		for to := 0; to < stateNumber; to++ {
			probability := source.Transition(statemachine.State(from), statemachine.State(to))
			weight := uint(probability*1e6) + 1
			choices = append(choices, weightedrand.Choice{Item: statemachine.State(to), Weight: weight})
		}
		chooser, err := weightedrand.NewChooser(choices...)
		if err != nil {
			return nil, err
		}
		choosers[from] = chooser
	}

	path := make([]statemachine.State, length)
	current := statemachine.Match
	for i := 0; i < length; i++ {
		path[i] = current
		current = choosers[current].PickSource(rng).(statemachine.State)
	}
	return path, nil
}
