/*
Package statemachine implements the pair-HMM state machines that drive
sequence-to-sequence and signal-to-sequence alignment.

A state machine owns its transition parameters (log-space) and emission
tables, and exposes one kernel, CellCalculate, that visits every edge of the
model for one cell of the dynamic-programming lattice. The caller supplies a
callback invoked once per edge with the emission and transition
log-probabilities, so the same kernel drives the forward pass, the backward
pass, posterior computation and expectation accumulation. The callback's
accumulation operator must be associative (log-sum-exp for forward/backward,
plain addition for expectation counts) because the edge visit order within a
cell is unspecified.

Three machines are provided. FiveStateMachine aligns two nucleotide
sequences with separate short and long gap states per axis. ThreeStateMachine
is its three-state sibling, used both for sequence alignment and - with k-mer
emission functions - for event-to-sequence alignment with learned per-k-mer
skip probabilities. VanillaMachine aligns nanopore events against a k-mer
sequence directly from a pore model, deriving its transition probabilities
per cell from the skip-bin table.

Machines are read-only during a DP pass and may be shared across goroutines.
*/
package statemachine

// Type tags a state machine or expectation container variant. The integer
// values are stable: they are written to disk as the first field of every
// serialized model.
type Type int

const (
	// FiveState is the symmetric five-state symbol model.
	FiveState Type = iota
	// FiveStateAsymmetric is the five-state symbol model with independent
	// X and Y axis parameters.
	FiveStateAsymmetric
	// ThreeState is the symmetric three-state model.
	ThreeState
	// ThreeStateAsymmetric is the three-state model with independent axes.
	ThreeStateAsymmetric
	// ThreeStateHDP is the three-state model whose match emissions are
	// backed by a hierarchical-Dirichlet-process prior.
	ThreeStateHDP
	// Vanilla is the three-state signal model with derived transitions.
	Vanilla
)

func (t Type) String() string {
	switch t {
	case FiveState:
		return "fiveState"
	case FiveStateAsymmetric:
		return "fiveStateAsymmetric"
	case ThreeState:
		return "threeState"
	case ThreeStateAsymmetric:
		return "threeStateAsymmetric"
	case ThreeStateHDP:
		return "threeStateHdp"
	case Vanilla:
		return "vanilla"
	}
	return "unknown"
}

// State enumerates the hidden states. Match is always state 0. The
// three-state machines use only the first three states.
type State int

const (
	// Match consumes one symbol on each axis.
	Match State = iota
	// ShortGapX consumes a sequence symbol without an event (a skip).
	ShortGapX
	// ShortGapY consumes an event without a sequence symbol (an extra event).
	ShortGapY
	// LongGapX is the long-gap sibling of ShortGapX.
	LongGapX
	// LongGapY is the long-gap sibling of ShortGapY.
	LongGapY
)

// LogZero stands in for log(0) on disabled edges. It is finite so that
// arithmetic on it cannot produce NaN, and large enough in magnitude that
// exp(LogZero) underflows to zero.
const LogZero = -1.0e9

// Event is one nanopore current measurement, summarized as the mean current
// and its fluctuation (noise). Durations are not consumed by the aligner.
type Event struct {
	Mean  float64
	Noise float64
}

// Observation carries the per-cell observations for both lattice axes. The
// symbol machines read KmerX and KmerY. The signal machine reads KmerX (a
// window of kmer.Length+1 bases covering two consecutive k-mers) and Event.
type Observation struct {
	KmerX string
	KmerY string
	Event Event
}

// TransitionFunc is invoked by CellCalculate once per model edge. The from
// and to slices are the per-state value arrays of the source and target
// cells; emission and transition are log-probabilities.
type TransitionFunc func(from, to []float64, fromState, toState State, emission, transition float64)

// StateMachine is the contract the DP driver iterates against.
type StateMachine interface {
	// Type reports the variant tag.
	Type() Type
	// StateNumber reports how many states the machine uses.
	StateNumber() int
	// StartStateProb is the log-probability of entering the lattice at a
	// state when the alignment starts cleanly at a match.
	StartStateProb(state State) float64
	// RaggedStartStateProb is the log-probability of entering through a gap
	// state, used when aligning sub-sequences.
	RaggedStartStateProb(state State) float64
	// EndStateProb is the log-probability of exiting the lattice at a state.
	EndStateProb(state State) float64
	// RaggedEndStateProb is the exit twin of RaggedStartStateProb.
	RaggedEndStateProb(state State) float64
	// CellCalculate visits every edge of the model for one lattice cell,
	// invoking do once per edge for each non-nil neighbor cell. lower is
	// the cell one step back on the sequence axis, upper one step back on
	// the event axis, middle one step back on both.
	CellCalculate(current, lower, middle, upper []float64, obs Observation, do TransitionFunc)
}

func stateCheck(sm StateMachine, state State) {
	if state < 0 || int(state) >= sm.StateNumber() {
		panic("statemachine: state out of range")
	}
}
