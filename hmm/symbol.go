package hmm

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/bebop/nanopair/statemachine"
)

// Symbol is the discrete expectation container the five-state sequence
// machines load from: a stateNumber^2 transition matrix and a full
// stateNumber x S x S emission matrix.
type Symbol struct {
	base
	transitions []float64
	emissions   []float64
}

// NewSymbol builds an empty container with every accumulator set to
// pseudocount. typ must be FiveState or FiveStateAsymmetric.
func NewSymbol(typ statemachine.Type, pseudocount float64, stateNumber, symbolSetSize int) (*Symbol, error) {
	if typ != statemachine.FiveState && typ != statemachine.FiveStateAsymmetric {
		return nil, fmt.Errorf("symbol construct: %w: got %s", ErrWrongModelType, typ)
	}
	s := &Symbol{
		base: base{
			typ:           typ,
			stateNumber:   stateNumber,
			symbolSetSize: symbolSetSize,
		},
		transitions: make([]float64, stateNumber*stateNumber),
		emissions:   make([]float64, stateNumber*symbolSetSize*symbolSetSize),
	}
	for i := range s.transitions {
		s.transitions[i] = pseudocount
	}
	for i := range s.emissions {
		s.emissions[i] = pseudocount
	}
	return s, nil
}

// AddToTransition accumulates a transition expectation.
func (s *Symbol) AddToTransition(from, to statemachine.State, p float64) {
	s.transitions[int(from)*s.stateNumber+int(to)] += p
}

// SetTransition overwrites a transition expectation.
func (s *Symbol) SetTransition(from, to statemachine.State, p float64) {
	s.transitions[int(from)*s.stateNumber+int(to)] = p
}

// Transition reads a transition expectation.
func (s *Symbol) Transition(from, to statemachine.State) float64 {
	return s.transitions[int(from)*s.stateNumber+int(to)]
}

func (s *Symbol) emissionIndex(state statemachine.State, x, y int) int {
	return int(state)*s.symbolSetSize*s.symbolSetSize + x*s.symbolSetSize + y
}

// AddToEmission accumulates an emission expectation for a symbol pair.
func (s *Symbol) AddToEmission(state statemachine.State, x, y int, p float64) {
	s.emissions[s.emissionIndex(state, x, y)] += p
}

// SetEmission overwrites an emission expectation.
func (s *Symbol) SetEmission(state statemachine.State, x, y int, p float64) {
	s.emissions[s.emissionIndex(state, x, y)] = p
}

// Emission reads an emission expectation.
func (s *Symbol) Emission(state statemachine.State, x, y int) float64 {
	return s.emissions[s.emissionIndex(state, x, y)]
}

// Normalize converts the accumulators to probabilities: each transition row
// and each state's emission matrix sum to 1 afterward.
func (s *Symbol) Normalize() {
	normalizeRows(s.transitions, s.stateNumber)
	pairCount := s.symbolSetSize * s.symbolSetSize
	for state := 0; state < s.stateNumber; state++ {
		normalizeVector(s.emissions[state*pairCount : (state+1)*pairCount])
	}
}

// Randomize fills the container with uniform random expectations and
// normalizes.
func (s *Symbol) Randomize(rng *rand.Rand) {
	for i := range s.transitions {
		s.transitions[i] = rng.Float64()
	}
	for i := range s.emissions {
		s.emissions[i] = rng.Float64()
	}
	s.Normalize()
}

// Merge adds another container's accumulators into this one.
func (s *Symbol) Merge(other *Symbol) error {
	if other.typ != s.typ || other.stateNumber != s.stateNumber || other.symbolSetSize != s.symbolSetSize {
		return fmt.Errorf("merge: %w: %s into %s", ErrWrongModelType, other.typ, s.typ)
	}
	for i := range s.transitions {
		s.transitions[i] += other.transitions[i]
	}
	for i := range s.emissions {
		s.emissions[i] += other.emissions[i]
	}
	s.likelihood += other.likelihood
	return nil
}

// WriteTo serializes the container:
//
//	line 0: type \t stateNumber \t symbolSetSize
//	line 1: transitions \t likelihood
//	line 2: emission expectations, state-major
//
// NaN transitions suppress everything after the header.
func (s *Symbol) WriteTo(w io.Writer) error {
	if err := writeHeader(w, &s.base); err != nil {
		return err
	}
	if !checkFinite(s.transitions) {
		return fmt.Errorf("symbol write: %w", ErrNonFiniteParameter)
	}
	if err := writeValues(w, s.transitions); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%f\n", s.likelihood); err != nil {
		return err
	}
	if err := writeValues(w, s.emissions); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadSymbol parses the three-line container format. The type tag must be
// FiveState or FiveStateAsymmetric.
func ReadSymbol(r io.Reader) (*Symbol, error) {
	scanner := newModelScanner(r)

	typ, stateNumber, symbolSetSize, err := readHeader(scanner)
	if err != nil {
		return nil, err
	}
	if typ != statemachine.FiveState && typ != statemachine.FiveStateAsymmetric {
		return nil, fmt.Errorf("symbol load: %w: got %s", ErrWrongModelType, typ)
	}
	s, err := NewSymbol(typ, 0.0, stateNumber, symbolSetSize)
	if err != nil {
		return nil, err
	}
	if err := readTransitionsLine(scanner, s.transitions, &s.base.likelihood); err != nil {
		return nil, err
	}
	fields, err := lineFields(scanner, "emissions")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(fields, s.emissions, "emissions"); err != nil {
		return nil, err
	}
	return s, nil
}
