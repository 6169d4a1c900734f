package hmm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/bebop/nanopair/statemachine"
)

// ContinuousPair is the three-state expectation container: a stateNumber^2
// transition matrix plus one gap (skip) expectation per k-mer, for learning
// how likely each k-mer is to be skipped by the event detector.
type ContinuousPair struct {
	base
	transitions  []float64
	kmerGapProbs []float64
}

// NewContinuousPair builds an empty container with every accumulator set to
// pseudocount. typ must be ThreeState, ThreeStateAsymmetric or
// ThreeStateHDP.
func NewContinuousPair(typ statemachine.Type, pseudocount float64, stateNumber, symbolSetSize int) (*ContinuousPair, error) {
	if typ != statemachine.ThreeState && typ != statemachine.ThreeStateAsymmetric && typ != statemachine.ThreeStateHDP {
		return nil, fmt.Errorf("continuous pair construct: %w: got %s", ErrWrongModelType, typ)
	}
	cp := &ContinuousPair{
		base: base{
			typ:           typ,
			stateNumber:   stateNumber,
			symbolSetSize: symbolSetSize,
		},
		transitions:  make([]float64, stateNumber*stateNumber),
		kmerGapProbs: make([]float64, symbolSetSize),
	}
	for i := range cp.transitions {
		cp.transitions[i] = pseudocount
	}
	for i := range cp.kmerGapProbs {
		cp.kmerGapProbs[i] = pseudocount
	}
	return cp, nil
}

// AddToTransition accumulates a transition expectation.
func (cp *ContinuousPair) AddToTransition(from, to statemachine.State, p float64) {
	cp.transitions[int(from)*cp.stateNumber+int(to)] += p
}

// SetTransition overwrites a transition expectation.
func (cp *ContinuousPair) SetTransition(from, to statemachine.State, p float64) {
	cp.transitions[int(from)*cp.stateNumber+int(to)] = p
}

// Transition reads a transition expectation.
func (cp *ContinuousPair) Transition(from, to statemachine.State) float64 {
	return cp.transitions[int(from)*cp.stateNumber+int(to)]
}

// AddToEmission accumulates a gap expectation for a k-mer. The state and y
// arguments are ignored: the container keeps a single gap vector.
func (cp *ContinuousPair) AddToEmission(state statemachine.State, kmerIndex, y int, p float64) {
	cp.kmerGapProbs[kmerIndex] += p
}

// SetEmission overwrites a k-mer gap expectation.
func (cp *ContinuousPair) SetEmission(state statemachine.State, kmerIndex, y int, p float64) {
	cp.kmerGapProbs[kmerIndex] = p
}

// Emission reads a k-mer gap expectation.
func (cp *ContinuousPair) Emission(state statemachine.State, kmerIndex, y int) float64 {
	return cp.kmerGapProbs[kmerIndex]
}

// Normalize converts the accumulators to probabilities: each transition row
// and the k-mer gap vector sum to 1 afterward.
func (cp *ContinuousPair) Normalize() {
	normalizeRows(cp.transitions, cp.stateNumber)
	normalizeVector(cp.kmerGapProbs)
}

// Randomize fills the container with uniform random expectations and
// normalizes.
func (cp *ContinuousPair) Randomize(rng *rand.Rand) {
	for i := range cp.transitions {
		cp.transitions[i] = rng.Float64()
	}
	for i := range cp.kmerGapProbs {
		cp.kmerGapProbs[i] = rng.Float64()
	}
	cp.Normalize()
}

// Merge adds another container's accumulators into this one, for drivers
// that keep one container per worker.
func (cp *ContinuousPair) Merge(other *ContinuousPair) error {
	if other.typ != cp.typ || other.stateNumber != cp.stateNumber || other.symbolSetSize != cp.symbolSetSize {
		return fmt.Errorf("merge: %w: %s into %s", ErrWrongModelType, other.typ, cp.typ)
	}
	for i := range cp.transitions {
		cp.transitions[i] += other.transitions[i]
	}
	for i := range cp.kmerGapProbs {
		cp.kmerGapProbs[i] += other.kmerGapProbs[i]
	}
	cp.likelihood += other.likelihood
	return nil
}

// LoadInto converts the normalized expectations to log-probabilities and
// copies them into a three-state machine. The X gap extend probability is
// taken as 1 - P(shortGapX -> match) rather than the raw accumulator, and
// the X -> Y switch is disabled, matching the skip-state semantics of the
// signal alignment kernel.
func (cp *ContinuousPair) LoadInto(sm *statemachine.ThreeStateMachine) error {
	match := statemachine.Match
	gapX := statemachine.ShortGapX
	gapY := statemachine.ShortGapY

	sm.MatchContinue = math.Log(cp.Transition(match, match))
	sm.GapOpenX = math.Log(cp.Transition(match, gapX))
	sm.GapOpenY = math.Log(cp.Transition(match, gapY))

	sm.MatchFromGapX = math.Log(cp.Transition(gapX, match))
	sm.GapExtendX = math.Log(1 - cp.Transition(gapX, match))
	sm.GapSwitchToY = statemachine.LogZero

	sm.MatchFromGapY = math.Log(cp.Transition(gapY, match))
	sm.GapExtendY = math.Log(cp.Transition(gapY, gapY))
	sm.GapSwitchToX = math.Log(cp.Transition(gapY, gapX))

	for i := 0; i < cp.symbolSetSize; i++ {
		sm.GapXProbs[i] = math.Log(cp.kmerGapProbs[i])
	}
	return nil
}

// WriteTo serializes the container:
//
//	line 0: type \t stateNumber \t symbolSetSize
//	line 1: transitions \t likelihood
//	line 2: k-mer gap probabilities
//
// NaN transitions suppress everything after the header.
func (cp *ContinuousPair) WriteTo(w io.Writer) error {
	if err := writeHeader(w, &cp.base); err != nil {
		return err
	}
	if !checkFinite(cp.transitions) {
		return fmt.Errorf("continuous pair write: %w", ErrNonFiniteParameter)
	}
	if err := writeValues(w, cp.transitions); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%f\n", cp.likelihood); err != nil {
		return err
	}
	if err := writeValues(w, cp.kmerGapProbs); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadContinuousPair parses the three-line container format. The type tag
// must be ThreeState or ThreeStateAsymmetric.
func ReadContinuousPair(r io.Reader) (*ContinuousPair, error) {
	scanner := newModelScanner(r)

	typ, stateNumber, symbolSetSize, err := readHeader(scanner)
	if err != nil {
		return nil, err
	}
	if typ != statemachine.ThreeState && typ != statemachine.ThreeStateAsymmetric {
		return nil, fmt.Errorf("continuous pair load: %w: got %s", ErrWrongModelType, typ)
	}
	cp, err := NewContinuousPair(typ, 0.0, stateNumber, symbolSetSize)
	if err != nil {
		return nil, err
	}
	if err := readTransitionsLine(scanner, cp.transitions, &cp.base.likelihood); err != nil {
		return nil, err
	}
	fields, err := lineFields(scanner, "k-mer gap probabilities")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(fields, cp.kmerGapProbs, "k-mer gap probabilities"); err != nil {
		return nil, err
	}
	return cp, nil
}

// newModelScanner builds a line scanner large enough for a 4096-kmer line.
func newModelScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	return scanner
}

// readHeader parses the shared line-0 header.
func readHeader(scanner *bufio.Scanner) (statemachine.Type, int, int, error) {
	fields, err := lineFields(scanner, "header")
	if err != nil {
		return 0, 0, 0, err
	}
	typ, err := parseHeaderInt(fields, 0, "type")
	if err != nil {
		return 0, 0, 0, err
	}
	stateNumber, err := parseHeaderInt(fields, 1, "state number")
	if err != nil {
		return 0, 0, 0, err
	}
	symbolSetSize, err := parseHeaderInt(fields, 2, "symbol set size")
	if err != nil {
		return 0, 0, 0, err
	}
	return statemachine.Type(typ), stateNumber, symbolSetSize, nil
}

// readTransitionsLine parses line 1: the flat transition block followed by
// the likelihood.
func readTransitionsLine(scanner *bufio.Scanner, transitions []float64, likelihood *float64) error {
	fields, err := lineFields(scanner, "transitions")
	if err != nil {
		return err
	}
	if len(fields) != len(transitions)+1 {
		return fmt.Errorf("%w: transitions line has %d values, expected %d plus likelihood",
			ErrMalformedFile, len(fields), len(transitions))
	}
	if err := parseFloats(fields[:len(transitions)], transitions, "transitions"); err != nil {
		return err
	}
	parsed := make([]float64, 1)
	if err := parseFloats(fields[len(transitions):], parsed, "likelihood"); err != nil {
		return err
	}
	*likelihood = parsed[0]
	return nil
}
