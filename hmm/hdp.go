package hmm

import (
	"fmt"
	"io"
	"strings"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/statemachine"
)

// NanoporeHDP is the external hierarchical-Dirichlet-process structure the
// loader feeds posterior assignments into. Training of the prior itself
// happens elsewhere; the container only records and transports assignments.
type NanoporeHDP interface {
	// KmerID maps a k-mer string to the HDP's own index space.
	KmerID(kmer string) int64
	// ReceiveAssignments replaces the HDP's data with the given event
	// means and k-mer ids.
	ReceiveAssignments(events []float64, kmerIDs []int64)
}

// HDP is a ContinuousPair that additionally records (event mean, k-mer)
// assignments whose posterior match probability clears a threshold. The
// assignments are later fed into a NanoporeHDP as training data for the
// emission prior.
type HDP struct {
	ContinuousPair
	threshold        float64
	eventAssignments []float64
	kmerAssignments  []string
	nhdp             NanoporeHDP
}

// NewHDP builds an empty HDP container. threshold is the minimum posterior
// probability at which the driver records an assignment.
func NewHDP(pseudocount, threshold float64, stateNumber, symbolSetSize int) (*HDP, error) {
	cp, err := NewContinuousPair(statemachine.ThreeStateHDP, pseudocount, stateNumber, symbolSetSize)
	if err != nil {
		return nil, err
	}
	return &HDP{
		ContinuousPair: *cp,
		threshold:      threshold,
	}, nil
}

// Threshold reports the posterior assignment threshold.
func (h *HDP) Threshold() float64 { return h.threshold }

// NumberOfAssignments reports how many assignments are recorded.
func (h *HDP) NumberOfAssignments() int { return len(h.kmerAssignments) }

// Assignments exposes the parallel assignment lists.
func (h *HDP) Assignments() (events []float64, kmers []string) {
	return h.eventAssignments, h.kmerAssignments
}

// AddToAssignment records one (k-mer, event mean) pair. The driver calls
// this only when the posterior at the cell exceeds Threshold.
func (h *HDP) AddToAssignment(kmerString string, eventMean float64) {
	h.kmerAssignments = append(h.kmerAssignments, kmerString)
	h.eventAssignments = append(h.eventAssignments, eventMean)
}

// checkAssignments reports whether the parallel lists agree in length.
func (h *HDP) checkAssignments() bool {
	return len(h.kmerAssignments) == len(h.eventAssignments)
}

// WriteTo serializes the container:
//
//	line 0: type \t stateNumber \t symbolSetSize \t threshold \t numAssignments
//	line 1: transitions \t likelihood
//	line 2: k-mer gap probabilities
//	line 3: event means
//	line 4: space-separated k-mers
//
// NaN transitions or mismatched assignment lists suppress everything after
// the header.
func (h *HDP) WriteTo(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d\t%d\t%d\t%f\t%d\t\n",
		int(h.typ), h.stateNumber, h.symbolSetSize, h.threshold, h.NumberOfAssignments())
	if err != nil {
		return err
	}
	if !checkFinite(h.transitions) {
		return fmt.Errorf("hdp write: %w", ErrNonFiniteParameter)
	}
	if !h.checkAssignments() {
		return fmt.Errorf("hdp write: %w: assignment lists disagree", ErrNonFiniteParameter)
	}
	if err := writeValues(w, h.transitions); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%f\n", h.likelihood); err != nil {
		return err
	}
	if err := writeValues(w, h.kmerGapProbs); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := writeValues(w, h.eventAssignments); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	builder := &strings.Builder{}
	for _, assigned := range h.kmerAssignments {
		builder.WriteString(assigned[:kmer.Length])
		builder.WriteString(" ")
	}
	builder.WriteString("\n")
	_, err = io.WriteString(w, builder.String())
	return err
}

// ReadHDP parses the five-line container format. The type tag must be
// ThreeStateHDP. When nhdp is non-nil the parsed assignments are converted
// to HDP k-mer ids and handed over wholesale.
func ReadHDP(r io.Reader, nhdp NanoporeHDP) (*HDP, error) {
	scanner := newModelScanner(r)

	fields, err := lineFields(scanner, "header")
	if err != nil {
		return nil, err
	}
	typInt, err := parseHeaderInt(fields, 0, "type")
	if err != nil {
		return nil, err
	}
	typ := statemachine.Type(typInt)
	if typ != statemachine.ThreeStateHDP {
		return nil, fmt.Errorf("hdp load: %w: got %s", ErrWrongModelType, typ)
	}
	stateNumber, err := parseHeaderInt(fields, 1, "state number")
	if err != nil {
		return nil, err
	}
	symbolSetSize, err := parseHeaderInt(fields, 2, "symbol set size")
	if err != nil {
		return nil, err
	}
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: header is missing threshold or assignment count", ErrMalformedFile)
	}
	threshold := make([]float64, 1)
	if err := parseFloats(fields[3:4], threshold, "threshold"); err != nil {
		return nil, err
	}
	numAssignments, err := parseHeaderInt(fields, 4, "number of assignments")
	if err != nil {
		return nil, err
	}

	h, err := NewHDP(0.0, threshold[0], stateNumber, symbolSetSize)
	if err != nil {
		return nil, err
	}
	if err := readTransitionsLine(scanner, h.transitions, &h.base.likelihood); err != nil {
		return nil, err
	}
	gapFields, err := lineFields(scanner, "k-mer gap probabilities")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(gapFields, h.kmerGapProbs, "k-mer gap probabilities"); err != nil {
		return nil, err
	}

	h.eventAssignments = make([]float64, numAssignments)
	eventFields, err := lineFields(scanner, "event assignments")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(eventFields, h.eventAssignments, "event assignments"); err != nil {
		return nil, err
	}
	kmerFields, err := lineFields(scanner, "k-mer assignments")
	if err != nil {
		return nil, err
	}
	if len(kmerFields) != numAssignments {
		return nil, fmt.Errorf("%w: k-mer assignments has %d values, expected %d",
			ErrMalformedFile, len(kmerFields), numAssignments)
	}
	h.kmerAssignments = kmerFields

	if nhdp != nil {
		h.nhdp = nhdp
		kmerIDs := make([]int64, numAssignments)
		for i, assigned := range h.kmerAssignments {
			kmerIDs[i] = nhdp.KmerID(assigned)
		}
		nhdp.ReceiveAssignments(h.eventAssignments, kmerIDs)
	}
	return h, nil
}
