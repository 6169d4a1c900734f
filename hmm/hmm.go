/*
Package hmm provides the expectation containers for one Baum-Welch pass over
the pair-HMM state machines, together with their on-disk formats.

A container accumulates transition and emission expectations while the DP
driver runs the backward pass, then normalizes them in place and either
writes them to disk or loads them back into a state machine for the next
iteration. One full EM iteration is therefore:

	container := hmm.NewContinuousPair(...)   // or load last iteration's file
	for each read {
	    machine runs DP, calling container.AddToTransition / AddToEmission
	}
	container.Normalize()
	hmm.WriteFile(path, container)
	container.LoadInto(machine)

Containers are initialized to a pseudocount everywhere rather than zero, so
sparse data cannot drive a probability to log(0). Accumulation is plain
addition, so a driver may use one container per worker goroutine and merge
them afterward.

Four variants are provided. Symbol is the discrete container the five-state
sequence machines load from. ContinuousPair carries the three-state
transition matrix plus one learned gap probability per k-mer. Vanilla
carries the 60 skip-bin expectations and the pore-model tables between
iterations. HDP extends ContinuousPair with the (event, k-mer) assignments
that feed a hierarchical-Dirichlet-process emission prior.
*/
package hmm

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/statemachine"
)

// symbolAlphabetSize is the emission alphabet of the single-nucleotide
// containers; kmerAlphabetSize that of the k-mer containers.
const (
	symbolAlphabetSize = kmer.BaseCount
	kmerAlphabetSize   = kmer.NumKmers
)

// Hmm is the behavior shared by all expectation containers. Variant
// specific accessors (transitions, k-mer gaps, skip bins, assignments) are
// concrete methods on the variant types.
type Hmm interface {
	Type() statemachine.Type
	StateNumber() int
	SymbolSetSize() int
	Likelihood() float64
	SetLikelihood(likelihood float64)
	// Normalize converts the accumulated expectations to probabilities in
	// place; every semantic group sums to 1 in linear space afterward.
	Normalize()
	// Randomize fills the container with uniform random expectations and
	// normalizes, for cold starts and tests.
	Randomize(rng *rand.Rand)
	// WriteTo serializes the container. If any transition expectation is
	// NaN only the header line is written and ErrNonFiniteParameter is
	// returned.
	WriteTo(w io.Writer) error
}

// base carries the header fields every container variant shares.
type base struct {
	typ           statemachine.Type
	stateNumber   int
	symbolSetSize int
	likelihood    float64
}

// Type reports the variant tag.
func (b *base) Type() statemachine.Type { return b.typ }

// StateNumber reports the number of hidden states.
func (b *base) StateNumber() int { return b.stateNumber }

// SymbolSetSize reports the emission alphabet size.
func (b *base) SymbolSetSize() int { return b.symbolSetSize }

// Likelihood reports the log-likelihood recorded for the last pass.
func (b *base) Likelihood() float64 { return b.likelihood }

// SetLikelihood records the log-likelihood of a pass.
func (b *base) SetLikelihood(likelihood float64) { b.likelihood = likelihood }

// checkFinite reports whether a slice of expectations is NaN-free.
func checkFinite(values []float64) bool {
	for _, value := range values {
		if value != value {
			return false
		}
	}
	return true
}

// normalizeRows rescales each stateNumber-wide row of a flat matrix to sum
// to 1.
func normalizeRows(matrix []float64, stateNumber int) {
	for from := 0; from < stateNumber; from++ {
		row := matrix[from*stateNumber : (from+1)*stateNumber]
		total := 0.0
		for _, value := range row {
			total += value
		}
		for i := range row {
			row[i] /= total
		}
	}
}

// normalizeVector rescales a vector to sum to 1.
func normalizeVector(vector []float64) {
	total := 0.0
	for _, value := range vector {
		total += value
	}
	for i := range vector {
		vector[i] /= total
	}
}

// writeHeader writes the line-0 header shared by all formats.
func writeHeader(w io.Writer, b *base) error {
	_, err := fmt.Fprintf(w, "%d\t%d\t%d\t\n", int(b.typ), b.stateNumber, b.symbolSetSize)
	return err
}

// writeValues writes tab-terminated floats without a newline.
func writeValues(w io.Writer, values []float64) error {
	builder := &strings.Builder{}
	for _, value := range values {
		fmt.Fprintf(builder, "%f\t", value)
	}
	_, err := io.WriteString(w, builder.String())
	return err
}

// lineFields scans one line and splits it on whitespace, tagging errors
// with what the line was supposed to hold.
func lineFields(scanner *bufio.Scanner, what string) ([]string, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %s", ErrMalformedFile, what, err)
		}
		return nil, fmt.Errorf("%w: missing %s line", ErrMalformedFile, what)
	}
	return strings.Fields(scanner.Text()), nil
}

// parseFloats parses every field of a line into out, which sets the
// expected token count.
func parseFloats(fields []string, out []float64, what string) error {
	if len(fields) != len(out) {
		return fmt.Errorf("%w: %s has %d values, expected %d", ErrMalformedFile, what, len(fields), len(out))
	}
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return fmt.Errorf("%w: failed to parse %s value %d (%q)", ErrMalformedFile, what, i, field)
		}
		out[i] = value
	}
	return nil
}

func parseHeaderInt(fields []string, position int, what string) (int, error) {
	if position >= len(fields) {
		return 0, fmt.Errorf("%w: header is missing the %s field", ErrMalformedFile, what)
	}
	value, err := strconv.Atoi(fields[position])
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse %s (%q)", ErrMalformedFile, what, fields[position])
	}
	return value, nil
}

// ReadFile loads a serialized container of the expected variant from disk.
// ThreeStateHDP files are loaded without an HDP receiver; use ReadHDP when
// the assignments should be fed onward.
func ReadFile(path string, typ statemachine.Type) (Hmm, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var h Hmm
	switch typ {
	case statemachine.FiveState, statemachine.FiveStateAsymmetric:
		h, err = ReadSymbol(file)
	case statemachine.ThreeState, statemachine.ThreeStateAsymmetric:
		h, err = ReadContinuousPair(file)
	case statemachine.ThreeStateHDP:
		h, err = ReadHDP(file, nil)
	case statemachine.Vanilla:
		h, err = ReadVanilla(file)
	default:
		return nil, fmt.Errorf("%w: no loader for %s", ErrWrongModelType, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// WriteFile serializes a container to disk. When the container holds NaN
// transitions the file is left holding only the header line and
// ErrNonFiniteParameter is returned so the driver can discard the EM step.
func WriteFile(path string, h Hmm) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writeErr := h.WriteTo(file)
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// NewEmpty builds an empty container for a variant with every expectation
// initialized to pseudocount. HDP containers need a threshold; build them
// with NewHDP directly.
func NewEmpty(typ statemachine.Type, pseudocount float64) (Hmm, error) {
	switch typ {
	case statemachine.FiveState, statemachine.FiveStateAsymmetric:
		return NewSymbol(typ, pseudocount, 5, symbolAlphabetSize)
	case statemachine.ThreeState, statemachine.ThreeStateAsymmetric:
		return NewContinuousPair(typ, pseudocount, 3, kmerAlphabetSize)
	case statemachine.Vanilla:
		return NewVanilla(pseudocount, 3, kmerAlphabetSize)
	}
	return nil, fmt.Errorf("%w: no empty constructor for %s", ErrWrongModelType, typ)
}

// LoadExpectations copies a normalized container's probabilities into the
// matching state machine, dispatching on the concrete pairing.
func LoadExpectations(sm statemachine.StateMachine, h Hmm) error {
	switch container := h.(type) {
	case *ContinuousPair:
		machine, ok := sm.(*statemachine.ThreeStateMachine)
		if !ok {
			return fmt.Errorf("%w: ContinuousPair loads into a three-state machine", ErrWrongModelType)
		}
		return container.LoadInto(machine)
	case *HDP:
		machine, ok := sm.(*statemachine.ThreeStateMachine)
		if !ok {
			return fmt.Errorf("%w: HDP loads into a three-state machine", ErrWrongModelType)
		}
		return container.LoadInto(machine)
	case *Vanilla:
		machine, ok := sm.(*statemachine.VanillaMachine)
		if !ok {
			return fmt.Errorf("%w: Vanilla loads into a vanilla machine", ErrWrongModelType)
		}
		return container.LoadInto(machine)
	case *Symbol:
		machine, ok := sm.(*statemachine.FiveStateMachine)
		if !ok {
			return fmt.Errorf("%w: Symbol loads into a five-state machine", ErrWrongModelType)
		}
		if container.Type() == statemachine.FiveStateAsymmetric {
			return machine.LoadAsymmetric(container)
		}
		return machine.LoadSymmetric(container)
	}
	return fmt.Errorf("%w: unknown container", ErrWrongModelType)
}
