package hmm

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/bebop/nanopair/pore"
	"github.com/bebop/nanopair/statemachine"
)

// numSkipBinExpectations is the full skip-bin vector: 30 alpha (gap open)
// bins followed by their 30 beta (gap extend) companions.
const numSkipBinExpectations = 2 * pore.NumSkipBins

// Vanilla is the expectation container for the signal state machine. Its
// learned parameters are the skip-bin expectations; the match and scaled
// match pore-model tables are carried through iterations unchanged so a
// training run stays self-contained in one file.
type Vanilla struct {
	base
	skipBins         []float64
	matchModel       pore.Table
	scaledMatchModel pore.Table
}

// NewVanilla builds an empty container with every skip bin set to
// pseudocount and zeroed model tables.
func NewVanilla(pseudocount float64, stateNumber, symbolSetSize int) (*Vanilla, error) {
	v := &Vanilla{
		base: base{
			typ:           statemachine.Vanilla,
			stateNumber:   stateNumber,
			symbolSetSize: symbolSetSize,
		},
		skipBins:         make([]float64, numSkipBinExpectations),
		matchModel:       pore.NewTable(),
		scaledMatchModel: pore.NewTable(),
	}
	for i := range v.skipBins {
		v.skipBins[i] = pseudocount
	}
	return v, nil
}

// AddToEmission accumulates a skip-bin expectation. The state and y
// arguments are ignored; x is the bin index over the full 60-bin vector.
func (v *Vanilla) AddToEmission(state statemachine.State, bin, y int, p float64) {
	v.skipBins[bin] += p
}

// SetEmission overwrites a skip-bin expectation.
func (v *Vanilla) SetEmission(state statemachine.State, bin, y int, p float64) {
	v.skipBins[bin] = p
}

// Emission reads a skip-bin expectation.
func (v *Vanilla) Emission(state statemachine.State, bin, y int) float64 {
	return v.skipBins[bin]
}

// SkipBins exposes the full alpha+beta vector.
func (v *Vanilla) SkipBins() []float64 { return v.skipBins }

// Normalize rescales the alpha bins and the beta bins to sum to 1 as two
// separate groups of 30. The open and extend probabilities are distinct
// distributions over the same bins, so normalizing the 60 values together
// would couple them.
func (v *Vanilla) Normalize() {
	normalizeVector(v.skipBins[:pore.NumSkipBins])
	normalizeVector(v.skipBins[pore.NumSkipBins:])
}

// Randomize fills the skip bins with uniform random expectations and
// normalizes.
func (v *Vanilla) Randomize(rng *rand.Rand) {
	for i := range v.skipBins {
		v.skipBins[i] = rng.Float64()
	}
	v.Normalize()
}

// Merge adds another container's skip-bin accumulators into this one.
func (v *Vanilla) Merge(other *Vanilla) error {
	if other.symbolSetSize != v.symbolSetSize {
		return fmt.Errorf("merge: %w: symbol set %d into %d", ErrWrongModelType, other.symbolSetSize, v.symbolSetSize)
	}
	for i := range v.skipBins {
		v.skipBins[i] += other.skipBins[i]
	}
	v.likelihood += other.likelihood
	return nil
}

// ImplantMatchModels copies a machine's pore-model tables into the
// container so the next iteration's file carries them.
func (v *Vanilla) ImplantMatchModels(sm *statemachine.VanillaMachine) {
	copy(v.matchModel, sm.MatchTable)
	copy(v.scaledMatchModel, sm.ScaledTable)
}

// LoadInto copies the skip-bin expectations and the cached model tables
// into a vanilla machine.
func (v *Vanilla) LoadInto(sm *statemachine.VanillaMachine) error {
	if v.typ != statemachine.Vanilla {
		return fmt.Errorf("vanilla load: %w: got %s", ErrWrongModelType, v.typ)
	}
	copy(sm.SkipBins, v.skipBins)
	copy(sm.MatchTable, v.matchModel)
	copy(sm.ScaledTable, v.scaledMatchModel)
	return nil
}

// WriteTo serializes the container:
//
//	line 0: type \t stateNumber \t symbolSetSize
//	line 1: 60 skip bins \t likelihood
//	line 2: correlation and match model
//	line 3: correlation and scaled match model
//
// NaN skip bins suppress everything after the header.
func (v *Vanilla) WriteTo(w io.Writer) error {
	if err := writeHeader(w, &v.base); err != nil {
		return err
	}
	if !checkFinite(v.skipBins) {
		return fmt.Errorf("vanilla write: %w", ErrNonFiniteParameter)
	}
	if err := writeValues(w, v.skipBins); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%f\n", v.likelihood); err != nil {
		return err
	}
	if err := writeValues(w, v.matchModel); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := writeValues(w, v.scaledMatchModel); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadVanilla parses the four-line container format. The type tag must be
// Vanilla.
func ReadVanilla(r io.Reader) (*Vanilla, error) {
	scanner := newModelScanner(r)

	typ, stateNumber, symbolSetSize, err := readHeader(scanner)
	if err != nil {
		return nil, err
	}
	if typ != statemachine.Vanilla {
		return nil, fmt.Errorf("vanilla load: %w: got %s", ErrWrongModelType, typ)
	}
	v, err := NewVanilla(0.0, stateNumber, symbolSetSize)
	if err != nil {
		return nil, err
	}
	if err := readTransitionsLine(scanner, v.skipBins, &v.base.likelihood); err != nil {
		return nil, err
	}
	fields, err := lineFields(scanner, "match model")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(fields, v.matchModel, "match model"); err != nil {
		return nil, err
	}
	fields, err = lineFields(scanner, "scaled match model")
	if err != nil {
		return nil, err
	}
	if err := parseFloats(fields, v.scaledMatchModel, "scaled match model"); err != nil {
		return nil, err
	}
	return v, nil
}
