/*
Package pore holds the pore model: the per-k-mer Gaussian parameters that
characterize how a sequencing chemistry translates k-mers into ionic current.

A model table stores, for every k-mer, the mean and standard deviation of the
event level (pA) and of the event fluctuation (noise), preceded by a single
correlation coefficient between level and fluctuation. The layout is flat:

	[correlation, (levelMean, levelSD, fluctMean, fluctSD) x NumKmers]

for a total of 1 + 4*NumKmers values. A full model carries two such tables -
the match table and a scaled copy used for the extra-event emission - plus 30
learned skip-probability bins.

The on-disk format is three whitespace-delimited lines:

	line 1: correlation followed by the 4 parameters per k-mer
	line 2: the 30 skip bins
	line 3: correlation followed by the scaled parameters per k-mer

Skip bins discretize the expected-current difference between consecutive
k-mers in 0.5 pA steps. A large jump between neighboring k-mers makes a
skipped event easy to detect, so the skip probability is learned per bin.
*/
package pore

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bebop/nanopair/kmer"
)

// ModelParams is the number of Gaussian parameters stored per k-mer.
const ModelParams = 4

// NumSkipBins is the number of 0.5 pA bins for the skip probability table.
const NumSkipBins = 30

// TableSize is the flat length of one model table.
const TableSize = 1 + ModelParams*kmer.NumKmers

// Table is one flat pore-model table.
type Table []float64

// NewTable returns a zeroed table of the canonical size.
func NewTable() Table {
	return make(Table, TableSize)
}

// Correlation returns the level/fluctuation correlation coefficient.
func (t Table) Correlation() float64 {
	return t[0]
}

// LevelMean returns the expected event level for a k-mer index. Out-of-range
// sentinel indices (N-containing k-mers) return 0.
func (t Table) LevelMean(kmerIndex int) float64 {
	if kmerIndex < 0 || kmerIndex >= kmer.NumKmers {
		return 0.0
	}
	return t[1+kmerIndex*ModelParams]
}

// LevelSD returns the event level standard deviation for a k-mer index.
func (t Table) LevelSD(kmerIndex int) float64 {
	if kmerIndex < 0 || kmerIndex >= kmer.NumKmers {
		return 0.0
	}
	return t[1+kmerIndex*ModelParams+1]
}

// FluctuationMean returns the event noise mean for a k-mer index.
func (t Table) FluctuationMean(kmerIndex int) float64 {
	if kmerIndex < 0 || kmerIndex >= kmer.NumKmers {
		return 0.0
	}
	return t[1+kmerIndex*ModelParams+2]
}

// FluctuationSD returns the event noise standard deviation for a k-mer index.
func (t Table) FluctuationSD(kmerIndex int) float64 {
	if kmerIndex < 0 || kmerIndex >= kmer.NumKmers {
		return 0.0
	}
	return t[1+kmerIndex*ModelParams+3]
}

// Scale rescales the table in place with the per-read calibration
// parameters. Event detection drifts per read, so the reference model is
// affinely adjusted before alignment:
//
//	levelMean = levelMean*scale + shift
//	levelSD   = levelSD*var
//	fluctMean = fluctMean*scaleSD
//	fluctSD   = fluctSD*sqrt(scaleSD^3/varSD)
func (t Table) Scale(scale, shift, variance, scaleSD, varianceSD float64) {
	for i := 1; i < TableSize; i += ModelParams {
		t[i] = t[i]*scale + shift
		t[i+1] = t[i+1] * variance
		t[i+2] = t[i+2] * scaleSD
		t[i+3] = t[i+3] * math.Sqrt(math.Pow(scaleSD, 3.0)/varianceSD)
	}
}

// BinForDelta returns the skip bin for an absolute expected-current
// difference, clamped to the last bin.
func BinForDelta(delta float64) int {
	bin := int(math.Abs(delta) / 0.5)
	if bin >= NumSkipBins {
		bin = NumSkipBins - 1
	}
	return bin
}

// SkipBin returns the skip bin for a window of Length+1 bases covering two
// consecutive overlapping k-mers. The bin is driven by how far apart the
// model expects their current levels to be.
func SkipBin(match Table, window string) int {
	previous := kmer.Index(window[:kmer.Length])
	current := kmer.Index(window[1 : kmer.Length+1])
	delta := match.LevelMean(current) - match.LevelMean(previous)
	return BinForDelta(delta)
}

// Model is a complete pore model: the match table, the learned skip bins and
// the scaled table for the extra-event emission.
type Model struct {
	Match    Table
	SkipBins []float64
	Scaled   Table
}

// NewModel returns a zeroed model.
func NewModel() *Model {
	return &Model{
		Match:    NewTable(),
		SkipBins: make([]float64, NumSkipBins),
		Scaled:   NewTable(),
	}
}

// Read parses the three-line pore model format.
func Read(r io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	model := NewModel()

	matchLine, err := readFloatLine(scanner, "match table")
	if err != nil {
		return nil, err
	}
	if len(matchLine) != TableSize {
		return nil, fmt.Errorf("pore model match table has %d values, expected %d", len(matchLine), TableSize)
	}
	copy(model.Match, matchLine)

	skipLine, err := readFloatLine(scanner, "skip bins")
	if err != nil {
		return nil, err
	}
	if len(skipLine) != NumSkipBins {
		return nil, fmt.Errorf("pore model has %d skip bins, expected %d", len(skipLine), NumSkipBins)
	}
	copy(model.SkipBins, skipLine)

	scaledLine, err := readFloatLine(scanner, "scaled table")
	if err != nil {
		return nil, err
	}
	if len(scaledLine) != TableSize {
		return nil, fmt.Errorf("pore model scaled table has %d values, expected %d", len(scaledLine), TableSize)
	}
	copy(model.Scaled, scaledLine)

	return model, nil
}

// WriteTo writes the three-line pore model format.
func (m *Model) WriteTo(w io.Writer) error {
	if err := writeFloatLine(w, m.Match); err != nil {
		return err
	}
	if err := writeFloatLine(w, m.SkipBins); err != nil {
		return err
	}
	return writeFloatLine(w, m.Scaled)
}

func readFloatLine(scanner *bufio.Scanner, what string) ([]float64, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("pore model is missing the %s line", what)
	}
	fields := strings.Fields(scanner.Text())
	values := make([]float64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s value %d (%q): %w", what, i, field, err)
		}
		values[i] = value
	}
	return values, nil
}

func writeFloatLine(w io.Writer, values []float64) error {
	builder := &strings.Builder{}
	for _, value := range values {
		fmt.Fprintf(builder, "%f\t", value)
	}
	builder.WriteString("\n")
	_, err := io.WriteString(w, builder.String())
	return err
}
