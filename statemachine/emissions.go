package statemachine

import (
	"math"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/pore"
)

// GapProbFunc returns the log-probability of emitting a symbol from a gap
// state, given the machine's gap emission table.
type GapProbFunc func(table []float64, symbol string) float64

// MatchProbFunc returns the log-probability of co-emitting a symbol pair
// from the match state.
type MatchProbFunc func(table []float64, x, y string) float64

// SignalMatchProbFunc returns the log-density of an event against the pore
// model entry for the k-mer ending the given window of kmer.Length+1 bases.
type SignalMatchProbFunc func(table pore.Table, window string, event Event) float64

const (
	logQuarter      = -1.386294361 // log(0.25), uniform over one N
	logSixteenth    = -2.772588722 // log(0.0625), uniform over an N pair
	logInvSqrtTwoPi = -0.9189385332046727
	logInvTwoPi     = -1.8378770664093453
)

// SymbolGapProb looks up the gap emission for a single nucleotide. N falls
// back to a uniform log-probability.
func SymbolGapProb(table []float64, symbol string) float64 {
	index := kmer.BaseIndex(symbol[0])
	if index == 4 {
		return logQuarter
	}
	return table[index]
}

// SymbolMatchProb looks up the match emission for a nucleotide pair. A pair
// containing N falls back to a uniform log-probability.
func SymbolMatchProb(table []float64, x, y string) float64 {
	indexX := kmer.BaseIndex(x[0])
	indexY := kmer.BaseIndex(y[0])
	if indexX == 4 || indexY == 4 {
		return logSixteenth
	}
	return table[indexX*kmer.BaseCount+indexY]
}

// KmerGapProb looks up the gap emission for a k-mer.
func KmerGapProb(table []float64, symbol string) float64 {
	index := kmer.Index(symbol)
	if index < 0 || index >= len(table) {
		panic("statemachine: kmer index out of range for gap table")
	}
	return table[index]
}

// KmerMatchProb looks up the match emission for a k-mer pair.
func KmerMatchProb(table []float64, x, y string) float64 {
	indexX := kmer.Index(x)
	indexY := kmer.Index(y)
	return table[indexX*kmer.NumKmers+indexY]
}

// GaussMatchProb scores an event mean against the univariate level Gaussian
// of the current k-mer (the last kmer.Length bases of the window).
func GaussMatchProb(table pore.Table, window string, event Event) float64 {
	kmerIndex := kmer.Index(window[1 : kmer.Length+1])
	modelMean := table.LevelMean(kmerIndex)
	modelSD := table.LevelSD(kmerIndex)
	z := (event.Mean - modelMean) / modelSD
	return logInvSqrtTwoPi - math.Log(modelSD) - 0.5*z*z
}

// BivariateGaussMatchProb scores an event (mean, noise) pair against the
// full two-dimensional Gaussian of the current k-mer, using the table's
// level/fluctuation correlation coefficient.
func BivariateGaussMatchProb(table pore.Table, window string, event Event) float64 {
	kmerIndex := kmer.Index(window[1 : kmer.Length+1])
	rho := table.Correlation()
	rhoSq := rho * rho
	levelMean := table.LevelMean(kmerIndex)
	levelSD := table.LevelSD(kmerIndex)
	noiseMean := table.FluctuationMean(kmerIndex)
	noiseSD := table.FluctuationSD(kmerIndex)

	zLevel := (event.Mean - levelMean) / levelSD
	zNoise := (event.Noise - noiseMean) / noiseSD
	exponent := -1 / (2 * (1 - rhoSq)) * (zLevel*zLevel + zNoise*zNoise - 2*rho*zLevel*zNoise)
	normalizer := logInvTwoPi - math.Log(levelSD*noiseSD*math.Sqrt(1-rhoSq))
	return normalizer + exponent
}

// Default symbol emission constants, from alignments of real reads.
const (
	emissionMatch        = -2.1149196655034745 // log(0.12064298095701059)
	emissionTransversion = -4.5691014376830479 // log(0.010367271172731285)
	emissionTransition   = -3.9833860032220842 // log(0.01862247669752685)
	emissionGap          = -1.6094379124341003 // log(0.2)
)

// defaultSymbolMatchTable is the 4x4 match table over {A,C,G,T}, scoring
// transitions (A<->G, C<->T) above transversions.
func defaultSymbolMatchTable() []float64 {
	return []float64{
		emissionMatch, emissionTransversion, emissionTransition, emissionTransversion,
		emissionTransversion, emissionMatch, emissionTransversion, emissionTransition,
		emissionTransition, emissionTransversion, emissionMatch, emissionTransversion,
		emissionTransversion, emissionTransition, emissionTransversion, emissionMatch,
	}
}

func defaultSymbolGapTable() []float64 {
	return []float64{emissionGap, emissionGap, emissionGap, emissionGap}
}
