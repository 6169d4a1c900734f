package statemachine

import (
	"math"
	"testing"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/pore"
)

func TestSymbolEmissionFallbacks(t *testing.T) {
	match := defaultSymbolMatchTable()
	gap := defaultSymbolGapTable()
	if got := SymbolMatchProb(match, "N", "A"); math.Abs(got-math.Log(0.0625)) > 1e-6 {
		t.Errorf("N match emission = %f, want log(0.0625)", got)
	}
	if got := SymbolGapProb(gap, "N"); math.Abs(got-math.Log(0.25)) > 1e-6 {
		t.Errorf("N gap emission = %f, want log(0.25)", got)
	}
	if got := SymbolMatchProb(match, "A", "A"); got != emissionMatch {
		t.Errorf("A/A match emission = %f, want the match constant", got)
	}
	if got := SymbolMatchProb(match, "A", "G"); got != emissionTransition {
		t.Errorf("A/G should score as a transition, got %f", got)
	}
	if got := SymbolMatchProb(match, "A", "C"); got != emissionTransversion {
		t.Errorf("A/C should score as a transversion, got %f", got)
	}
}

func TestKmerEmissionLookups(t *testing.T) {
	gapTable := make([]float64, kmer.NumKmers)
	index := kmer.Index("ACGTAC")
	gapTable[index] = -2.5
	if got := KmerGapProb(gapTable, "ACGTAC"); got != -2.5 {
		t.Errorf("KmerGapProb = %f, want -2.5", got)
	}
}

func TestKmerGapProbPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("KmerGapProb should panic for an N-containing kmer")
		}
	}()
	KmerGapProb(make([]float64, kmer.NumKmers), "NNNNNN")
}

func TestGaussMatchProbPeaksAtModelMean(t *testing.T) {
	table := pore.NewTable()
	index := kmer.Index("AAAAAC")
	table[1+index*pore.ModelParams] = 65.0
	table[1+index*pore.ModelParams+1] = 2.0

	atMean := GaussMatchProb(table, "AAAAAAC", Event{Mean: 65.0})
	offMean := GaussMatchProb(table, "AAAAAAC", Event{Mean: 70.0})
	if atMean <= offMean {
		t.Errorf("density at the mean (%f) should beat density off the mean (%f)", atMean, offMean)
	}
	// At the mean the density is 1/(sd*sqrt(2pi)).
	want := -math.Log(2.0) - 0.5*math.Log(2*math.Pi)
	if math.Abs(atMean-want) > 1e-9 {
		t.Errorf("density at the mean = %f, want %f", atMean, want)
	}
}

func TestBivariateGaussReducesToProductWithoutCorrelation(t *testing.T) {
	table := pore.NewTable()
	index := kmer.Index("AAAAAC")
	base := 1 + index*pore.ModelParams
	table[0] = 0.0 // no correlation
	table[base] = 65.0
	table[base+1] = 2.0
	table[base+2] = 1.1
	table[base+3] = 0.3

	event := Event{Mean: 66.0, Noise: 1.3}
	got := BivariateGaussMatchProb(table, "AAAAAAC", event)

	zLevel := (event.Mean - 65.0) / 2.0
	zNoise := (event.Noise - 1.1) / 0.3
	level := logInvSqrtTwoPi - math.Log(2.0) - 0.5*zLevel*zLevel
	noise := logInvSqrtTwoPi - math.Log(0.3) - 0.5*zNoise*zNoise
	if math.Abs(got-(level+noise)) > 1e-9 {
		t.Errorf("uncorrelated bivariate density = %f, want product of marginals %f", got, level+noise)
	}
}

func TestBivariateGaussUsesCorrelation(t *testing.T) {
	table := pore.NewTable()
	index := kmer.Index("AAAAAC")
	base := 1 + index*pore.ModelParams
	table[base] = 65.0
	table[base+1] = 2.0
	table[base+2] = 1.1
	table[base+3] = 0.3

	event := Event{Mean: 66.0, Noise: 1.3}
	table[0] = 0.0
	uncorrelated := BivariateGaussMatchProb(table, "AAAAAAC", event)
	table[0] = 0.7
	correlated := BivariateGaussMatchProb(table, "AAAAAAC", event)
	if uncorrelated == correlated {
		t.Errorf("correlation coefficient should change the density")
	}
}
