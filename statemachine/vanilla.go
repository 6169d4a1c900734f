package statemachine

import (
	"fmt"
	"math"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/pore"
)

// SkipProbFunc returns the linear skip probability for a window of
// kmer.Length+1 bases covering two consecutive k-mers.
type SkipProbFunc func(sm *VanillaMachine, window string) float64

// VanillaMachine aligns nanopore events directly against a k-mer sequence.
// Unlike the symbol machines it has no fixed transition matrix: the
// probability of skipping a k-mer depends on how far apart the pore model
// places the neighboring k-mers, so the transitions out of match are derived
// per cell from the skip-bin table, the extra-event extend probability and
// the match-to-extra-event fudge factor.
type VanillaMachine struct {
	typ              Type
	parameterSetSize int

	// MatchToExtraEventNotSkip is tau, P(match -> extra event | not skip).
	MatchToExtraEventNotSkip float64
	// ExtraEventExtend is a_ee, the extra-event self-loop probability.
	ExtraEventExtend float64

	// End-state probabilities, linear space, from a template nanopore run.
	EndMatchProb float64
	EndFromXProb float64
	EndFromYProb float64

	// MatchTable and ScaledTable are pore-model tables; ScaledTable feeds
	// the extra-event (Y gap) emission. SkipBins holds the 30 alpha (open)
	// bins followed by the 30 beta (extend) bins, linear space.
	MatchTable  pore.Table
	ScaledTable pore.Table
	SkipBins    []float64

	getSkipProb        SkipProbFunc
	getMatchProb       SignalMatchProbFunc
	getScaledMatchProb SignalMatchProbFunc
}

// Vanilla transition defaults for a template read.
const (
	defaultMatchToExtraEvent = 0.17
	defaultExtraEventExtend  = 0.55
	defaultEndMatchProb      = 0.79015888282447311  // stride
	defaultEndFromXProb      = 0.19652425498269727  // skip
	defaultEndFromYProb      = 0.013316862192910478 // stay
)

// DefaultSkipProb reads the alpha skip bin for the window from the
// machine's learned skip table.
func DefaultSkipProb(sm *VanillaMachine, window string) float64 {
	return sm.SkipBins[pore.SkipBin(sm.MatchTable, window)]
}

// NewVanillaMachine builds a vanilla signal machine with default transition
// parameters and zeroed model tables.
func NewVanillaMachine(typ Type, parameterSetSize int, skip SkipProbFunc, scaledMatch, match SignalMatchProbFunc) (*VanillaMachine, error) {
	if typ != Vanilla {
		return nil, fmt.Errorf("vanilla machine: %w: got %s", ErrWrongModelType, typ)
	}
	return &VanillaMachine{
		typ:              typ,
		parameterSetSize: parameterSetSize,

		MatchToExtraEventNotSkip: defaultMatchToExtraEvent,
		ExtraEventExtend:         defaultExtraEventExtend,
		EndMatchProb:             defaultEndMatchProb,
		EndFromXProb:             defaultEndFromXProb,
		EndFromYProb:             defaultEndFromYProb,

		MatchTable:  pore.NewTable(),
		ScaledTable: pore.NewTable(),
		SkipBins:    make([]float64, 2*pore.NumSkipBins),

		getSkipProb:        skip,
		getMatchProb:       match,
		getScaledMatchProb: scaledMatch,
	}, nil
}

// NewSignalMachine builds the standard event-to-sequence machine from a
// pore model: univariate Gaussian match emission, bivariate Gaussian
// extra-event emission, learned skip bins.
func NewSignalMachine(model *pore.Model) (*VanillaMachine, error) {
	sm, err := NewVanillaMachine(Vanilla, kmer.NumKmers, DefaultSkipProb, BivariateGaussMatchProb, GaussMatchProb)
	if err != nil {
		return nil, err
	}
	sm.LoadPoreModel(model)
	return sm, nil
}

// LoadPoreModel copies the model tables into the machine. The model data is
// copied, not shared; the caller keeps ownership of model.
func (sm *VanillaMachine) LoadPoreModel(model *pore.Model) {
	copy(sm.MatchTable, model.Match)
	copy(sm.ScaledTable, model.Scaled)
	copy(sm.SkipBins[:pore.NumSkipBins], model.SkipBins)
}

// Type reports the variant tag.
func (sm *VanillaMachine) Type() Type { return sm.typ }

// StateNumber reports three.
func (sm *VanillaMachine) StateNumber() int { return 3 }

// ParameterSetSize reports the number of k-mers in the pore model.
func (sm *VanillaMachine) ParameterSetSize() int { return sm.parameterSetSize }

// SkipProb returns the linear skip probability for a window.
func (sm *VanillaMachine) SkipProb(window string) float64 {
	return sm.getSkipProb(sm, window)
}

// StartStateProb admits the lattice only through the match state.
func (sm *VanillaMachine) StartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == Match {
		return 0
	}
	return LogZero
}

// RaggedStartStateProb admits the lattice through either gap state.
func (sm *VanillaMachine) RaggedStartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == ShortGapX || state == ShortGapY {
		return 0
	}
	return LogZero
}

// EndStateProb scores exiting at a state with the template end
// probabilities.
func (sm *VanillaMachine) EndStateProb(state State) float64 {
	stateCheck(sm, state)
	switch state {
	case Match:
		return math.Log(sm.EndMatchProb)
	case ShortGapX:
		return math.Log(sm.EndFromXProb)
	case ShortGapY:
		return math.Log(sm.EndFromYProb)
	}
	return 0.0
}

// RaggedEndStateProb mirrors EndStateProb; the vanilla machine does not
// distinguish ragged exits.
func (sm *VanillaMachine) RaggedEndStateProb(state State) float64 {
	return sm.EndStateProb(state)
}

// CellCalculate derives the transition probabilities for this cell from the
// skip bin of the k-mer pair, then visits the seven vanilla edges. There are
// no X<->Y transitions.
func (sm *VanillaMachine) CellCalculate(current, lower, middle, upper []float64, obs Observation, do TransitionFunc) {
	// from match
	aMX := sm.getSkipProb(sm, obs.KmerX)
	aME := (1 - aMX) * sm.MatchToExtraEventNotSkip
	aMM := 1.0 - aME - aMX
	// from the extra-event state
	aEE := sm.ExtraEventExtend
	aEM := 1.0 - aEE
	// from the skip state
	aXX := aMX
	aXM := 1.0 - aXX

	if lower != nil {
		do(lower, current, Match, ShortGapX, 0, math.Log(aMX))
		do(lower, current, ShortGapX, ShortGapX, 0, math.Log(aXX))
	}
	if middle != nil {
		eP := sm.getMatchProb(sm.MatchTable, obs.KmerX, obs.Event)
		do(middle, current, Match, Match, eP, math.Log(aMM))
		do(middle, current, ShortGapX, Match, eP, math.Log(aXM))
		do(middle, current, ShortGapY, Match, eP, math.Log(aEM))
	}
	if upper != nil {
		eP := sm.getScaledMatchProb(sm.ScaledTable, obs.KmerX, obs.Event)
		do(upper, current, Match, ShortGapY, eP, math.Log(aME))
		do(upper, current, ShortGapY, ShortGapY, eP, math.Log(aEE))
	}
}
