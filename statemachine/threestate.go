package statemachine

import "fmt"

// ThreeStateMachine is the three-state pair-HMM: match plus one gap state
// per axis. With k-mer emission functions and a learned per-k-mer gap table
// it is the workhorse model for event-to-sequence training. Transition
// fields are log-space.
type ThreeStateMachine struct {
	typ              Type
	parameterSetSize int

	MatchContinue float64
	MatchFromGapX float64
	MatchFromGapY float64
	GapOpenX      float64
	GapOpenY      float64
	GapExtendX    float64
	GapExtendY    float64
	GapSwitchToX  float64
	GapSwitchToY  float64

	MatchProbs []float64
	GapXProbs  []float64
	GapYProbs  []float64

	getGapXProb  GapProbFunc
	getGapYProb  GapProbFunc
	getMatchProb MatchProbFunc
}

const defaultThreeStateGapOpen = -4.21256642 // (1 - match)/2 = 0.0148083151744969

// NewThreeStateMachine builds a three-state machine with default transition
// constants and zeroed emission tables.
func NewThreeStateMachine(typ Type, parameterSetSize int, gapX, gapY GapProbFunc, match MatchProbFunc) (*ThreeStateMachine, error) {
	if typ != ThreeState && typ != ThreeStateAsymmetric && typ != ThreeStateHDP {
		return nil, fmt.Errorf("three-state machine: %w: got %s", ErrWrongModelType, typ)
	}
	return &ThreeStateMachine{
		typ:              typ,
		parameterSetSize: parameterSetSize,

		MatchContinue: defaultMatchContinue,
		MatchFromGapX: defaultMatchFromShortGap,
		MatchFromGapY: defaultMatchFromShortGap,
		GapOpenX:      defaultThreeStateGapOpen,
		GapOpenY:      defaultThreeStateGapOpen,
		GapExtendX:    defaultGapShortExtend,
		GapExtendY:    defaultGapShortExtend,
		GapSwitchToX:  defaultGapShortSwitch,
		GapSwitchToY:  defaultGapShortSwitch,

		MatchProbs: make([]float64, parameterSetSize*parameterSetSize),
		GapXProbs:  make([]float64, parameterSetSize),
		GapYProbs:  make([]float64, parameterSetSize),

		getGapXProb:  gapX,
		getGapYProb:  gapY,
		getMatchProb: match,
	}, nil
}

// SetDefaultSymbolEmissions fills the emission tables with the trained
// single-nucleotide defaults. The machine must be sized for 4 symbols.
func (sm *ThreeStateMachine) SetDefaultSymbolEmissions() {
	copy(sm.MatchProbs, defaultSymbolMatchTable())
	copy(sm.GapXProbs, defaultSymbolGapTable())
	copy(sm.GapYProbs, defaultSymbolGapTable())
}

// Type reports the variant tag.
func (sm *ThreeStateMachine) Type() Type { return sm.typ }

// StateNumber reports three.
func (sm *ThreeStateMachine) StateNumber() int { return 3 }

// ParameterSetSize reports the emission alphabet size.
func (sm *ThreeStateMachine) ParameterSetSize() int { return sm.parameterSetSize }

// StartStateProb admits the lattice only through the match state.
func (sm *ThreeStateMachine) StartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == Match {
		return 0
	}
	return LogZero
}

// RaggedStartStateProb admits the lattice through either gap state.
func (sm *ThreeStateMachine) RaggedStartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == ShortGapX || state == ShortGapY {
		return 0
	}
	return LogZero
}

// EndStateProb scores exiting at a state like transitioning to a match.
func (sm *ThreeStateMachine) EndStateProb(state State) float64 {
	stateCheck(sm, state)
	switch state {
	case Match:
		return sm.MatchContinue
	case ShortGapX:
		return sm.MatchFromGapX
	case ShortGapY:
		return sm.MatchFromGapY
	}
	return 0.0
}

// RaggedEndStateProb scores exiting at a state like continuing a gap.
func (sm *ThreeStateMachine) RaggedEndStateProb(state State) float64 {
	stateCheck(sm, state)
	switch state {
	case Match:
		return (sm.GapOpenX + sm.GapOpenY) / 2.0
	case ShortGapX:
		return sm.GapExtendX
	case ShortGapY:
		return sm.GapExtendY
	}
	return 0.0
}

// CellCalculate visits the nine three-state edges for one cell.
func (sm *ThreeStateMachine) CellCalculate(current, lower, middle, upper []float64, obs Observation, do TransitionFunc) {
	if lower != nil {
		eP := sm.getGapXProb(sm.GapXProbs, obs.KmerX)
		do(lower, current, Match, ShortGapX, eP, sm.GapOpenX)
		do(lower, current, ShortGapX, ShortGapX, eP, sm.GapExtendX)
		do(lower, current, ShortGapY, ShortGapX, eP, sm.GapSwitchToX)
	}
	if middle != nil {
		eP := sm.getMatchProb(sm.MatchProbs, obs.KmerX, obs.KmerY)
		do(middle, current, Match, Match, eP, sm.MatchContinue)
		do(middle, current, ShortGapX, Match, eP, sm.MatchFromGapX)
		do(middle, current, ShortGapY, Match, eP, sm.MatchFromGapY)
	}
	if upper != nil {
		eP := sm.getGapYProb(sm.GapYProbs, obs.KmerY)
		do(upper, current, Match, ShortGapY, eP, sm.GapOpenY)
		do(upper, current, ShortGapY, ShortGapY, eP, sm.GapExtendY)
		do(upper, current, ShortGapX, ShortGapY, eP, sm.GapSwitchToY)
	}
}
