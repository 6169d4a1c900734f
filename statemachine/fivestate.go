package statemachine

import (
	"fmt"
	"math"
)

// ExpectationSource is what a five-state machine loads its parameters from:
// an expectation container that has been normalized, exposing transition and
// emission probabilities in linear space.
type ExpectationSource interface {
	Type() Type
	StateNumber() int
	SymbolSetSize() int
	Transition(from, to State) float64
	Emission(state State, x, y int) float64
}

// FiveStateMachine is the five-state symbol pair-HMM, with separate short
// and long gap states on each axis. Transition fields are log-space.
//
// The cell kernel deliberately omits the short<->long and short X<->Y switch
// edges. The expectation containers still carry accumulators for them so the
// serialized matrix keeps its full shape, but the DP never consults them.
type FiveStateMachine struct {
	typ              Type
	parameterSetSize int

	MatchContinue      float64
	MatchFromShortGapX float64
	MatchFromLongGapX  float64
	GapShortOpenX      float64
	GapShortExtendX    float64
	GapShortSwitchToX  float64
	GapLongOpenX       float64
	GapLongExtendX     float64
	GapLongSwitchToX   float64
	MatchFromShortGapY float64
	MatchFromLongGapY  float64
	GapShortOpenY      float64
	GapShortExtendY    float64
	GapShortSwitchToY  float64
	GapLongOpenY       float64
	GapLongExtendY     float64
	GapLongSwitchToY   float64

	// MatchProbs is parameterSetSize^2 log-probabilities; GapXProbs and
	// GapYProbs are parameterSetSize each.
	MatchProbs []float64
	GapXProbs  []float64
	GapYProbs  []float64

	getGapXProb  GapProbFunc
	getGapYProb  GapProbFunc
	getMatchProb MatchProbFunc
}

// Default transition constants, trained on real alignments.
const (
	defaultMatchContinue      = -0.030064059121770816 // 0.9703833696510062
	defaultMatchFromShortGap  = -1.272871422049609    // 1 - gapExtend - gapSwitch = 0.280026392297485
	defaultMatchFromLongGap   = -5.673280173170473    // 1 - gapExtend = 0.00343657420938
	defaultGapShortOpen       = -4.34381910900448     // 0.0129868352330243
	defaultGapShortExtend     = -0.3388262689231553   // 0.7126062401851738
	defaultGapShortSwitch     = -4.910694825551255    // 0.0073673675173412815
	defaultGapLongOpen        = -6.30810595366929     // (1 - match - 2*gapOpenShort)/2 = 0.001821479941473
	defaultGapLongExtend      = -0.003442492794189331 // 0.99656342579062
	defaultGapLongSwitch      = -6.30810595366929
)

// NewFiveStateMachine builds a five-state machine with default transition
// constants and zeroed emission tables sized for parameterSetSize symbols.
func NewFiveStateMachine(typ Type, parameterSetSize int, gapX, gapY GapProbFunc, match MatchProbFunc) (*FiveStateMachine, error) {
	if typ != FiveState && typ != FiveStateAsymmetric {
		return nil, fmt.Errorf("five-state machine: %w: got %s", ErrWrongModelType, typ)
	}
	sm := &FiveStateMachine{
		typ:              typ,
		parameterSetSize: parameterSetSize,

		MatchContinue:      defaultMatchContinue,
		MatchFromShortGapX: defaultMatchFromShortGap,
		MatchFromLongGapX:  defaultMatchFromLongGap,
		GapShortOpenX:      defaultGapShortOpen,
		GapShortExtendX:    defaultGapShortExtend,
		GapShortSwitchToX:  defaultGapShortSwitch,
		GapLongOpenX:       defaultGapLongOpen,
		GapLongExtendX:     defaultGapLongExtend,
		GapLongSwitchToX:   defaultGapLongSwitch,

		MatchProbs: make([]float64, parameterSetSize*parameterSetSize),
		GapXProbs:  make([]float64, parameterSetSize),
		GapYProbs:  make([]float64, parameterSetSize),

		getGapXProb:  gapX,
		getGapYProb:  gapY,
		getMatchProb: match,
	}
	// symmetric in X and Y to start
	sm.MatchFromShortGapY = sm.MatchFromShortGapX
	sm.MatchFromLongGapY = sm.MatchFromLongGapX
	sm.GapShortOpenY = sm.GapShortOpenX
	sm.GapShortExtendY = sm.GapShortExtendX
	sm.GapShortSwitchToY = sm.GapShortSwitchToX
	sm.GapLongOpenY = sm.GapLongOpenX
	sm.GapLongExtendY = sm.GapLongExtendX
	sm.GapLongSwitchToY = sm.GapLongSwitchToX
	return sm, nil
}

// SetDefaultSymbolEmissions fills the emission tables with the trained
// single-nucleotide defaults. The machine must be sized for 4 symbols.
func (sm *FiveStateMachine) SetDefaultSymbolEmissions() {
	copy(sm.MatchProbs, defaultSymbolMatchTable())
	copy(sm.GapXProbs, defaultSymbolGapTable())
	copy(sm.GapYProbs, defaultSymbolGapTable())
}

// Type reports the variant tag.
func (sm *FiveStateMachine) Type() Type { return sm.typ }

// StateNumber reports five.
func (sm *FiveStateMachine) StateNumber() int { return 5 }

// ParameterSetSize reports the emission alphabet size.
func (sm *FiveStateMachine) ParameterSetSize() int { return sm.parameterSetSize }

// StartStateProb admits the lattice only through the match state.
func (sm *FiveStateMachine) StartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == Match {
		return 0
	}
	return LogZero
}

// RaggedStartStateProb admits the lattice through the long gap states.
func (sm *FiveStateMachine) RaggedStartStateProb(state State) float64 {
	stateCheck(sm, state)
	if state == LongGapX || state == LongGapY {
		return 0
	}
	return LogZero
}

// EndStateProb scores exiting at a state like transitioning to a match.
func (sm *FiveStateMachine) EndStateProb(state State) float64 {
	stateCheck(sm, state)
	switch state {
	case Match:
		return sm.MatchContinue
	case ShortGapX:
		return sm.MatchFromShortGapX
	case ShortGapY:
		return sm.MatchFromShortGapY
	case LongGapX:
		return sm.MatchFromLongGapX
	case LongGapY:
		return sm.MatchFromLongGapY
	}
	return 0.0
}

// RaggedEndStateProb scores exiting at a state like continuing a long gap.
func (sm *FiveStateMachine) RaggedEndStateProb(state State) float64 {
	stateCheck(sm, state)
	switch state {
	case Match:
		return sm.GapLongOpenX
	case ShortGapX:
		return sm.GapLongOpenX
	case ShortGapY:
		return sm.GapLongOpenY
	case LongGapX:
		return sm.GapLongExtendX
	case LongGapY:
		return sm.GapLongExtendY
	}
	return 0.0
}

// CellCalculate visits the five-state edges for one cell. Short<->long and
// X<->Y switch edges are not visited.
func (sm *FiveStateMachine) CellCalculate(current, lower, middle, upper []float64, obs Observation, do TransitionFunc) {
	if lower != nil {
		eP := sm.getGapXProb(sm.GapXProbs, obs.KmerX)
		do(lower, current, Match, ShortGapX, eP, sm.GapShortOpenX)
		do(lower, current, ShortGapX, ShortGapX, eP, sm.GapShortExtendX)
		do(lower, current, Match, LongGapX, eP, sm.GapLongOpenX)
		do(lower, current, LongGapX, LongGapX, eP, sm.GapLongExtendX)
	}
	if middle != nil {
		eP := sm.getMatchProb(sm.MatchProbs, obs.KmerX, obs.KmerY)
		do(middle, current, Match, Match, eP, sm.MatchContinue)
		do(middle, current, ShortGapX, Match, eP, sm.MatchFromShortGapX)
		do(middle, current, ShortGapY, Match, eP, sm.MatchFromShortGapY)
		do(middle, current, LongGapX, Match, eP, sm.MatchFromLongGapX)
		do(middle, current, LongGapY, Match, eP, sm.MatchFromLongGapY)
	}
	if upper != nil {
		eP := sm.getGapYProb(sm.GapYProbs, obs.KmerY)
		do(upper, current, Match, ShortGapY, eP, sm.GapShortOpenY)
		do(upper, current, ShortGapY, ShortGapY, eP, sm.GapShortExtendY)
		do(upper, current, Match, LongGapY, eP, sm.GapLongOpenY)
		do(upper, current, LongGapY, LongGapY, eP, sm.GapLongExtendY)
	}
}

// LoadAsymmetric copies normalized expectations into the machine, keeping
// the X and Y axes independent. If EM drove a short extend probability above
// its long sibling, the long and short parameters for that axis are swapped
// so long gaps remain the stickier ones.
func (sm *FiveStateMachine) LoadAsymmetric(src ExpectationSource) error {
	if src.Type() != FiveStateAsymmetric {
		return fmt.Errorf("five-state asymmetric load: %w: got %s", ErrWrongModelType, src.Type())
	}
	sm.MatchContinue = math.Log(src.Transition(Match, Match))

	sm.MatchFromShortGapX = math.Log(src.Transition(ShortGapX, Match))
	sm.MatchFromLongGapX = math.Log(src.Transition(LongGapX, Match))
	sm.GapShortOpenX = math.Log(src.Transition(Match, ShortGapX))
	sm.GapShortExtendX = math.Log(src.Transition(ShortGapX, ShortGapX))
	sm.GapShortSwitchToX = math.Log(src.Transition(ShortGapY, ShortGapX))
	sm.GapLongOpenX = math.Log(src.Transition(Match, LongGapX))
	sm.GapLongExtendX = math.Log(src.Transition(LongGapX, LongGapX))
	sm.GapLongSwitchToX = math.Log(src.Transition(LongGapY, LongGapX))
	sm.switchLongShortX()

	sm.MatchFromShortGapY = math.Log(src.Transition(ShortGapY, Match))
	sm.MatchFromLongGapY = math.Log(src.Transition(LongGapY, Match))
	sm.GapShortOpenY = math.Log(src.Transition(Match, ShortGapY))
	sm.GapShortExtendY = math.Log(src.Transition(ShortGapY, ShortGapY))
	sm.GapShortSwitchToY = math.Log(src.Transition(ShortGapX, ShortGapY))
	sm.GapLongOpenY = math.Log(src.Transition(Match, LongGapY))
	sm.GapLongExtendY = math.Log(src.Transition(LongGapY, LongGapY))
	sm.GapLongSwitchToY = math.Log(src.Transition(LongGapX, LongGapY))
	sm.switchLongShortY()

	loadMatchProbs(sm.MatchProbs, src, Match)
	loadGapProbs(sm.GapXProbs, src, []State{ShortGapX, LongGapX}, nil)
	loadGapProbs(sm.GapYProbs, src, nil, []State{ShortGapY, LongGapY})
	return nil
}

// LoadSymmetric copies normalized expectations into the machine, averaging
// the X and Y axes and applying the same long/short safeguard.
func (sm *FiveStateMachine) LoadSymmetric(src ExpectationSource) error {
	if src.Type() != FiveState {
		return fmt.Errorf("five-state symmetric load: %w: got %s", ErrWrongModelType, src.Type())
	}
	sm.MatchContinue = math.Log(src.Transition(Match, Match))
	sm.MatchFromShortGapX = math.Log(
		(src.Transition(ShortGapX, Match) + src.Transition(ShortGapY, Match)) / 2)
	sm.MatchFromLongGapX = math.Log(
		(src.Transition(LongGapX, Match) + src.Transition(LongGapY, Match)) / 2)
	sm.GapShortOpenX = math.Log(
		(src.Transition(Match, ShortGapX) + src.Transition(Match, ShortGapY)) / 2)
	sm.GapShortExtendX = math.Log(
		(src.Transition(ShortGapX, ShortGapX) + src.Transition(ShortGapY, ShortGapY)) / 2)
	sm.GapShortSwitchToX = math.Log(
		(src.Transition(ShortGapX, ShortGapY) + src.Transition(ShortGapY, ShortGapX)) / 2)
	sm.GapLongOpenX = math.Log(
		(src.Transition(Match, LongGapX) + src.Transition(Match, LongGapY)) / 2)
	sm.GapLongExtendX = math.Log(
		(src.Transition(LongGapX, LongGapX) + src.Transition(LongGapY, LongGapY)) / 2)
	sm.GapLongSwitchToX = math.Log(
		(src.Transition(LongGapX, LongGapY) + src.Transition(LongGapY, LongGapX)) / 2)
	sm.switchLongShortX()

	sm.MatchFromShortGapY = sm.MatchFromShortGapX
	sm.MatchFromLongGapY = sm.MatchFromLongGapX
	sm.GapShortOpenY = sm.GapShortOpenX
	sm.GapShortExtendY = sm.GapShortExtendX
	sm.GapShortSwitchToY = sm.GapShortSwitchToX
	sm.GapLongOpenY = sm.GapLongOpenX
	sm.GapLongExtendY = sm.GapLongExtendX
	sm.GapLongSwitchToY = sm.GapLongSwitchToX

	loadMatchProbsSymmetrically(sm.MatchProbs, src, Match)
	xGapStates := []State{ShortGapX, LongGapX}
	yGapStates := []State{ShortGapY, LongGapY}
	loadGapProbs(sm.GapXProbs, src, xGapStates, yGapStates)
	loadGapProbs(sm.GapYProbs, src, xGapStates, yGapStates)
	return nil
}

// switchLongShortX swaps the long and short gap parameters on the X axis if
// EM left the short state extending more than the long one.
func (sm *FiveStateMachine) switchLongShortX() {
	if sm.GapShortExtendX > sm.GapLongExtendX {
		sm.GapShortExtendX, sm.GapLongExtendX = sm.GapLongExtendX, sm.GapShortExtendX
		sm.MatchFromShortGapX, sm.MatchFromLongGapX = sm.MatchFromLongGapX, sm.MatchFromShortGapX
		sm.GapShortOpenX, sm.GapLongOpenX = sm.GapLongOpenX, sm.GapShortOpenX
		sm.GapShortSwitchToX, sm.GapLongSwitchToX = sm.GapLongSwitchToX, sm.GapShortSwitchToX
	}
}

func (sm *FiveStateMachine) switchLongShortY() {
	if sm.GapShortExtendY > sm.GapLongExtendY {
		sm.GapShortExtendY, sm.GapLongExtendY = sm.GapLongExtendY, sm.GapShortExtendY
		sm.MatchFromShortGapY, sm.MatchFromLongGapY = sm.MatchFromLongGapY, sm.MatchFromShortGapY
		sm.GapShortOpenY, sm.GapLongOpenY = sm.GapLongOpenY, sm.GapShortOpenY
		sm.GapShortSwitchToY, sm.GapLongSwitchToY = sm.GapLongSwitchToY, sm.GapShortSwitchToY
	}
}

// loadMatchProbs fills a match table with the log of the accumulated match
// emission expectations.
func loadMatchProbs(table []float64, src ExpectationSource, matchState State) {
	size := src.SymbolSetSize()
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			table[x*size+y] = math.Log(src.Emission(matchState, x, y))
		}
	}
}

// loadMatchProbsSymmetrically fills a match table averaging the (x,y) and
// (y,x) expectations.
func loadMatchProbsSymmetrically(table []float64, src ExpectationSource, matchState State) {
	size := src.SymbolSetSize()
	for x := 0; x < size; x++ {
		table[x*size+x] = math.Log(src.Emission(matchState, x, x))
		for y := x + 1; y < size; y++ {
			averaged := math.Log((src.Emission(matchState, x, y) + src.Emission(matchState, y, x)) / 2.0)
			table[x*size+y] = averaged
			table[y*size+x] = averaged
		}
	}
}

// loadGapProbs collapses the matrix emissions of the given gap states onto
// one axis, normalizes, and stores the log.
func loadGapProbs(table []float64, src ExpectationSource, xGapStates, yGapStates []State) {
	size := src.SymbolSetSize()
	for i := 0; i < size; i++ {
		table[i] = 0.0
	}
	for _, state := range xGapStates {
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				table[x] += src.Emission(state, x, y)
			}
		}
	}
	for _, state := range yGapStates {
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				table[y] += src.Emission(state, x, y)
			}
		}
	}
	total := 0.0
	for i := 0; i < size; i++ {
		total += table[i]
	}
	for i := 0; i < size; i++ {
		table[i] = math.Log(table[i] / total)
	}
}
