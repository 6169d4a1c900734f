package statemachine

import (
	"math"
	"testing"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/pore"
)

// edgeRecorder captures every edge visit from a cell kernel.
type edgeRecorder struct {
	edges       [][2]State
	emissions   []float64
	transitions []float64
}

func (r *edgeRecorder) record(from, to []float64, fromState, toState State, emission, transition float64) {
	r.edges = append(r.edges, [2]State{fromState, toState})
	r.emissions = append(r.emissions, emission)
	r.transitions = append(r.transitions, transition)
}

func (r *edgeRecorder) hasEdge(from, to State) bool {
	for _, edge := range r.edges {
		if edge[0] == from && edge[1] == to {
			return true
		}
	}
	return false
}

func TestLogAdd(t *testing.T) {
	got := LogAdd(math.Log(0.25), math.Log(0.75))
	if math.Abs(got) > 1e-12 {
		t.Errorf("LogAdd(log .25, log .75) = %f, want 0", got)
	}
	if got := LogAdd(LogZero, math.Log(0.5)); math.Abs(got-math.Log(0.5)) > 1e-12 {
		t.Errorf("LogAdd with LogZero should return the other argument, got %f", got)
	}
	if got := LogAdd(LogZero, LogZero); got != LogZero {
		t.Errorf("LogAdd(LogZero, LogZero) = %f", got)
	}
}

func TestFiveStateConstructorRejectsWrongType(t *testing.T) {
	_, err := NewFiveStateMachine(ThreeState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err == nil {
		t.Errorf("NewFiveStateMachine should reject a three-state type")
	}
}

func TestFiveStateStartAndEnd(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	if got := sm.StartStateProb(Match); got != 0 {
		t.Errorf("StartStateProb(Match) = %f, want 0", got)
	}
	for _, state := range []State{ShortGapX, ShortGapY, LongGapX, LongGapY} {
		if got := sm.StartStateProb(state); got != LogZero {
			t.Errorf("StartStateProb(%d) = %f, want LogZero", state, got)
		}
	}
	if got := sm.RaggedStartStateProb(LongGapX); got != 0 {
		t.Errorf("RaggedStartStateProb(LongGapX) = %f, want 0", got)
	}
	if got := sm.RaggedStartStateProb(ShortGapX); got != LogZero {
		t.Errorf("RaggedStartStateProb(ShortGapX) = %f, want LogZero", got)
	}
	if got := sm.EndStateProb(Match); got != sm.MatchContinue {
		t.Errorf("EndStateProb(Match) = %f, want MatchContinue", got)
	}
}

func TestFiveStateCellOmitsSwitchEdges(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	sm.SetDefaultSymbolEmissions()
	cell := make([]float64, 5)
	recorder := &edgeRecorder{}
	sm.CellCalculate(cell, cell, cell, cell, Observation{KmerX: "A", KmerY: "G"}, recorder.record)
	if len(recorder.edges) != 13 {
		t.Errorf("five-state cell should visit 13 edges, got %d", len(recorder.edges))
	}
	disabled := [][2]State{
		{ShortGapY, ShortGapX}, {ShortGapX, ShortGapY},
		{LongGapY, LongGapX}, {LongGapX, LongGapY},
	}
	for _, edge := range disabled {
		if recorder.hasEdge(edge[0], edge[1]) {
			t.Errorf("switch edge %v should be disabled in the kernel", edge)
		}
	}
	if !recorder.hasEdge(Match, LongGapX) || !recorder.hasEdge(LongGapY, LongGapY) {
		t.Errorf("long gap open/extend edges missing")
	}
}

func TestCellCalculateIsDeterministic(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	sm.SetDefaultSymbolEmissions()
	accumulate := func() []float64 {
		current := make([]float64, 5)
		neighbor := []float64{-0.1, -0.2, -0.3, -0.4, -0.5}
		sm.CellCalculate(current, neighbor, neighbor, neighbor,
			Observation{KmerX: "C", KmerY: "C"},
			func(from, to []float64, fromState, toState State, emission, transition float64) {
				to[toState] = LogAdd(to[toState], from[fromState]+emission+transition)
			})
		return current
	}
	first := accumulate()
	second := accumulate()
	for state := range first {
		if first[state] != second[state] {
			t.Errorf("cell state %d differs between identical runs: %f vs %f", state, first[state], second[state])
		}
	}
}

func TestThreeStateCellVisitsNineEdges(t *testing.T) {
	sm, err := NewThreeStateMachine(ThreeState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	sm.SetDefaultSymbolEmissions()
	cell := make([]float64, 3)
	recorder := &edgeRecorder{}
	sm.CellCalculate(cell, cell, cell, cell, Observation{KmerX: "A", KmerY: "T"}, recorder.record)
	if len(recorder.edges) != 9 {
		t.Errorf("three-state cell should visit 9 edges, got %d", len(recorder.edges))
	}
	if !recorder.hasEdge(ShortGapY, ShortGapX) || !recorder.hasEdge(ShortGapX, ShortGapY) {
		t.Errorf("three-state switch edges should be present")
	}
}

// stubExpectations is a minimal in-memory expectation source for load tests.
type stubExpectations struct {
	typ         Type
	transitions map[[2]State]float64
}

func (s *stubExpectations) Type() Type         { return s.typ }
func (s *stubExpectations) StateNumber() int   { return 5 }
func (s *stubExpectations) SymbolSetSize() int { return 4 }

func (s *stubExpectations) Transition(from, to State) float64 {
	if p, ok := s.transitions[[2]State{from, to}]; ok {
		return p
	}
	return 0.05
}
func (s *stubExpectations) Emission(state State, x, y int) float64 { return 1.0 / 16.0 }

func TestLoadAsymmetricSwapsDegenerateGapParameters(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveStateAsymmetric, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	src := &stubExpectations{
		typ: FiveStateAsymmetric,
		transitions: map[[2]State]float64{
			{ShortGapX, ShortGapX}: 0.9,
			{LongGapX, LongGapX}:   0.5,
			{ShortGapY, ShortGapY}: 0.2,
			{LongGapY, LongGapY}:   0.6,
		},
	}
	if err := sm.LoadAsymmetric(src); err != nil {
		t.Fatalf("LoadAsymmetric failed: %s", err)
	}
	// X axis was degenerate, so long and short were swapped.
	if math.Abs(sm.GapLongExtendX-math.Log(0.9)) > 1e-12 {
		t.Errorf("GapLongExtendX = %f, want log(0.9) after swap", sm.GapLongExtendX)
	}
	if math.Abs(sm.GapShortExtendX-math.Log(0.5)) > 1e-12 {
		t.Errorf("GapShortExtendX = %f, want log(0.5) after swap", sm.GapShortExtendX)
	}
	if sm.GapLongExtendX < sm.GapShortExtendX {
		t.Errorf("long extend should dominate short extend after the safeguard")
	}
	// Y axis was already ordered, so it is untouched.
	if math.Abs(sm.GapLongExtendY-math.Log(0.6)) > 1e-12 {
		t.Errorf("GapLongExtendY = %f, want log(0.6)", sm.GapLongExtendY)
	}
}

func TestLoadSymmetricAveragesAxes(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	src := &stubExpectations{
		typ: FiveState,
		transitions: map[[2]State]float64{
			{Match, ShortGapX}: 0.02,
			{Match, ShortGapY}: 0.04,
		},
	}
	if err := sm.LoadSymmetric(src); err != nil {
		t.Fatalf("LoadSymmetric failed: %s", err)
	}
	want := math.Log(0.03)
	if math.Abs(sm.GapShortOpenX-want) > 1e-12 {
		t.Errorf("GapShortOpenX = %f, want log(0.03)", sm.GapShortOpenX)
	}
	if sm.GapShortOpenY != sm.GapShortOpenX {
		t.Errorf("symmetric load should mirror X onto Y")
	}
}

func TestLoadRejectsWrongType(t *testing.T) {
	sm, err := NewFiveStateMachine(FiveState, 4, SymbolGapProb, SymbolGapProb, SymbolMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	src := &stubExpectations{typ: FiveStateAsymmetric}
	if err := sm.LoadSymmetric(src); err == nil {
		t.Errorf("LoadSymmetric should reject an asymmetric container")
	}
}

func signalTestModel() *pore.Model {
	model := pore.NewModel()
	model.Match[0] = 0.0
	model.Scaled[0] = 0.0
	for index := 0; index < kmer.NumKmers; index++ {
		base := 1 + index*pore.ModelParams
		model.Match[base] = 60.0 + 0.01*float64(index)
		model.Match[base+1] = 1.0
		model.Match[base+2] = 1.2
		model.Match[base+3] = 0.25
		copy(model.Scaled[base:base+4], model.Match[base:base+4])
	}
	for bin := range model.SkipBins {
		model.SkipBins[bin] = 0.1
	}
	return model
}

func TestVanillaDerivedTransitions(t *testing.T) {
	sm, err := NewVanillaMachine(Vanilla, kmer.NumKmers,
		func(*VanillaMachine, string) float64 { return 0.1 },
		BivariateGaussMatchProb, GaussMatchProb)
	if err != nil {
		t.Fatalf("constructor failed: %s", err)
	}
	sm.LoadPoreModel(signalTestModel())
	sm.MatchToExtraEventNotSkip = 0.17
	sm.ExtraEventExtend = 0.55

	want := map[[2]State]float64{
		{Match, Match}:         0.747,
		{Match, ShortGapY}:     0.153,
		{Match, ShortGapX}:     0.1,
		{ShortGapX, Match}:     0.9,
		{ShortGapY, Match}:     0.45,
		{ShortGapX, ShortGapX}: 0.1,
		{ShortGapY, ShortGapY}: 0.55,
	}
	cell := make([]float64, 3)
	observation := Observation{KmerX: "AAAAAAC", Event: Event{Mean: 60.0, Noise: 1.2}}
	got := map[[2]State]float64{}
	sm.CellCalculate(cell, cell, cell, cell, observation,
		func(from, to []float64, fromState, toState State, emission, transition float64) {
			got[[2]State{fromState, toState}] = math.Exp(transition)
		})
	if len(got) != len(want) {
		t.Fatalf("vanilla cell visited %d edges, want %d", len(got), len(want))
	}
	for edge, probability := range want {
		if math.Abs(got[edge]-probability) > 1e-9 {
			t.Errorf("transition %v = %.10f, want %.10f", edge, got[edge], probability)
		}
	}
}

func TestVanillaSkipProbReadsLearnedBins(t *testing.T) {
	sm, err := NewSignalMachine(signalTestModel())
	if err != nil {
		t.Fatalf("NewSignalMachine failed: %s", err)
	}
	if got := sm.SkipProb("AAAAAAC"); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("SkipProb = %f, want the loaded bin value 0.1", got)
	}
}

func TestVanillaEndStateProbsAreLogSpace(t *testing.T) {
	sm, err := NewSignalMachine(signalTestModel())
	if err != nil {
		t.Fatalf("NewSignalMachine failed: %s", err)
	}
	total := 0.0
	for _, state := range []State{Match, ShortGapX, ShortGapY} {
		total += math.Exp(sm.EndStateProb(state))
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("end state probabilities should sum to 1, got %f", total)
	}
}
