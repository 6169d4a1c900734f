package hmm

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/statemachine"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// recordingHDP captures what the loader feeds into the HDP structure.
type recordingHDP struct {
	events []float64
	ids    []int64
}

func (r *recordingHDP) KmerID(kmerString string) int64 {
	return int64(kmer.Index(kmerString))
}

func (r *recordingHDP) ReceiveAssignments(events []float64, kmerIDs []int64) {
	r.events = events
	r.ids = kmerIDs
}

func TestHDPRecordsAssignments(t *testing.T) {
	h, err := NewHDP(0.001, 0.9, 3, kmer.NumKmers)
	if err != nil {
		t.Fatalf("construct failed: %s", err)
	}
	h.AddToAssignment("ACGTAC", 63.2)
	h.AddToAssignment("CGTACG", 58.9)
	if h.NumberOfAssignments() != 2 {
		t.Errorf("NumberOfAssignments = %d, want 2", h.NumberOfAssignments())
	}
	events, kmers := h.Assignments()
	if len(events) != len(kmers) {
		t.Errorf("assignment lists disagree: %d events, %d kmers", len(events), len(kmers))
	}
	if h.Threshold() != 0.9 {
		t.Errorf("Threshold = %f, want 0.9", h.Threshold())
	}
}

func TestHDPRoundTrip(t *testing.T) {
	h, err := NewHDP(0.001, 0.85, 3, kmer.NumKmers)
	if err != nil {
		t.Fatalf("construct failed: %s", err)
	}
	h.AddToAssignment("ACGTAC", 63.25)
	h.AddToAssignment("CGTACG", 58.875)
	h.AddToAssignment("GGGGGG", 71.0)
	h.SetLikelihood(-99.5)

	var buffer bytes.Buffer
	if err := h.WriteTo(&buffer); err != nil {
		t.Fatalf("WriteTo failed: %s", err)
	}
	loaded, err := ReadHDP(&buffer, nil)
	if err != nil {
		t.Fatalf("ReadHDP failed: %s", err)
	}
	if loaded.NumberOfAssignments() != 3 {
		t.Fatalf("loaded %d assignments, want 3", loaded.NumberOfAssignments())
	}
	events, kmers := loaded.Assignments()
	if diff := cmp.Diff([]float64{63.25, 58.875, 71.0}, events, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("event assignments did not round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ACGTAC", "CGTACG", "GGGGGG"}, kmers); diff != "" {
		t.Errorf("k-mer assignments did not round trip (-want +got):\n%s", diff)
	}
	if math.Abs(loaded.Threshold()-0.85) > 1e-6 {
		t.Errorf("threshold = %f, want 0.85", loaded.Threshold())
	}
	if math.Abs(loaded.Transition(statemachine.Match, statemachine.Match)-0.001) > 1e-9 {
		t.Errorf("transitions did not round trip")
	}
}

func TestHDPFeedsReceiverOnLoad(t *testing.T) {
	h, err := NewHDP(0.001, 0.85, 3, kmer.NumKmers)
	if err != nil {
		t.Fatalf("construct failed: %s", err)
	}
	h.AddToAssignment("AAAAAC", 60.5)
	h.AddToAssignment("TTTTTT", 80.25)

	var buffer bytes.Buffer
	if err := h.WriteTo(&buffer); err != nil {
		t.Fatalf("WriteTo failed: %s", err)
	}
	receiver := &recordingHDP{}
	if _, err := ReadHDP(&buffer, receiver); err != nil {
		t.Fatalf("ReadHDP failed: %s", err)
	}
	if len(receiver.events) != 2 || len(receiver.ids) != 2 {
		t.Fatalf("receiver got %d events and %d ids, want 2 of each", len(receiver.events), len(receiver.ids))
	}
	if receiver.ids[0] != 1 || receiver.ids[1] != int64(kmer.NumKmers-1) {
		t.Errorf("receiver ids = %v, want the canonical k-mer indices", receiver.ids)
	}
}

func TestHDPEmptyAssignmentsRoundTrip(t *testing.T) {
	h, err := NewHDP(0.001, 0.5, 3, kmer.NumKmers)
	if err != nil {
		t.Fatalf("construct failed: %s", err)
	}
	var buffer bytes.Buffer
	if err := h.WriteTo(&buffer); err != nil {
		t.Fatalf("WriteTo failed: %s", err)
	}
	loaded, err := ReadHDP(&buffer, nil)
	if err != nil {
		t.Fatalf("ReadHDP failed: %s", err)
	}
	if loaded.NumberOfAssignments() != 0 {
		t.Errorf("loaded %d assignments, want 0", loaded.NumberOfAssignments())
	}
}

func TestHDPReadRejectsThreeStateTag(t *testing.T) {
	cp, _ := NewContinuousPair(statemachine.ThreeState, 0.001, 3, kmer.NumKmers)
	var buffer bytes.Buffer
	if err := cp.WriteTo(&buffer); err != nil {
		t.Fatalf("WriteTo failed: %s", err)
	}
	_, err := ReadHDP(&buffer, nil)
	if !errors.Is(err, ErrWrongModelType) {
		t.Errorf("the hdp loader should reject a plain three-state file, got %v", err)
	}
}
