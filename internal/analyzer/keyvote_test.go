package analyzer

import "testing"

func TestDecideKey_MajorityTonic(t *testing.T) {
	votes := []KeyVote{
		{Profile: "edma", Tonic: "A", Scale: "minor", Confidence: 0.8},
		{Profile: "krumhansl", Tonic: "A", Scale: "minor", Confidence: 0.7},
		{Profile: "temperley", Tonic: "C", Scale: "major", Confidence: 0.9},
		{Profile: "bgate", Tonic: "A", Scale: "minor", Confidence: 0.6},
		{Profile: "shaath", Tonic: "A", Scale: "major", Confidence: 0.3},
	}

	got, err := DecideKey(votes)
	if err != nil {
		t.Fatalf("DecideKey error: %v", err)
	}
	if got.Tonic != "A" {
		t.Fatalf("expected tonic A, got %s", got.Tonic)
	}
	if got.Scale != "minor" {
		t.Fatalf("expected minor (2.1 vs 0.3), got %s", got.Scale)
	}
	if got.Key != "A minor" {
		t.Fatalf("expected key 'A minor', got %q", got.Key)
	}
	want := 2.1 / 2.4
	if diff := got.ModeConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected mode confidence %v, got %v", want, got.ModeConfidence)
	}
}

func TestDecideKey_TieBreakBySummedConfidence(t *testing.T) {
	votes := []KeyVote{
		{Profile: "edma", Tonic: "F", Scale: "major", Confidence: 0.5},
		{Profile: "krumhansl", Tonic: "F", Scale: "major", Confidence: 0.5},
		{Profile: "temperley", Tonic: "G", Scale: "major", Confidence: 0.9},
		{Profile: "bgate", Tonic: "G", Scale: "major", Confidence: 0.8},
	}

	got, err := DecideKey(votes)
	if err != nil {
		t.Fatalf("DecideKey error: %v", err)
	}
	// 2-2 tie on count; G wins on summed confidence 1.7 vs 1.0
	if got.Tonic != "G" {
		t.Fatalf("expected tie-break winner G, got %s", got.Tonic)
	}
}

func TestDecideKey_MinorWinsTies(t *testing.T) {
	votes := []KeyVote{
		{Profile: "edma", Tonic: "D", Scale: "minor", Confidence: 0.5},
		{Profile: "krumhansl", Tonic: "D", Scale: "major", Confidence: 0.5},
	}

	got, err := DecideKey(votes)
	if err != nil {
		t.Fatalf("DecideKey error: %v", err)
	}
	if got.Scale != "minor" {
		t.Fatalf("equal scores should prefer minor, got %s", got.Scale)
	}
	if got.ModeConfidence != 0.5 {
		t.Fatalf("expected mode confidence 0.5, got %v", got.ModeConfidence)
	}
}

func TestDecideKey_NoVotes(t *testing.T) {
	if _, err := DecideKey(nil); err == nil {
		t.Fatalf("expected error for empty vote set")
	}
}
