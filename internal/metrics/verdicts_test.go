package metrics

import (
	"math"
	"testing"

	"github.com/framevault/dedupe-engine/internal/visual"
)

func TestAccuracy(t *testing.T) {
	outcomes := []VerdictOutcome{
		{PredictedClass: visual.ResultNearPerfect, TruthDuplicate: true}, // hit
		{PredictedClass: visual.ResultNot, TruthDuplicate: false},        // hit
		{PredictedClass: visual.ResultProbably, TruthDuplicate: false},   // false positive
		{PredictedClass: visual.ResultNot, TruthDuplicate: true},         // false negative
	}

	if got := Accuracy(outcomes); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Accuracy() = %v, want 0.5", got)
	}
	if got := Accuracy(nil); got != 0 {
		t.Errorf("Accuracy(empty) = %v, want 0", got)
	}
}

func TestFalsePositiveRate(t *testing.T) {
	outcomes := []VerdictOutcome{
		{PredictedClass: visual.ResultVeryProbably, TruthDuplicate: false},
		{PredictedClass: visual.ResultNot, TruthDuplicate: false},
		{PredictedClass: visual.ResultNot, TruthDuplicate: false},
		{PredictedClass: visual.ResultNot, TruthDuplicate: false},
		{PredictedClass: visual.ResultNearPerfect, TruthDuplicate: true}, // not a negative
	}

	if got := FalsePositiveRate(outcomes); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("FalsePositiveRate() = %v, want 0.25", got)
	}
}

func TestFalseNegativeRate(t *testing.T) {
	outcomes := []VerdictOutcome{
		{PredictedClass: visual.ResultNot, TruthDuplicate: true},
		{PredictedClass: visual.ResultAlmostCertainly, TruthDuplicate: true},
		{PredictedClass: visual.ResultNot, TruthDuplicate: false}, // not a positive
	}

	if got := FalseNegativeRate(outcomes); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("FalseNegativeRate() = %v, want 0.5", got)
	}
}

func TestClassDistribution(t *testing.T) {
	outcomes := []VerdictOutcome{
		{PredictedClass: visual.ResultNot},
		{PredictedClass: visual.ResultNot},
		{PredictedClass: visual.ResultNearPerfect},
	}

	dist := ClassDistribution(outcomes)

	if dist[visual.ResultNot] != 2 || dist[visual.ResultNearPerfect] != 1 {
		t.Errorf("ClassDistribution() = %v", dist)
	}
}
