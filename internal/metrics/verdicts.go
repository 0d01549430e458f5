package metrics

import "github.com/framevault/dedupe-engine/internal/visual"

// Verdict-quality metrics over a labeled tuning corpus. When the comparison
// thresholds get retuned, these are the numbers that decide whether the new
// values ship: a duplicate detector lives or dies on its false-positive rate,
// since a wrong "duplicate" verdict deletes a file someone wanted.

// VerdictOutcome is one labeled comparison: what the engine said against what
// a human said.
type VerdictOutcome struct {
	PredictedClass int
	TruthDuplicate bool
}

// Accuracy is the fraction of outcomes where the engine's similar/not-similar
// call matches the label. Any class above NOT counts as a similar call.
func Accuracy(outcomes []VerdictOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}

	correct := 0
	for _, o := range outcomes {
		predictedSimilar := o.PredictedClass > visual.ResultNot
		if predictedSimilar == o.TruthDuplicate {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes))
}

// FalsePositiveRate is the fraction of true non-duplicates the engine called
// similar. This is the metric a threshold change must never regress.
func FalsePositiveRate(outcomes []VerdictOutcome) float64 {
	negatives := 0
	falsePositives := 0

	for _, o := range outcomes {
		if o.TruthDuplicate {
			continue
		}
		negatives++
		if o.PredictedClass > visual.ResultNot {
			falsePositives++
		}
	}

	if negatives == 0 {
		return 0
	}
	return float64(falsePositives) / float64(negatives)
}

// FalseNegativeRate is the fraction of true duplicates the engine rejected.
// Cheaper to regress than the FP rate — a missed duplicate just sits in the
// library — but it still gates how useful the engine feels.
func FalseNegativeRate(outcomes []VerdictOutcome) float64 {
	positives := 0
	falseNegatives := 0

	for _, o := range outcomes {
		if !o.TruthDuplicate {
			continue
		}
		positives++
		if o.PredictedClass == visual.ResultNot {
			falseNegatives++
		}
	}

	if positives == 0 {
		return 0
	}
	return float64(falseNegatives) / float64(positives)
}

// ClassDistribution counts outcomes per verdict class, keyed by the class
// value. Useful for spotting threshold drift: a retune that silently moves
// the population from ALMOST_CERTAINLY into VERY_PROBABLY shows up here
// before it shows up in user reports.
func ClassDistribution(outcomes []VerdictOutcome) map[int]int {
	dist := map[int]int{}
	for _, o := range outcomes {
		dist[o.PredictedClass]++
	}
	return dist
}
