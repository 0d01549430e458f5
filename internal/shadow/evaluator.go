package shadow

import "math"

// Evaluator summarizes a corpus of shadow results into the numbers the
// promotion decision needs: raw agreement and chance-corrected agreement.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// AgreementRate is the fraction of pairs where both selectors reached the
// same decision, including matching "no match" calls.
func (e *Evaluator) AgreementRate(results []*ShadowResult) float64 {
	if len(results) == 0 {
		return 0
	}

	agreed := 0
	for _, r := range results {
		if r.Agreed {
			agreed++
		}
	}
	return float64(agreed) / float64(len(results))
}

// CohenKappa corrects the agreement rate for chance over the decision
// outcomes (the chosen winner file, or no match). Raw agreement flatters a shadow
// selector that matches almost nothing, since two do-nothing selectors agree
// constantly; kappa exposes that.
func (e *Evaluator) CohenKappa(results []*ShadowResult) float64 {
	n := len(results)
	if n == 0 {
		return 0
	}

	// decisions key on the concrete winner file id, with 0 meaning no match
	var observed float64
	prodCounts := map[int64]int{}
	shadowCounts := map[int64]int{}

	for _, r := range results {
		if r.Agreed {
			observed++
		}
		prodCounts[r.ProdWinner]++
		shadowCounts[r.ShadowWinner]++
	}
	observed /= float64(n)

	var expected float64
	for winner, pc := range prodCounts {
		sc := shadowCounts[winner]
		expected += (float64(pc) / float64(n)) * (float64(sc) / float64(n))
	}

	if math.Abs(1-expected) < 1e-12 {
		return 0
	}
	return (observed - expected) / (1 - expected)
}
