package visual

import "math"

// Visual Duplicate Comparison
//
// Detecting jpeg artifacts is difficult: they are noisy from most angles and
// differentiating that noise from deliberate edits is not simple. They are,
// however, uniform. Correlation coefficients and chi-squared scores did not
// smooth the noise out nicely; the Earth Mover Distance does — it absorbs the
// little fuzzy artifact differences while still noticing real bumps.
//
// The tiled pipeline runs two comparators:
//
//   1. Edge map: per-channel difference matrices, classified on the largest
//      single point difference.
//   2. Lab tiles: 256 per-tile Wasserstein scores, classified on max, mean,
//      variance and skew against tuned thresholds.
//
// A negative edge verdict is final. Otherwise the more pessimistic of the two
// verdicts wins.

// Verdict classes, spread out in case we want to insert more later.
const (
	ResultNot             = 0
	ResultProbably        = 40
	ResultVeryProbably    = 60
	ResultAlmostCertainly = 85
	ResultNearPerfect     = 100
)

// ResultString maps a verdict class to its plain statement. UIs match on
// these strings, so they are fixed.
var ResultString = map[int]string{
	ResultNot:             "not duplicates",
	ResultProbably:        "probably visual duplicates",
	ResultVeryProbably:    "very probably visual duplicates",
	ResultAlmostCertainly: "almost certainly visual duplicates",
	ResultNearPerfect:     "near-perfect visual duplicates",
}

// Edge-map point difference thresholds. Tile averaging just softened the rich
// data here, and absolute-skew gubbins produced false positives, so the edge
// comparator classifies on the single largest point difference. Sometimes a
// heavy re-encode pair lands at 18 and sometimes a subtle alternate lands at
// 18, but these bands hold up reliably in practice.
const (
	edgePerfectMaxPointDifference  = 3
	edgeVeryGoodMaxPointDifference = 11
	edgeMaxPointDifference         = 15
	edgeRubbishMinPointDifference  = 45
)

// Wasserstein tile-score thresholds. 0.0 is a perfect match, 1.0 totally
// different. Tuned against real pairs: true dupes (scales and re-encodes down
// to quality 60) sit under max 0.008 / mean 0.0023 / variance 1e-6, while
// corrections, watermarks and recolours blow past one or more of these. Keep
// as named constants so retuning never touches control flow.
const (
	wdMaxRegionalScore    = 0.01
	wdMaxMean             = 0.003
	wdMaxVariance         = 0.0000035
	wdMaxAbsoluteSkewPull = 50.0

	wdVeryGoodMaxRegionalScore = 0.004
	wdVeryGoodMaxMean          = 0.0015
	wdVeryGoodMaxVariance      = 0.000001
	wdVeryGoodMaxSkewPull      = 5.0

	wdPerfectMaxRegionalScore = 0.001
	wdPerfectMaxMean          = 0.0001
	wdPerfectMaxVariance      = 0.000001
	wdPerfectMaxSkewPull      = 1.5
)

// Simple whole-image scores mostly land under 0.0008, but a couple of
// high-quality-range jpeg pairs reach 0.0018. A confident negative and a less
// confident positive is the way around we want.
const simpleMaxScore = 0.003

// aspectRatioTolerance is the relative difference two aspect ratios may carry
// and still count as the same shape.
const aspectRatioTolerance = 0.01

// CompareTiled resolves two regional fingerprints to a visual-duplicate
// verdict. Never fails; every input combination maps to a verdict.
func CompareTiled(data1, data2 *VisualDataTiled) (bool, int, string) {
	if data1.HadAlpha || data2.HadAlpha {
		if data1.HadAlpha && data2.HadAlpha {
			return false, ResultNot, "cannot determine visual duplicates\n(they have transparency)"
		}
		return false, ResultNot, "not visual duplicates\n(one has transparency)"
	}

	if haveDifferentRatio(data1.Resolution.AspectRatio(), data2.Resolution.AspectRatio()) {
		return false, ResultNot, "not visual duplicates\n(different ratio)"
	}

	if data1.ResolutionIsTooLow() || data2.ResolutionIsTooLow() {
		return false, ResultNot, "cannot determine visual duplicates\n(too low resolution)"
	}

	similarEdge, resultEdge, statementEdge := compareEdgeMaps(data1.EdgeMap, data2.EdgeMap)

	if !similarEdge {
		return similarEdge, resultEdge, statementEdge
	}

	similarLab, resultLab, statementLab := compareTiledHistograms(data1.Histograms, data2.Histograms)

	// the more pessimistic comparator wins
	if resultEdge < resultLab {
		return similarEdge, resultEdge, statementEdge
	}
	return similarLab, resultLab, statementLab
}

// CompareSimple resolves two whole-image fingerprints. This is useful to rule
// out easy false positives, but as expected it suffers from lack of fine
// resolution, so it never promises more than "probably".
func CompareSimple(data1, data2 *VisualData) (bool, int, string) {
	if data1.HadAlpha || data2.HadAlpha {
		if data1.HadAlpha && data2.HadAlpha {
			return false, ResultNot, "cannot determine visual duplicates\n(they have transparency)"
		}
		return false, ResultNot, "not visual duplicates\n(one has transparency)"
	}

	if haveDifferentRatio(data1.Resolution.AspectRatio(), data2.Resolution.AspectRatio()) {
		return false, ResultNot, "not visual duplicates\n(different ratio)"
	}

	if data1.ResolutionIsTooLow() || data2.ResolutionIsTooLow() {
		return false, ResultNot, "cannot determine visual duplicates\n(too low resolution)"
	}

	interesting, score := LabWassersteinScore(data1.LabHistograms, data2.LabHistograms)

	if !interesting {
		return false, ResultNot, "too simple to compare"
	}

	if score < simpleMaxScore {
		return true, ResultProbably, "probably visual duplicates"
	}

	return false, ResultNot, "not duplicates"
}

func haveDifferentRatio(ratio1, ratio2 float64) bool {
	larger := math.Max(ratio1, ratio2)
	if larger == 0 {
		return false
	}
	return math.Abs(ratio1-ratio2)/larger > aspectRatioTolerance
}

func compareEdgeMaps(edge1, edge2 *EdgeMap) (bool, int, string) {
	// each plane is -255..255, hovering around 0
	largest := math.Max(largestPointDifference(edge1.R, edge2.R),
		math.Max(largestPointDifference(edge1.G, edge2.G), largestPointDifference(edge1.B, edge2.B)))

	switch {
	case largest < edgePerfectMaxPointDifference:
		return true, ResultNearPerfect, "near-perfect visual duplicates"
	case largest < edgeVeryGoodMaxPointDifference:
		return true, ResultAlmostCertainly, "almost certainly visual duplicates"
	case largest < edgeMaxPointDifference:
		return true, ResultVeryProbably, "very probably visual duplicates"
	case largest > edgeRubbishMinPointDifference:
		return false, ResultNot, "not visual duplicates\n(alternate)"
	default:
		return false, ResultNot, "probably not visual duplicates\n(alternate/severe re-encode?)"
	}
}

func largestPointDifference(plane1, plane2 []float32) float64 {
	var largest float32
	for i := range plane1 {
		d := plane1[i] - plane2[i]
		if d < 0 {
			d = -d
		}
		if d > largest {
			largest = d
		}
	}
	return float64(largest)
}

func compareTiledHistograms(histograms1, histograms2 []*LabHistograms) (bool, int, string) {
	scores := make([]float64, 0, len(histograms1))

	noInterestingTiles := true
	havePerfectInterestingTile := false

	for i := range histograms1 {
		interesting, score := LabWassersteinScore(histograms1[i], histograms2[i])

		if interesting {
			noInterestingTiles = false
			if score < 0.0000001 {
				havePerfectInterestingTile = true
			}
		}

		scores = append(scores, score)
	}

	maxRegionalScore := 0.0
	for _, s := range scores {
		if s > maxRegionalScore {
			maxRegionalScore = s
		}
	}

	meanScore, scoreVariance := meanAndVariance(scores)
	scoreSkew := Skewness(scores)

	// skew alone is normalised and goes whack on a really tight low-variance
	// distribution; multiplying by the max we saw scales it back to relevance
	absoluteSkewPull := scoreSkew * maxRegionalScore * 1000

	mixOfPerfectAndNonPerfect := havePerfectInterestingTile && maxRegionalScore > 0.0001 && absoluteSkewPull > 8.0

	exceedsRegionalScore := maxRegionalScore > wdMaxRegionalScore
	exceedsMean := meanScore > wdMaxMean
	exceedsVariance := scoreVariance > wdMaxVariance
	exceedsSkew := absoluteSkewPull > wdMaxAbsoluteSkewPull

	if exceedsSkew || exceedsVariance || exceedsMean || exceedsRegionalScore || mixOfPerfectAndNonPerfect || noInterestingTiles {
		var statement string

		switch {
		case noInterestingTiles:
			statement = "too simple to compare"
		case mixOfPerfectAndNonPerfect:
			statement = "probably not visual duplicates\n(small difference?)"
		case exceedsSkew:
			statement = "not visual duplicates\n(alternate/watermark?)"
		case !exceedsVariance:
			statement = "probably not visual duplicates\n(alternate/severe re-encode?)"
		default:
			statement = "probably not visual duplicates"
		}

		return false, ResultNot, statement
	}

	if maxRegionalScore < wdPerfectMaxRegionalScore && meanScore < wdPerfectMaxMean && scoreVariance < wdPerfectMaxVariance && absoluteSkewPull < wdPerfectMaxSkewPull {
		return true, ResultNearPerfect, "near-perfect visual duplicates"
	}

	if maxRegionalScore < wdVeryGoodMaxRegionalScore && meanScore < wdVeryGoodMaxMean && scoreVariance < wdVeryGoodMaxVariance && absoluteSkewPull < wdVeryGoodMaxSkewPull {
		return true, ResultAlmostCertainly, "almost certainly visual duplicates"
	}

	return true, ResultVeryProbably, "very probably visual duplicates"
}
