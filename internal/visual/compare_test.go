package visual

import (
	"testing"

	"github.com/framevault/dedupe-engine/pkg/models"
)

// Synthetic fingerprint builders. Comparison decisions depend only on the
// histogram and edge-map contents, so tests drive the engine with exactly
// controlled data instead of decoding pixels for every scenario.

// spreadHistogram spreads mass over enough bins to clear the interesting
// threshold on its own.
func spreadHistogram() []float32 {
	hist := make([]float32, LabHistogramNumBins)
	for i := 64; i < 94; i++ {
		hist[i] = float32(1.0 / (30 * labHistogramBinWidth))
	}
	return hist
}

// splitHistogram moves the histogram mass f bins upward from the base, with
// the fractional part split across adjacent bins. Against splitHistogram(base, 0)
// this yields a Wasserstein distance of exactly f / (binWidth * (numBins-1)),
// which makes tile scores precisely tunable.
func splitHistogram(baseBin int, f float64) []float32 {
	hist := make([]float32, LabHistogramNumBins)
	whole := int(f)
	frac := f - float64(whole)

	hist[baseBin+whole] = float32((1 - frac) / labHistogramBinWidth)
	if frac > 0 {
		hist[baseBin+whole+1] = float32(frac / labHistogramBinWidth)
	}
	return hist
}

// tileHist builds an interesting histogram set whose L channel carries the
// given split fraction. The a/b channels are identical across all tiles built
// this way, so only the L difference scores.
func tileHist(f float64) *LabHistograms {
	return &LabHistograms{
		L: splitHistogram(100, f),
		A: spreadHistogram(),
		B: spreadHistogram(),
	}
}

func flatEdgeMap() *EdgeMap {
	n := EdgeMapNormalisedResolution.Width * EdgeMapNormalisedResolution.Height
	return &EdgeMap{R: make([]float32, n), G: make([]float32, n), B: make([]float32, n)}
}

// syntheticTiled assembles a tiled fingerprint from per-tile L split
// fractions.
func syntheticTiled(res models.Resolution, hadAlpha bool, tileFractions []float64, edge *EdgeMap) *VisualDataTiled {
	histograms := make([]*LabHistograms, LabHistogramNumTiles)
	for i := range histograms {
		f := 0.0
		if tileFractions != nil {
			f = tileFractions[i]
		}
		histograms[i] = tileHist(f)
	}
	return &VisualDataTiled{
		Resolution: res,
		HadAlpha:   hadAlpha,
		Histograms: histograms,
		EdgeMap:    edge,
	}
}

func baselineTiled(res models.Resolution) *VisualDataTiled {
	return syntheticTiled(res, false, nil, flatEdgeMap())
}

var squareRes = models.Resolution{Width: 1024, Height: 1024}

func TestCompareTiled_IdenticalIsNearPerfect(t *testing.T) {
	a := baselineTiled(squareRes)
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if !similar || class != ResultNearPerfect {
		t.Fatalf("Expected near-perfect for identical fingerprints, got (%v, %d, %q)", similar, class, statement)
	}
	if statement != "near-perfect visual duplicates" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_TransparencyGates(t *testing.T) {
	tests := []struct {
		name              string
		alpha1, alpha2    bool
		expectedStatement string
	}{
		{"Both Alpha", true, true, "cannot determine visual duplicates\n(they have transparency)"},
		{"First Alpha", true, false, "not visual duplicates\n(one has transparency)"},
		{"Second Alpha", false, true, "not visual duplicates\n(one has transparency)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := syntheticTiled(squareRes, tt.alpha1, nil, flatEdgeMap())
			b := syntheticTiled(squareRes, tt.alpha2, nil, flatEdgeMap())

			similar, class, statement := CompareTiled(a, b)

			if similar || class != ResultNot {
				t.Errorf("Expected NOT verdict, got (%v, %d)", similar, class)
			}
			if statement != tt.expectedStatement {
				t.Errorf("Statement = %q, want %q", statement, tt.expectedStatement)
			}
		})
	}
}

func TestCompareTiled_RatioGate(t *testing.T) {
	// 800x600 vs 800x450: a real resize artifact pair, rejected on shape
	// alone regardless of pixels
	a := baselineTiled(models.Resolution{Width: 800, Height: 600})
	b := baselineTiled(models.Resolution{Width: 800, Height: 450})

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "not visual duplicates\n(different ratio)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_RatioWithinOnePercentPasses(t *testing.T) {
	// 1000x1000 vs 1008x1000 is inside the 1% tolerance
	a := baselineTiled(models.Resolution{Width: 1000, Height: 1000})
	b := baselineTiled(models.Resolution{Width: 1008, Height: 1000})

	similar, _, _ := CompareTiled(a, b)

	if !similar {
		t.Error("A sub-1% aspect difference must not trip the ratio gate")
	}
}

func TestCompareTiled_ResolutionFloor(t *testing.T) {
	a := baselineTiled(models.Resolution{Width: 16, Height: 16})
	b := baselineTiled(models.Resolution{Width: 31, Height: 31})

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "cannot determine visual duplicates\n(too low resolution)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareEdgeMaps_Bands(t *testing.T) {
	tests := []struct {
		name          string
		pointDelta    float32
		expectedClass int
		expectedStmt  string
	}{
		{"Tiny Difference", 2, ResultNearPerfect, "near-perfect visual duplicates"},
		{"Small Difference", 5, ResultAlmostCertainly, "almost certainly visual duplicates"},
		{"Moderate Difference", 12, ResultVeryProbably, "very probably visual duplicates"},
		{"Ambiguous Difference", 20, ResultNot, "probably not visual duplicates\n(alternate/severe re-encode?)"},
		{"Gross Difference", 50, ResultNot, "not visual duplicates\n(alternate)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e1 := flatEdgeMap()
			e2 := flatEdgeMap()
			e2.G[1234] = tt.pointDelta

			_, class, statement := compareEdgeMaps(e1, e2)

			if class != tt.expectedClass {
				t.Errorf("Class = %d, want %d", class, tt.expectedClass)
			}
			if statement != tt.expectedStmt {
				t.Errorf("Statement = %q, want %q", statement, tt.expectedStmt)
			}
		})
	}
}

func TestCompareTiled_NegativeEdgeVerdictIsFinal(t *testing.T) {
	// perfect lab tiles cannot rescue an alternate-grade edge difference
	edge := flatEdgeMap()
	edge.R[0] = 60

	a := syntheticTiled(squareRes, false, nil, edge)
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected edge NOT to be final, got (%v, %d)", similar, class)
	}
	if statement != "not visual duplicates\n(alternate)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_MorePessimisticVerdictWins(t *testing.T) {
	// edge says very-probably, lab says near-perfect: verdict stays down
	edge := flatEdgeMap()
	edge.B[77] = 12

	a := syntheticTiled(squareRes, false, nil, edge)
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if !similar || class != ResultVeryProbably {
		t.Fatalf("Expected the edge comparator's 60 to win, got (%v, %d, %q)", similar, class, statement)
	}
}

func TestCompareTiled_LabClassBands(t *testing.T) {
	uniform := func(f float64) []float64 {
		fractions := make([]float64, LabHistogramNumTiles)
		for i := range fractions {
			fractions[i] = f
		}
		return fractions
	}

	tests := []struct {
		name          string
		fractions     []float64
		expectedClass int
	}{
		// every tile at half the single-bin quantum: mean 0.0012 clears the
		// very-good mean but not the perfect mean
		{"Almost Certainly", uniform(0.5), ResultAlmostCertainly},
		// every tile at the full quantum: mean 0.0024 only clears the base bounds
		{"Very Probably", uniform(1.0), ResultVeryProbably},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := syntheticTiled(squareRes, false, tt.fractions, flatEdgeMap())
			b := baselineTiled(squareRes)

			similar, class, _ := CompareTiled(a, b)

			if !similar || class != tt.expectedClass {
				t.Errorf("Got (%v, %d), want (true, %d)", similar, class, tt.expectedClass)
			}
		})
	}
}

func TestCompareTiled_UniformShiftLooksLikeSevereReencode(t *testing.T) {
	// every tile shifted five bins: regional and mean blow out while the
	// variance stays flat, which reads as alternate/severe re-encode
	fractions := make([]float64, LabHistogramNumTiles)
	for i := range fractions {
		fractions[i] = 5.0
	}

	a := syntheticTiled(squareRes, false, fractions, flatEdgeMap())
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "probably not visual duplicates\n(alternate/severe re-encode?)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_LocalizedEditLooksLikeWatermark(t *testing.T) {
	// most tiles carry the minimum nonzero difference, a handful spike: the
	// skew pull shoots past its bound the way a watermark does
	fractions := make([]float64, LabHistogramNumTiles)
	for i := range fractions {
		fractions[i] = 1.0
	}
	for i := 0; i < 6; i++ {
		fractions[i*40] = 10.0
	}

	a := syntheticTiled(squareRes, false, fractions, flatEdgeMap())
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "not visual duplicates\n(alternate/watermark?)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_PerfectAndNonPerfectMixIsSuspicious(t *testing.T) {
	// a sea of perfect tiles with a few that differ: the small-difference
	// detector fires even though every aggregate bound would pass
	fractions := make([]float64, LabHistogramNumTiles)
	for i := 0; i < 4; i++ {
		fractions[i*50] = 1.0
	}

	a := syntheticTiled(squareRes, false, fractions, flatEdgeMap())
	b := baselineTiled(squareRes)

	similar, class, statement := CompareTiled(a, b)

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "probably not visual duplicates\n(small difference?)" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_FlatColorTooSimple(t *testing.T) {
	flat := func() *VisualDataTiled {
		histograms := make([]*LabHistograms, LabHistogramNumTiles)
		for i := range histograms {
			histograms[i] = &LabHistograms{
				L: impulseHistogram(128),
				A: impulseHistogram(128),
				B: impulseHistogram(128),
			}
		}
		return &VisualDataTiled{Resolution: squareRes, Histograms: histograms, EdgeMap: flatEdgeMap()}
	}

	similar, class, statement := CompareTiled(flat(), flat())

	if similar || class != ResultNot {
		t.Fatalf("Expected NOT, got (%v, %d)", similar, class)
	}
	if statement != "too simple to compare" {
		t.Errorf("Statement = %q", statement)
	}
}

func TestCompareTiled_Symmetry(t *testing.T) {
	fractions := make([]float64, LabHistogramNumTiles)
	for i := range fractions {
		fractions[i] = float64(i%7) / 10.0
	}
	edge := flatEdgeMap()
	edge.R[5] = 8

	a := syntheticTiled(squareRes, false, fractions, edge)
	b := baselineTiled(squareRes)

	s1, c1, m1 := CompareTiled(a, b)
	s2, c2, m2 := CompareTiled(b, a)

	if s1 != s2 || c1 != c2 || m1 != m2 {
		t.Errorf("Comparison is not symmetric: (%v,%d,%q) vs (%v,%d,%q)", s1, c1, m1, s2, c2, m2)
	}
}

func TestCompareSimple(t *testing.T) {
	makeSimple := func(f float64, res models.Resolution, alpha bool) *VisualData {
		return &VisualData{Resolution: res, HadAlpha: alpha, LabHistograms: tileHist(f)}
	}

	t.Run("Identical Is Probably", func(t *testing.T) {
		similar, class, statement := CompareSimple(makeSimple(0, squareRes, false), makeSimple(0, squareRes, false))
		if !similar || class != ResultProbably || statement != "probably visual duplicates" {
			t.Errorf("Got (%v, %d, %q)", similar, class, statement)
		}
	})

	t.Run("Small Difference Is Probably", func(t *testing.T) {
		similar, class, _ := CompareSimple(makeSimple(1.0, squareRes, false), makeSimple(0, squareRes, false))
		if !similar || class != ResultProbably {
			t.Errorf("Got (%v, %d)", similar, class)
		}
	})

	t.Run("Large Difference Is Not", func(t *testing.T) {
		similar, class, statement := CompareSimple(makeSimple(2.0, squareRes, false), makeSimple(0, squareRes, false))
		if similar || class != ResultNot || statement != "not duplicates" {
			t.Errorf("Got (%v, %d, %q)", similar, class, statement)
		}
	})

	t.Run("Flat Color Too Simple", func(t *testing.T) {
		flat := &VisualData{Resolution: squareRes, LabHistograms: &LabHistograms{
			L: impulseHistogram(128), A: impulseHistogram(128), B: impulseHistogram(128),
		}}
		similar, class, statement := CompareSimple(flat, flat)
		if similar || class != ResultNot || statement != "too simple to compare" {
			t.Errorf("Got (%v, %d, %q)", similar, class, statement)
		}
	})

	t.Run("Alpha Gate", func(t *testing.T) {
		similar, _, statement := CompareSimple(makeSimple(0, squareRes, true), makeSimple(0, squareRes, false))
		if similar || statement != "not visual duplicates\n(one has transparency)" {
			t.Errorf("Got (%v, %q)", similar, statement)
		}
	})
}

func TestVerdictClassOrdering(t *testing.T) {
	classes := []int{ResultNot, ResultProbably, ResultVeryProbably, ResultAlmostCertainly, ResultNearPerfect}
	for i := 1; i < len(classes); i++ {
		if classes[i-1] >= classes[i] {
			t.Fatalf("Verdict classes are not strictly ordered at index %d", i)
		}
	}
}

func TestHaveDifferentRatio(t *testing.T) {
	tests := []struct {
		name      string
		r1, r2    float64
		different bool
	}{
		{"Identical", 1.5, 1.5, false},
		{"Within Tolerance", 1.0, 1.009, false},
		{"Past Tolerance", 1.0, 1.02, true},
		{"Wide vs Tall", 1.78, 0.56, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := haveDifferentRatio(tt.r1, tt.r2); got != tt.different {
				t.Errorf("haveDifferentRatio(%v, %v) = %v, want %v", tt.r1, tt.r2, got, tt.different)
			}
		})
	}
}
