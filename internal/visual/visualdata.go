package visual

import "github.com/framevault/dedupe-engine/pkg/models"

// Fingerprint Geometry
//
// Lab histograms are computed on a canonical working resolution so per-tile
// statistics stay stable across wildly different source sizes. The edge map
// lives at two scales: edges are detected at the larger perceptual bound and
// then collapsed to a small comparison grid.

// To smooth out jpeg artifacts we gaussian blur at 100% zoom before any other
// processing. Artifacts sit on 8x8 blocks; sigma 0.8 gives roughly a 2.4px
// radius, about 3x the block edge, which folds the quantisation noise of
// different encodes into the same band.
const JpegArtifactGaussianSigma = 0.8

// Saves a lot of CPU for no great accuracy change.
var LabHistogramNormalisedResolution = models.Resolution{Width: 1024, Height: 1024}

const (
	LabHistogramNumBins              = 256
	LabHistogramNumTilesPerDimension = 16
	LabHistogramNumTiles             = LabHistogramNumTilesPerDimension * LabHistogramNumTilesPerDimension
)

var (
	EdgeMapPerceptualResolution = models.Resolution{Width: 2048, Height: 2048}
	EdgeMapNormalisedResolution = models.Resolution{Width: 256, Height: 256}
)

// EdgeMap holds the three reduced difference-of-gaussians channel planes.
// Values sit in roughly [-255, 255] and hover around 0. Immutable once built.
type EdgeMap struct {
	R []float32 // 256x256, row-major
	G []float32
	B []float32
}

// EstimatedMemoryFootprint returns the byte cost of the three float32 planes.
// This is not a small object; the tiled cache budgets around it.
func (e *EdgeMap) EstimatedMemoryFootprint() int {
	return 4 * EdgeMapNormalisedResolution.Width * EdgeMapNormalisedResolution.Height * 3
}

// LabHistograms is one set of per-channel 256-bin density histograms.
// Immutable once built.
type LabHistograms struct {
	L []float32
	A []float32
	B []float32
}

// EstimatedMemoryFootprint returns the byte cost of the three float32 vectors.
func (h *LabHistograms) EstimatedMemoryFootprint() int {
	return 4 * LabHistogramNumBins * 3
}

// IsInteresting reports whether there is enough distinct signal to compare. A
// flat colour, or a png of very flat straight colours, has almost nothing in
// its histograms.
func (h *LabHistograms) IsInteresting() bool {
	return countNonZero(h.L)+countNonZero(h.A)+countNonZero(h.B) > 24
}

func countNonZero(hist []float32) int {
	n := 0
	for _, v := range hist {
		if v != 0 {
			n++
		}
	}
	return n
}

// VisualData is the whole-image fingerprint: one Lab histogram set plus the
// source shape facts the pre-filters need.
type VisualData struct {
	Resolution    models.Resolution
	HadAlpha      bool
	LabHistograms *LabHistograms
}

func (v *VisualData) EstimatedMemoryFootprint() int {
	return v.LabHistograms.EstimatedMemoryFootprint()
}

func (v *VisualData) IsInteresting() bool {
	return v.LabHistograms.IsInteresting()
}

func (v *VisualData) ResolutionIsTooLow() bool {
	return v.Resolution.Width < 32 || v.Resolution.Height < 32
}

// VisualDataTiled is the regional fingerprint: 16x16 tiled Lab histograms in
// fixed x-outer/y-inner order, plus the edge map.
type VisualDataTiled struct {
	Resolution models.Resolution
	HadAlpha   bool
	Histograms []*LabHistograms // LabHistogramNumTiles entries
	EdgeMap    *EdgeMap
}

func (v *VisualDataTiled) EstimatedMemoryFootprint() int {
	total := 0
	for _, h := range v.Histograms {
		total += h.EstimatedMemoryFootprint()
	}
	return total + v.EdgeMap.EstimatedMemoryFootprint()
}

func (v *VisualDataTiled) ResolutionIsTooLow() bool {
	return v.Resolution.Width < 32 || v.Resolution.Height < 32
}
