package visual

import "math"

// RGB -> Lab conversion and the density histogram builders.
//
// The conversion runs sRGB -> linear -> XYZ (D65) -> Lab, then maps the result
// onto 8-bit style ranges: L is scaled 0-100 -> 0-255 and a/b are offset from
// the conventional -128..+128 into 0..255. Mean chroma therefore hovers near
// 128. The comparison thresholds were tuned against this normalisation, so it
// is load-bearing; do not swap in a -128..+128 convention without retuning.

const (
	labRefX = 0.950456
	labRefY = 1.0
	labRefZ = 1.088754
)

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

// rgbToLabPlanes converts an RGB raster into three planar float32 channels,
// each normalised to [0, 255].
func rgbToLabPlanes(rgb *Raster) (l, a, b []float32) {
	n := rgb.Width * rgb.Height

	l = make([]float32, n)
	a = make([]float32, n)
	b = make([]float32, n)

	for i := 0; i < n; i++ {
		rLin := srgbToLinear(float64(rgb.Pix[i*3+0]) / 255.0)
		gLin := srgbToLinear(float64(rgb.Pix[i*3+1]) / 255.0)
		bLin := srgbToLinear(float64(rgb.Pix[i*3+2]) / 255.0)

		x := 0.412453*rLin + 0.357580*gLin + 0.180423*bLin
		y := 0.212671*rLin + 0.715160*gLin + 0.072169*bLin
		z := 0.019334*rLin + 0.119193*gLin + 0.950227*bLin

		fx := labF(x / labRefX)
		fy := labF(y / labRefY)
		fz := labF(z / labRefZ)

		lab_l := 116*fy - 16
		lab_a := 500 * (fx - fy)
		lab_b := 200 * (fy - fz)

		l[i] = clamp255(float32(lab_l * 255.0 / 100.0))
		a[i] = clamp255(float32(lab_a + 128.0))
		b[i] = clamp255(float32(lab_b + 128.0))
	}

	return l, a, b
}

func clamp255(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// labHistogramBinWidth is the bin width of a 256-bin histogram over [0, 255].
const labHistogramBinWidth = 255.0 / float64(LabHistogramNumBins)

// densityHistogram builds a 256-bin density histogram over [0, 255]: bin
// heights integrate to 1 across the range (sum(hist) * binWidth == 1).
// Normalising to density means images with different saturation coverage
// still compare like-for-like.
func densityHistogram(values []float32) []float32 {
	counts := make([]int, LabHistogramNumBins)
	for _, v := range values {
		bin := int(float64(v) / labHistogramBinWidth)
		if bin >= LabHistogramNumBins {
			bin = LabHistogramNumBins - 1
		}
		counts[bin]++
	}

	hist := make([]float32, LabHistogramNumBins)
	if len(values) == 0 {
		return hist
	}

	norm := 1.0 / (float64(len(values)) * labHistogramBinWidth)
	for i, c := range counts {
		hist[i] = float32(float64(c) * norm)
	}
	return hist
}

// densityHistogramTile histograms a rectangular window of a planar channel.
func densityHistogramTile(plane []float32, planeWidth, x0, y0, w, h int) []float32 {
	counts := make([]int, LabHistogramNumBins)
	for y := y0; y < y0+h; y++ {
		row := plane[y*planeWidth:]
		for x := x0; x < x0+w; x++ {
			bin := int(float64(row[x]) / labHistogramBinWidth)
			if bin >= LabHistogramNumBins {
				bin = LabHistogramNumBins - 1
			}
			counts[bin]++
		}
	}

	hist := make([]float32, LabHistogramNumBins)
	n := w * h
	if n == 0 {
		return hist
	}

	norm := 1.0 / (float64(n) * labHistogramBinWidth)
	for i, c := range counts {
		hist[i] = float32(float64(c) * norm)
	}
	return hist
}

// BuildLabHistograms computes the whole-image Lab histogram set of an RGB
// raster, already normalised by the caller.
func BuildLabHistograms(rgb *Raster) *LabHistograms {
	l, a, b := rgbToLabPlanes(rgb)

	return &LabHistograms{
		L: densityHistogram(l),
		A: densityHistogram(a),
		B: densityHistogram(b),
	}
}

// BuildTiledLabHistograms cuts the normalised RGB raster into 16x16 tiles and
// histograms each one. The raster dimensions must be exact multiples of the
// tile grid.
//
// Tile order is x outer, y inner. Both generator and comparator index tiles
// with this convention; tile i must mean the same spatial patch on both sides.
func BuildTiledLabHistograms(rgb *Raster) []*LabHistograms {
	l, a, b := rgbToLabPlanes(rgb)

	tileW := rgb.Width / LabHistogramNumTilesPerDimension
	tileH := rgb.Height / LabHistogramNumTilesPerDimension

	histograms := make([]*LabHistograms, 0, LabHistogramNumTiles)

	for x := 0; x < LabHistogramNumTilesPerDimension; x++ {
		for y := 0; y < LabHistogramNumTilesPerDimension; y++ {
			histograms = append(histograms, &LabHistograms{
				L: densityHistogramTile(l, rgb.Width, x*tileW, y*tileH, tileW, tileH),
				A: densityHistogramTile(a, rgb.Width, x*tileW, y*tileH, tileW, tileH),
				B: densityHistogramTile(b, rgb.Width, x*tileW, y*tileH, tileW, tileH),
			})
		}
	}

	return histograms
}

// BuildRGBHistograms computes whole-image density histograms over the raw
// R/G/B channels. A cheap auxiliary statistic; not on the duplicate verdict
// path.
func BuildRGBHistograms(rgb *Raster) (r, g, b []float32) {
	n := rgb.Width * rgb.Height

	rPlane := make([]float32, n)
	gPlane := make([]float32, n)
	bPlane := make([]float32, n)
	for i := 0; i < n; i++ {
		rPlane[i] = rgb.Pix[i*3+0]
		gPlane[i] = rgb.Pix[i*3+1]
		bPlane[i] = rgb.Pix[i*3+2]
	}

	return densityHistogram(rPlane), densityHistogram(gPlane), densityHistogram(bPlane)
}
