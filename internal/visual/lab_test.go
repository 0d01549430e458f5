package visual

import (
	"math"
	"testing"
)

// fillRGB builds a raster where every pixel carries the same RGB triple.
func fillRGB(w, h int, r, g, b float32) *Raster {
	raster := NewRaster(w, h, 3)
	for i := 0; i < w*h; i++ {
		raster.Pix[i*3+0] = r
		raster.Pix[i*3+1] = g
		raster.Pix[i*3+2] = b
	}
	return raster
}

func TestRGBToLabPlanes_Anchors(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b float32
		wantL   float64
		chroma  bool // true when a/b must sit near the 128 midpoint
	}{
		{"Black", 0, 0, 0, 0, true},
		{"White", 255, 255, 255, 255, true},
		{"Mid Gray", 128, 128, 128, 137, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, a, b := rgbToLabPlanes(fillRGB(2, 2, tt.r, tt.g, tt.b))

			if math.Abs(float64(l[0])-tt.wantL) > 2.0 {
				t.Errorf("L = %v, want about %v", l[0], tt.wantL)
			}
			if tt.chroma {
				if math.Abs(float64(a[0])-128) > 1.0 || math.Abs(float64(b[0])-128) > 1.0 {
					t.Errorf("Neutral color should sit at chroma midpoint, got a=%v b=%v", a[0], b[0])
				}
			}
		})
	}
}

func TestRGBToLabPlanes_ChromaDirections(t *testing.T) {
	_, aRed, _ := rgbToLabPlanes(fillRGB(1, 1, 255, 0, 0))
	_, aGreen, _ := rgbToLabPlanes(fillRGB(1, 1, 0, 255, 0))
	_, _, bBlue := rgbToLabPlanes(fillRGB(1, 1, 0, 0, 255))
	_, _, bYellow := rgbToLabPlanes(fillRGB(1, 1, 255, 255, 0))

	if aRed[0] <= 128 {
		t.Errorf("Red must push a above the midpoint, got %v", aRed[0])
	}
	if aGreen[0] >= 128 {
		t.Errorf("Green must push a below the midpoint, got %v", aGreen[0])
	}
	if bBlue[0] >= 128 {
		t.Errorf("Blue must push b below the midpoint, got %v", bBlue[0])
	}
	if bYellow[0] <= 128 {
		t.Errorf("Yellow must push b above the midpoint, got %v", bYellow[0])
	}
}

func TestDensityHistogram_IntegratesToOne(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
	}{
		{"Flat Values", []float32{128, 128, 128, 128}},
		{"Spread Values", []float32{0, 17, 63.5, 100, 200, 254.9, 255}},
		{"Single Value", []float32{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := densityHistogram(tt.values)

			var sum float64
			for _, v := range hist {
				sum += float64(v) * labHistogramBinWidth
			}
			if math.Abs(sum-1.0) > 1e-4 {
				t.Errorf("Histogram integrates to %v, want 1.0", sum)
			}
		})
	}
}

func TestDensityHistogram_TopOfRange(t *testing.T) {
	hist := densityHistogram([]float32{255})

	if hist[LabHistogramNumBins-1] == 0 {
		t.Error("255 must land in the last bin, not fall off the range")
	}
}

func TestBuildTiledLabHistograms_TileOrderAndCount(t *testing.T) {
	// 32x32 image, 2x2 pixel tiles: left half black, right half white.
	// With x-outer/y-inner order the first 16*8 tiles are the left columns.
	raster := NewRaster(32, 32, 3)
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			i := (y*32 + x) * 3
			raster.Pix[i] = 255
			raster.Pix[i+1] = 255
			raster.Pix[i+2] = 255
		}
	}

	histograms := BuildTiledLabHistograms(raster)

	if len(histograms) != LabHistogramNumTiles {
		t.Fatalf("Expected %d tiles, got %d", LabHistogramNumTiles, len(histograms))
	}

	// first tile column is black: all L mass in bin 0
	if histograms[0].L[0] == 0 {
		t.Error("Tile 0 should be black (L mass in bin 0)")
	}
	// tile index 8*16 starts the right half: all L mass in the top bin
	rightHalfStart := 8 * LabHistogramNumTilesPerDimension
	if histograms[rightHalfStart].L[LabHistogramNumBins-1] == 0 {
		t.Errorf("Tile %d should be white (L mass in the top bin)", rightHalfStart)
	}
}

func TestBuildLabHistograms_FlatColorIsNotInteresting(t *testing.T) {
	histograms := BuildLabHistograms(fillRGB(32, 32, 120, 120, 120))

	if histograms.IsInteresting() {
		t.Error("A flat color must not count as interesting")
	}
}

func TestBuildRGBHistograms_Density(t *testing.T) {
	r, g, b := BuildRGBHistograms(fillRGB(8, 8, 10, 120, 250))

	for name, hist := range map[string][]float32{"r": r, "g": g, "b": b} {
		var sum float64
		for _, v := range hist {
			sum += float64(v) * labHistogramBinWidth
		}
		if math.Abs(sum-1.0) > 1e-4 {
			t.Errorf("%s histogram integrates to %v, want 1.0", name, sum)
		}
	}
}
