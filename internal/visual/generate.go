package visual

import (
	"fmt"

	"github.com/framevault/dedupe-engine/pkg/models"
)

// Fingerprint generation. Decoded pixels come in, compact fingerprints come
// out; nothing here reads files. Both generators share the same front half:
// strip alpha, remember it, blur at 100% zoom.

func normaliseForProcessing(raster *Raster) (*Raster, bool, models.Resolution, error) {
	if raster == nil || raster.Width <= 0 || raster.Height <= 0 {
		return nil, false, models.Resolution{}, fmt.Errorf("empty raster")
	}
	if raster.Channels != 3 && raster.Channels != 4 {
		return nil, false, models.Resolution{}, fmt.Errorf("bad channel count %d", raster.Channels)
	}

	resolution := models.Resolution{Width: raster.Width, Height: raster.Height}

	rgb, hadAlpha := StripAlpha(raster)

	rgb = BlurRGB(rgb, JpegArtifactGaussianSigma)

	return rgb, hadAlpha, resolution, nil
}

// GenerateVisualData computes the whole-image fingerprint of a decoded image.
func GenerateVisualData(raster *Raster) (*VisualData, error) {
	rgb, hadAlpha, resolution, err := normaliseForProcessing(raster)
	if err != nil {
		return nil, fmt.Errorf("visual data generation: %v", err)
	}

	scaled := ResizeArea(rgb, LabHistogramNormalisedResolution.Width, LabHistogramNormalisedResolution.Height)

	return &VisualData{
		Resolution:    resolution,
		HadAlpha:      hadAlpha,
		LabHistograms: BuildLabHistograms(scaled),
	}, nil
}

// GenerateVisualDataTiled computes the regional fingerprint: the edge map at
// the perceptual scale and the 16x16 tiled Lab histograms at the canonical
// working resolution.
func GenerateVisualDataTiled(raster *Raster) (*VisualDataTiled, error) {
	rgb, hadAlpha, resolution, err := normaliseForProcessing(raster)
	if err != nil {
		return nil, fmt.Errorf("tiled visual data generation: %v", err)
	}

	// edge map: fit the perceptual bound preserving aspect, then DoG
	fitW, fitH := ThumbnailFit(resolution.Width, resolution.Height,
		EdgeMapPerceptualResolution.Width, EdgeMapPerceptualResolution.Height)

	edgeMap := BuildEdgeMap(ResizeArea(rgb, fitW, fitH))

	// tiled Lab histograms on the canonical square, an exact multiple of the
	// tile grid
	scaled := ResizeArea(rgb, LabHistogramNormalisedResolution.Width, LabHistogramNormalisedResolution.Height)

	return &VisualDataTiled{
		Resolution: resolution,
		HadAlpha:   hadAlpha,
		Histograms: BuildTiledLabHistograms(scaled),
		EdgeMap:    edgeMap,
	}, nil
}
