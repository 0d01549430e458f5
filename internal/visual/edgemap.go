package visual

// The edge-map sigma was picked against real pairs: tighter bands looked like
// strict edge detectors but handled fewer situations. What comes out is more
// of a filtered-and-scaled image than a tight-band edge map, and that is what
// works.
const edgeMapDoGSigma = 10.0

// BuildEdgeMap computes the RGB difference-of-gaussians map of an image
// already fitted to the perceptual bound. It receives the full image, not a
// tile: comparable images arrive at the same perceptual scale, so the same
// gaussian radius means the same thing on both sides of a comparison.
func BuildEdgeMap(rgb *Raster) *EdgeMap {
	// note the 0.8 blur at 100% zoom already happened upstream
	blurred := BlurRGB(rgb, edgeMapDoGSigma)

	dog := NewRaster(rgb.Width, rgb.Height, 3)
	for i := range dog.Pix {
		dog.Pix[i] = rgb.Pix[i] - blurred.Pix[i]
	}

	// collapse to the comparison grid with mean averaging; values stay in
	// -255..255 hovering around 0
	reduced := ResizeArea(dog, EdgeMapNormalisedResolution.Width, EdgeMapNormalisedResolution.Height)

	n := reduced.Width * reduced.Height
	edge := &EdgeMap{
		R: make([]float32, n),
		G: make([]float32, n),
		B: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		edge.R[i] = reduced.Pix[i*3+0]
		edge.G[i] = reduced.Pix[i*3+1]
		edge.B[i] = reduced.Pix[i*3+2]
	}

	return edge
}
