package raster

import (
	"image"
	"math"
)

// ClassificationResult is the outcome of sampling a raster for color variance.
type ClassificationResult struct {
	IsPhotographic bool
	VarianceScore  float64
	Samples        int
}

// Classifier samples every Stride-th pixel and flags the raster as
// photographic when the mean distance from gray exceeds Threshold.
type Classifier struct {
	Stride    int
	Threshold float64
}

var (
	// PageClassifier runs on the freshly rendered page and picks the remap branch.
	PageClassifier = Classifier{Stride: 50, Threshold: 25}

	// HeavinessClassifier runs on the remapped page and picks the codec.
	HeavinessClassifier = Classifier{Stride: 100, Threshold: 20}
)

// Classify samples img with the classifier's stride and threshold.
func (c Classifier) Classify(img *image.NRGBA) ClassificationResult {
	return Classify(img, c.Stride, c.Threshold)
}

// Classify walks the pixels of img in row-major order, taking one sample every
// stride pixels. An empty raster is never photographic.
func Classify(img *image.NRGBA, stride int, threshold float64) ClassificationResult {
	if img == nil {
		return ClassificationResult{}
	}
	if stride < 1 {
		stride = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h

	var sum float64
	samples := 0
	for p := 0; p < total; p += stride {
		off := (p/w)*img.Stride + (p%w)*4
		px := img.Pix[off : off+3 : off+3]

		r, g, bl := float64(px[0]), float64(px[1]), float64(px[2])
		avg := (r + g + bl) / 3
		sum += math.Abs(r-avg) + math.Abs(g-avg) + math.Abs(bl-avg)
		samples++
	}

	if samples == 0 {
		return ClassificationResult{}
	}

	score := sum / float64(samples)
	return ClassificationResult{
		IsPhotographic: score > threshold,
		VarianceScore:  score,
		Samples:        samples,
	}
}
