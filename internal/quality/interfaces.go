package quality

import (
	"image"

	"go-scan-capture/pkg/models"
)

// Analyzer produces a QualityResult for a decoded raster. Implementations
// are pure functions of the pixel data: no side effects, deterministic.
type Analyzer interface {
	// Analyze runs the full-frame analysis used for final shot acceptance.
	Analyze(img image.Image) models.QualityResult

	// AnalyzeFast runs the lightweight center-crop sharpness variant for
	// real-time preview feedback. Not valid for final acceptance.
	AnalyzeFast(img image.Image) models.QualityResult
}

// MetricsCalculator handles the raw per-image measurements
type MetricsCalculator interface {
	Grayscale(img image.Image) *image.Gray
	LaplacianScore(gray *image.Gray) float64
	Brightness(gray *image.Gray) float64
	ContrastRange(gray *image.Gray) float64
}
