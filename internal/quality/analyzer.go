package quality

import (
	"image"

	"go-scan-capture/pkg/models"
	"go-scan-capture/pkg/validation"
)

// Side length of the square center crop used by the fast variant.
const fastCropSize = 100

// analyzer implements Analyzer by combining metric computation with
// threshold evaluation.
type analyzer struct {
	metrics   MetricsCalculator
	validator *validation.QualityValidator
}

// NewAnalyzer creates an analyzer with the default thresholds
func NewAnalyzer() Analyzer {
	return NewAnalyzerWithValidator(validation.NewQualityValidator())
}

// NewAnalyzerWithValidator creates an analyzer with custom threshold
// evaluation, for per-camera or per-lighting calibration.
func NewAnalyzerWithValidator(v *validation.QualityValidator) Analyzer {
	return &analyzer{
		metrics:   NewMetricsCalculator(),
		validator: v,
	}
}

// Analyze runs the full-frame blur, brightness and contrast checks
func (a *analyzer) Analyze(img image.Image) models.QualityResult {
	gray := a.metrics.Grayscale(img)
	return a.validator.Evaluate(validation.QualityMetrics{
		BlurScore:     a.metrics.LaplacianScore(gray),
		Brightness:    a.metrics.Brightness(gray),
		ContrastRange: a.metrics.ContrastRange(gray),
	})
}

// AnalyzeFast runs the checks on a fixed center crop with the relaxed
// sharpness threshold, for low-latency live preview feedback.
func (a *analyzer) AnalyzeFast(img image.Image) models.QualityResult {
	gray := a.metrics.Grayscale(centerCrop(img, fastCropSize, fastCropSize))
	return a.validator.EvaluateFast(validation.QualityMetrics{
		BlurScore:     a.metrics.LaplacianScore(gray),
		Brightness:    a.metrics.Brightness(gray),
		ContrastRange: a.metrics.ContrastRange(gray),
	})
}

// centerCrop returns a view of the central w×h region, or the whole image
// when it is already smaller.
func centerCrop(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= w && bounds.Dy() <= h {
		return img
	}

	x0 := bounds.Min.X + (bounds.Dx()-w)/2
	y0 := bounds.Min.Y + (bounds.Dy()-h)/2
	if x0 < bounds.Min.X {
		x0 = bounds.Min.X
	}
	if y0 < bounds.Min.Y {
		y0 = bounds.Min.Y
	}
	rect := image.Rect(x0, y0, x0+w, y0+h).Intersect(bounds)

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}

	// Fallback copy for image types without SubImage
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}
