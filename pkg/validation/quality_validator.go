package validation

import (
	"go-scan-capture/pkg/models"
)

// QualityThresholds defines configurable thresholds for quality validation.
// The defaults are empirically chosen; downstream calibration per camera or
// lighting domain overrides them through NewQualityValidatorWithThresholds.
type QualityThresholds struct {
	// Sharpness: minimum Laplacian energy (sum of squared responses over
	// pixel count). Higher score means sharper.
	MinBlurScore float64

	// Sharpness threshold for the lightweight center-crop variant used
	// during live preview.
	MinFastBlurScore float64

	// Brightness window on the mean grayscale value, 0-255.
	MinBrightness float64
	MaxBrightness float64

	// Contrast: minimum max-min grayscale range.
	MinContrast float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinBlurScore:     100.0,
		MinFastBlurScore: 80.0,
		MinBrightness:    40.0,
		MaxBrightness:    220.0,
		MinContrast:      80.0,
	}
}

// QualityMetrics are the raw per-image measurements evaluated against the
// thresholds. Computation lives in internal/quality; this package only
// decides pass/fail and user-facing guidance.
type QualityMetrics struct {
	BlurScore     float64
	Brightness    float64
	ContrastRange float64
}

// QualityValidator turns raw quality metrics into a QualityResult
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Thresholds returns the active thresholds
func (qv *QualityValidator) Thresholds() QualityThresholds {
	return qv.thresholds
}

// Evaluate applies the full-frame thresholds to the measured metrics.
// The overall pass is the AND of the three sub-checks.
func (qv *QualityValidator) Evaluate(m QualityMetrics) models.QualityResult {
	return qv.evaluate(m, qv.thresholds.MinBlurScore)
}

// EvaluateFast applies the relaxed sharpness threshold used for real-time
// center-crop checks during live preview. Not suitable for final acceptance.
func (qv *QualityValidator) EvaluateFast(m QualityMetrics) models.QualityResult {
	return qv.evaluate(m, qv.thresholds.MinFastBlurScore)
}

func (qv *QualityValidator) evaluate(m QualityMetrics, minBlur float64) models.QualityResult {
	blur := models.CheckResult{
		Score:  m.BlurScore,
		Passed: m.BlurScore > minBlur,
	}
	if !blur.Passed {
		blur.Message = "Image is blurry. Hold the camera steady and try again."
	}

	brightness := models.CheckResult{
		Score:  m.Brightness,
		Passed: m.Brightness > qv.thresholds.MinBrightness && m.Brightness < qv.thresholds.MaxBrightness,
	}
	switch {
	case m.Brightness <= qv.thresholds.MinBrightness:
		brightness.Message = "Image is too dark. Improve the lighting."
	case m.Brightness >= qv.thresholds.MaxBrightness:
		brightness.Message = "Image is too bright. Reduce the exposure or move away from direct light."
	}

	contrast := models.CheckResult{
		Score:  m.ContrastRange,
		Passed: m.ContrastRange > qv.thresholds.MinContrast,
	}
	if !contrast.Passed {
		contrast.Message = "Low contrast. Make sure the foot stands out from the background."
	}

	return models.QualityResult{
		Passed:     blur.Passed && brightness.Passed && contrast.Passed,
		Blur:       blur,
		Brightness: brightness,
		Contrast:   contrast,
	}
}
