package models

import "image"

// CheckResult is the outcome of a single quality sub-check.
// Score semantics depend on the check: Laplacian energy for blur (higher is
// sharper), mean grayscale value for brightness, grayscale range for contrast.
type CheckResult struct {
	Score   float64 `json:"score"`
	Passed  bool    `json:"passed"`
	Message string  `json:"message,omitempty"`
}

// QualityResult is the immutable result of analyzing one still image.
type QualityResult struct {
	Passed     bool        `json:"passed"`
	Blur       CheckResult `json:"blur"`
	Brightness CheckResult `json:"brightness"`
	Contrast   CheckResult `json:"contrast"`
}

// FirstFailureMessage returns the message of the highest-priority failing
// check. Blur is surfaced before brightness before contrast: an unsharp shot
// blocks any further assessment, so it is the one the user must fix first.
func (q QualityResult) FirstFailureMessage() string {
	switch {
	case !q.Blur.Passed:
		return q.Blur.Message
	case !q.Brightness.Passed:
		return q.Brightness.Message
	case !q.Contrast.Passed:
		return q.Contrast.Message
	}
	return ""
}

// AnalysisReport is the transport shape for a standalone quality analysis.
type AnalysisReport struct {
	ImageURL          string        `json:"image_url"`
	Timestamp         string        `json:"timestamp"`
	ProcessingTimeSec float64       `json:"processing_time_sec"`
	Width             int           `json:"width"`
	Height            int           `json:"height"`
	Quality           QualityResult `json:"quality"`
}

// ExtractedFrame is a candidate frame pulled from a recorded clip.
// Data holds the PNG-encoded frame owned by the receiver; Preview is the
// decoded raster kept for display and is caller-owned after extraction.
type ExtractedFrame struct {
	Data        []byte        `json:"-"`
	TimestampMs float64       `json:"timestamp_ms"`
	Quality     QualityResult `json:"quality"`
	Preview     image.Image   `json:"-"`
}
