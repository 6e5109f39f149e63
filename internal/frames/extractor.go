package frames

import (
	"bytes"
	"context"
	"image/png"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"go-scan-capture/internal/logger"
	"go-scan-capture/internal/quality"
	"go-scan-capture/pkg/models"
)

const (
	// DefaultTargetFrames is how many frames extraction aims to return.
	DefaultTargetFrames = 5

	// DefaultInterval is the minimum spacing between sampled timestamps.
	DefaultInterval = 500 * time.Millisecond

	// Candidates are oversampled by this factor relative to the target so
	// ranking has enough sharp frames to choose from.
	oversampleFactor = 3
)

// Extractor samples a recorded clip, scores each candidate frame through the
// quality analyzer and keeps the sharpest ones.
type Extractor struct {
	analyzer     quality.Analyzer
	targetFrames int
	interval     time.Duration
}

// NewExtractor creates an extractor with the default target count and
// sampling interval.
func NewExtractor(analyzer quality.Analyzer) *Extractor {
	return &Extractor{
		analyzer:     analyzer,
		targetFrames: DefaultTargetFrames,
		interval:     DefaultInterval,
	}
}

// NewExtractorWithOptions creates an extractor with a custom target count
// and sampling interval. Non-positive values fall back to the defaults.
func NewExtractorWithOptions(analyzer quality.Analyzer, targetFrames int, interval time.Duration) *Extractor {
	e := NewExtractor(analyzer)
	if targetFrames > 0 {
		e.targetFrames = targetFrames
	}
	if interval > 0 {
		e.interval = interval
	}
	return e
}

// ExtractBestFrames returns up to the target number of blur-passing frames in
// chronological order. Extraction is best effort: a decode or seek failure
// ends sampling early and whatever was collected so far is ranked and
// returned, and zero frames is a valid result the caller must handle.
// Cancellation is honored between sampled timestamps.
func (e *Extractor) ExtractBestFrames(ctx context.Context, src FrameSource) []models.ExtractedFrame {
	duration := src.Duration()
	if duration <= 0 {
		return nil
	}

	// Sample roughly 3x more candidates than needed, never finer than the
	// configured interval.
	step := duration / time.Duration(e.targetFrames*oversampleFactor)
	if step < e.interval {
		step = e.interval
	}

	var candidates []models.ExtractedFrame
	for offset := time.Duration(0); offset <= duration; offset += step {
		if ctx.Err() != nil {
			break
		}

		// Seek-and-wait before decoding: one decoder, strictly sequential.
		if err := src.Seek(ctx, offset); err != nil {
			logger.WithError(err).WithField("offset_ms", offset.Milliseconds()).
				Debug("Frame seek failed, ending extraction early")
			break
		}
		img, err := src.Frame()
		if err != nil {
			logger.WithError(err).WithField("offset_ms", offset.Milliseconds()).
				Debug("Frame decode failed, ending extraction early")
			break
		}

		result := e.analyzer.Analyze(img)
		// Only sharpness filters candidates; lighting is assumed roughly
		// constant across one clip.
		if !result.Blur.Passed {
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			logger.WithError(err).Warn("Failed to encode extracted frame")
			continue
		}

		candidates = append(candidates, models.ExtractedFrame{
			Data:        buf.Bytes(),
			TimestampMs: float64(offset) / float64(time.Millisecond),
			Quality:     result,
			Preview:     img,
		})
	}

	selected := selectBest(candidates, e.targetFrames)

	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"selected":   len(selected),
		"target":     e.targetFrames,
	}).Debug("Frame extraction finished")

	return selected
}

// selectBest ranks candidates by sharpness, truncates to the target count
// and restores chronological order.
func selectBest(candidates []models.ExtractedFrame, n int) []models.ExtractedFrame {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Quality.Blur.Score > candidates[j].Quality.Blur.Score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TimestampMs < candidates[j].TimestampMs
	})
	return candidates
}
