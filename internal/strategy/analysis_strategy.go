package strategy

import (
	"image"

	"go-scan-capture/internal/quality"
	"go-scan-capture/pkg/models"
)

// AnalysisStrategy defines the interface for different analysis strategies
type AnalysisStrategy interface {
	Analyze(img image.Image) models.QualityResult
	GetStrategyName() string
}

// FullAnalysisStrategy runs every quality check over the whole image.
type FullAnalysisStrategy struct {
	analyzer quality.Analyzer
}

// NewFullAnalysisStrategy creates a new full analysis strategy
func NewFullAnalysisStrategy(analyzer quality.Analyzer) AnalysisStrategy {
	return &FullAnalysisStrategy{analyzer: analyzer}
}

// Analyze performs complete quality analysis
func (s *FullAnalysisStrategy) Analyze(img image.Image) models.QualityResult {
	return s.analyzer.Analyze(img)
}

// GetStrategyName returns the strategy name
func (s *FullAnalysisStrategy) GetStrategyName() string {
	return "full_analysis"
}

// FastAnalysisStrategy trades accuracy for latency by scoring only a center
// crop, for live viewfinder feedback.
type FastAnalysisStrategy struct {
	analyzer quality.Analyzer
}

// NewFastAnalysisStrategy creates a new fast analysis strategy
func NewFastAnalysisStrategy(analyzer quality.Analyzer) AnalysisStrategy {
	return &FastAnalysisStrategy{analyzer: analyzer}
}

// Analyze performs reduced-cost analysis on the image center
func (s *FastAnalysisStrategy) Analyze(img image.Image) models.QualityResult {
	return s.analyzer.AnalyzeFast(img)
}

// GetStrategyName returns the strategy name
func (s *FastAnalysisStrategy) GetStrategyName() string {
	return "fast_analysis"
}

// Selector picks the strategy for a request.
type Selector struct {
	full AnalysisStrategy
	fast AnalysisStrategy
}

// NewSelector creates a selector over both strategies.
func NewSelector(analyzer quality.Analyzer) *Selector {
	return &Selector{
		full: NewFullAnalysisStrategy(analyzer),
		fast: NewFastAnalysisStrategy(analyzer),
	}
}

// Choose returns the fast strategy when fast is set, the full one otherwise.
func (s *Selector) Choose(fast bool) AnalysisStrategy {
	if fast {
		return s.fast
	}
	return s.full
}
