package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-scan-capture/internal/errors"
	"go-scan-capture/internal/frames"
	"go-scan-capture/internal/logger"
	"go-scan-capture/internal/quality"
	"go-scan-capture/pkg/models"
)

// Shot is an accepted capture for a single step.
type Shot struct {
	StepID  string
	Kind    models.CaptureKind
	Data    []byte
	Image   image.Image
	Quality models.QualityResult
	URL     string
}

// Outcome reports the result of a capture attempt.
type Outcome struct {
	StepID       string               `json:"step_id"`
	Kind         models.CaptureKind   `json:"kind"`
	Accepted     bool                 `json:"accepted"`
	Quality      models.QualityResult `json:"quality"`
	RetakeReason string               `json:"retake_reason,omitempty"`
	NextStepID   string               `json:"next_step_id,omitempty"`
	Complete     bool                 `json:"complete"`
}

// Session is the guided capture state machine. It walks the mode-filtered
// plan one step at a time, gating advancement on quality acceptance. The
// step cursor only moves forward; earlier steps are revisited through Retake
// followed by a fresh Capture, which never moves the cursor back.
type Session struct {
	id        string
	mode      models.Mode
	plan      []models.ScanStep
	planIndex map[string]int

	analyzer  quality.Analyzer
	extractor *frames.Extractor
	voice     Prompter

	mu        sync.Mutex
	stepIndex int
	shots     map[string]*Shot
	skipped   map[string]bool
}

// NewSession builds a session over the planner's plan for the given mode and
// announces the first step.
func NewSession(mode models.Mode, planner *Planner, analyzer quality.Analyzer, extractor *frames.Extractor, voice Prompter) (*Session, error) {
	if !mode.Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown capture mode %q", mode), nil)
	}
	if voice == nil {
		voice = NoopPrompter{}
	}
	plan := planner.Steps(mode)
	planIndex := make(map[string]int, len(plan))
	for i, step := range plan {
		planIndex[step.ID] = i
	}
	s := &Session{
		id:        uuid.NewString(),
		mode:      mode,
		plan:      plan,
		planIndex: planIndex,
		analyzer:  analyzer,
		extractor: extractor,
		voice:     voice,
		shots:     make(map[string]*Shot),
		skipped:   make(map[string]bool),
	}
	voice.IntroduceSession(mode)
	if len(plan) > 0 {
		first := plan[0]
		voice.AnnounceAngle(first.Angle, first.Side, mode)
	}
	logger.WithSession(s.id).WithFields(logrus.Fields{
		"mode":  mode,
		"steps": len(plan),
	}).Info("capture session started")
	return s, nil
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Mode() models.Mode { return s.mode }

// Plan returns the ordered steps of this session.
func (s *Session) Plan() []models.ScanStep {
	out := make([]models.ScanStep, len(s.plan))
	copy(out, s.plan)
	return out
}

// CurrentStep returns the step the cursor points at. ok is false once every
// step has been accepted or skipped.
func (s *Session) CurrentStep() (models.ScanStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() (models.ScanStep, bool) {
	if s.stepIndex >= len(s.plan) {
		return models.ScanStep{}, false
	}
	return s.plan[s.stepIndex], true
}

// Capture evaluates a shot for the given step. The step must be the current
// one or an earlier step whose shot was cleared with Retake. An accepted shot
// is stored along with the raw bytes; a rejected shot leaves the session
// unchanged and carries the retake reason back to the caller.
func (s *Session) Capture(stepID string, img image.Image, data []byte) (Outcome, error) {
	return s.capture(stepID, img, data, models.CapturePhoto)
}

func (s *Session) capture(stepID string, img image.Image, data []byte, kind models.CaptureKind) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.planIndex[stepID]
	if !ok {
		return Outcome{}, errors.NewNotFoundError(fmt.Sprintf("step %q is not part of this session", stepID), nil)
	}
	if idx > s.stepIndex {
		return Outcome{}, errors.NewValidationError(fmt.Sprintf("step %q is not reachable yet", stepID), nil)
	}

	result := s.analyzer.Analyze(img)
	outcome := Outcome{StepID: stepID, Kind: kind, Quality: result}
	if !result.Passed {
		outcome.RetakeReason = result.FirstFailureMessage()
		s.voice.RequestRetake(outcome.RetakeReason)
		logger.WithStep(s.id, stepID).WithField("reason", outcome.RetakeReason).Info("shot rejected")
		return outcome, nil
	}

	s.shots[stepID] = &Shot{StepID: stepID, Kind: kind, Data: data, Image: img, Quality: result}
	delete(s.skipped, stepID)
	outcome.Accepted = true
	s.voice.ConfirmCapture()

	if idx == s.stepIndex {
		s.advanceLocked()
	}
	s.finishOutcomeLocked(&outcome)
	logger.WithStep(s.id, stepID).WithFields(logrus.Fields{
		"kind": kind,
		"blur": result.Blur.Score,
	}).Info("shot accepted")
	return outcome, nil
}

// CaptureClip extracts the sharpest frames from a recorded clip and runs the
// single best frame through the normal acceptance path for the step. The
// remaining selected frames are returned so the caller can persist them.
func (s *Session) CaptureClip(ctx context.Context, stepID string, src frames.FrameSource) (Outcome, []models.ExtractedFrame, error) {
	if s.extractor == nil {
		return Outcome{}, nil, errors.NewValidationError("clip capture is not enabled for this session", nil)
	}
	step, ok := s.step(stepID)
	if !ok {
		return Outcome{}, nil, errors.NewNotFoundError(fmt.Sprintf("step %q is not part of this session", stepID), nil)
	}

	s.voice.AnnounceVideoStart(step.Side)
	extracted := s.extractor.ExtractBestFrames(ctx, src)
	s.voice.AnnounceVideoStop()

	if len(extracted) == 0 {
		outcome := Outcome{StepID: stepID, Kind: models.CaptureVideo, RetakeReason: "No usable frames in the recording. Record again, moving the camera slowly."}
		s.voice.RequestRetake(outcome.RetakeReason)
		return outcome, nil, nil
	}

	best := extracted[0]
	for _, f := range extracted[1:] {
		if f.Quality.Blur.Score > best.Quality.Blur.Score {
			best = f
		}
	}
	outcome, err := s.capture(stepID, best.Preview, best.Data, models.CaptureVideo)
	return outcome, extracted, err
}

// Retake clears the stored shot for a current or earlier step so it can be
// captured again. The cursor does not move.
func (s *Session) Retake(stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.planIndex[stepID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("step %q is not part of this session", stepID), nil)
	}
	if idx > s.stepIndex {
		return errors.NewValidationError(fmt.Sprintf("step %q has not been captured yet", stepID), nil)
	}
	delete(s.shots, stepID)
	delete(s.skipped, stepID)

	step := s.plan[idx]
	s.voice.AnnounceAngle(step.Angle, step.Side, s.mode)
	return nil
}

// Skip marks the current step as skipped and advances. Mandatory steps cannot
// be skipped.
func (s *Session) Skip(stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.currentLocked()
	if !ok || current.ID != stepID {
		return errors.NewValidationError(fmt.Sprintf("step %q is not the current step", stepID), nil)
	}
	if current.Mandatory {
		return errors.NewValidationError(fmt.Sprintf("step %q is required and cannot be skipped", stepID), nil)
	}
	s.skipped[stepID] = true
	s.advanceLocked()
	if next, ok := s.currentLocked(); ok {
		s.voice.AnnounceAngle(next.Angle, next.Side, s.mode)
	} else {
		s.voice.AnnounceComplete()
	}
	return nil
}

// Complete reports whether the session can be finalized. When it cannot, the
// ids of the steps still missing an accepted shot or a skip are returned.
func (s *Session) Complete() (bool, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	for _, step := range s.plan {
		if _, captured := s.shots[step.ID]; captured {
			continue
		}
		if s.skipped[step.ID] {
			continue
		}
		missing = append(missing, step.ID)
	}
	return len(missing) == 0, missing
}

// Progress snapshots the session for an external progress UI.
func (s *Session) Progress() models.SessionProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]models.StepProgress, 0, len(s.plan))
	complete := true
	for _, step := range s.plan {
		sp := models.StepProgress{StepID: step.ID, State: models.StepPending}
		if shot, ok := s.shots[step.ID]; ok {
			q := shot.Quality
			sp.State = models.StepAccepted
			sp.Kind = shot.Kind
			sp.Quality = &q
			sp.ShotURL = shot.URL
		} else if s.skipped[step.ID] {
			sp.State = models.StepSkipped
		} else {
			complete = false
		}
		steps = append(steps, sp)
	}
	return models.SessionProgress{
		SessionID:  s.id,
		Mode:       s.mode,
		StepIndex:  s.stepIndex,
		TotalSteps: len(s.plan),
		Complete:   complete,
		Steps:      steps,
	}
}

// Shots returns the accepted shots in plan order.
func (s *Session) Shots() []*Shot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Shot, 0, len(s.shots))
	for _, step := range s.plan {
		if shot, ok := s.shots[step.ID]; ok {
			out = append(out, shot)
		}
	}
	return out
}

// SetShotURL records the persisted location of an accepted shot.
func (s *Session) SetShotURL(stepID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shot, ok := s.shots[stepID]; ok {
		shot.URL = url
	}
}

// Reset clears all shots and moves the cursor back to the first step.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepIndex = 0
	s.shots = make(map[string]*Shot)
	s.skipped = make(map[string]bool)
	if len(s.plan) > 0 {
		first := s.plan[0]
		s.voice.AnnounceAngle(first.Angle, first.Side, s.mode)
	}
}

func (s *Session) step(stepID string) (models.ScanStep, bool) {
	idx, ok := s.planIndex[stepID]
	if !ok {
		return models.ScanStep{}, false
	}
	return s.plan[idx], true
}

// advanceLocked moves the cursor past every step that already has an accepted
// shot or a skip.
func (s *Session) advanceLocked() {
	for s.stepIndex < len(s.plan) {
		id := s.plan[s.stepIndex].ID
		if _, ok := s.shots[id]; !ok && !s.skipped[id] {
			return
		}
		s.stepIndex++
	}
}

func (s *Session) finishOutcomeLocked(outcome *Outcome) {
	if next, ok := s.currentLocked(); ok {
		outcome.NextStepID = next.ID
		if outcome.Accepted && next.ID != outcome.StepID {
			s.voice.AnnounceAngle(next.Angle, next.Side, s.mode)
		}
		return
	}
	outcome.Complete = true
	if outcome.Accepted {
		s.voice.AnnounceComplete()
	}
}
