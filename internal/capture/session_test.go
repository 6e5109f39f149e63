package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/internal/frames"
	"go-scan-capture/internal/quality"
	"go-scan-capture/pkg/models"
)

// stubAnalyzer returns a fixed result regardless of the pixels.
type stubAnalyzer struct {
	result models.QualityResult
}

func (s stubAnalyzer) Analyze(image.Image) models.QualityResult { return s.result }

func (s stubAnalyzer) AnalyzeFast(image.Image) models.QualityResult { return s.result }

func passResult() models.QualityResult {
	return models.QualityResult{
		Passed:     true,
		Blur:       models.CheckResult{Score: 500, Passed: true},
		Brightness: models.CheckResult{Score: 130, Passed: true},
		Contrast:   models.CheckResult{Score: 200, Passed: true},
	}
}

func failResult() models.QualityResult {
	return models.QualityResult{
		Blur:       models.CheckResult{Score: 10, Passed: false, Message: "Image is blurry. Hold the camera steady and try again."},
		Brightness: models.CheckResult{Score: 130, Passed: true},
		Contrast:   models.CheckResult{Score: 200, Passed: true},
	}
}

// recordingPrompter captures the sequence of voice events.
type recordingPrompter struct {
	events []string
}

func (p *recordingPrompter) IntroduceSession(models.Mode) {
	p.events = append(p.events, "intro")
}

func (p *recordingPrompter) AnnounceAngle(angle models.Angle, side models.Side, _ models.Mode) {
	p.events = append(p.events, fmt.Sprintf("angle:%s-%s", side, angle))
}

func (p *recordingPrompter) ConfirmCapture() {
	p.events = append(p.events, "confirm")
}

func (p *recordingPrompter) RequestRetake(reason string) {
	p.events = append(p.events, "retake:"+reason)
}

func (p *recordingPrompter) AnnounceComplete() {
	p.events = append(p.events, "complete")
}

func (p *recordingPrompter) AnnounceVideoStart(side models.Side) {
	p.events = append(p.events, fmt.Sprintf("video-start:%s", side))
}

func (p *recordingPrompter) AnnounceVideoStop() {
	p.events = append(p.events, "video-stop")
}

func (p *recordingPrompter) last() string {
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1]
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 10, 10))
}

func newTestSession(t *testing.T, mode models.Mode, analyzer quality.Analyzer, voice Prompter) *Session {
	t.Helper()
	planner, err := NewPlanner()
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewSession(mode, planner, analyzer, nil, voice)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func TestNewSession_InvalidMode(t *testing.T) {
	planner, err := NewPlanner()
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewSession("upside-down", planner, stubAnalyzer{passResult()}, nil, nil)
	if err == nil {
		t.Fatal("Expected error for unknown mode")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestNewSession_AnnouncesFirstStep(t *testing.T) {
	voice := &recordingPrompter{}
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, voice)

	if session.ID() == "" {
		t.Error("Expected a session id")
	}
	if len(voice.events) != 2 || voice.events[0] != "intro" || voice.events[1] != "angle:left-plantar" {
		t.Errorf("Expected intro then first angle announcement, got %v", voice.events)
	}
}

func TestCapture_AcceptAdvances(t *testing.T) {
	voice := &recordingPrompter{}
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, voice)

	outcome, err := session.Capture("left-plantar", testImage(), []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Accepted {
		t.Error("Expected passing shot to be accepted")
	}
	if outcome.Kind != models.CapturePhoto {
		t.Errorf("Expected photo capture kind, got %q", outcome.Kind)
	}
	if outcome.NextStepID != "left-medial" {
		t.Errorf("Expected next step left-medial, got %q", outcome.NextStepID)
	}
	if outcome.Complete {
		t.Error("Expected session not complete after one step")
	}

	current, ok := session.CurrentStep()
	if !ok || current.ID != "left-medial" {
		t.Errorf("Expected cursor at left-medial, got %v ok=%v", current.ID, ok)
	}
	if voice.last() != "angle:left-medial" {
		t.Errorf("Expected next angle announced, last event %q", voice.last())
	}
}

func TestCapture_RejectKeepsCursor(t *testing.T) {
	voice := &recordingPrompter{}
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{failResult()}, voice)

	outcome, err := session.Capture("left-plantar", testImage(), []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Accepted {
		t.Error("Expected failing shot to be rejected")
	}
	if outcome.RetakeReason == "" {
		t.Error("Expected a retake reason")
	}

	current, ok := session.CurrentStep()
	if !ok || current.ID != "left-plantar" {
		t.Errorf("Expected cursor unchanged at left-plantar, got %q", current.ID)
	}
	if voice.last() != "retake:"+outcome.RetakeReason {
		t.Errorf("Expected retake prompt, last event %q", voice.last())
	}
}

func TestCapture_FutureStepRejected(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	_, err := session.Capture("right-dorsal", testImage(), []byte("png"))
	if err == nil {
		t.Fatal("Expected error for a step beyond the cursor")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestCapture_UnknownStep(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	_, err := session.Capture("left-oblique", testImage(), []byte("png"))
	if err == nil {
		t.Fatal("Expected error for an unknown step")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found error, got: %v", err)
	}
}

func TestRetake_EarlierStepWithoutMovingCursor(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	mustCapture(t, session, "left-plantar")
	mustCapture(t, session, "left-medial")

	if err := session.Retake("left-plantar"); err != nil {
		t.Fatal(err)
	}

	progress := session.Progress()
	if progress.Steps[0].State != models.StepPending {
		t.Errorf("Expected retaken step pending, got %s", progress.Steps[0].State)
	}
	current, _ := session.CurrentStep()
	if current.ID != "left-lateral" {
		t.Errorf("Expected cursor to stay at left-lateral, got %q", current.ID)
	}

	// Recapturing the earlier step must not move the cursor either
	outcome, err := session.Capture("left-plantar", testImage(), []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Accepted {
		t.Error("Expected recapture to be accepted")
	}
	if outcome.NextStepID != "left-lateral" {
		t.Errorf("Expected next step still left-lateral, got %q", outcome.NextStepID)
	}
}

func TestRetake_FutureStepRejected(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	if err := session.Retake("right-dorsal"); err == nil {
		t.Fatal("Expected error retaking a step that was never reached")
	}
}

func TestSkip_MandatoryStepRejected(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	err := session.Skip("left-plantar")
	if err == nil {
		t.Fatal("Expected error skipping a mandatory step")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestSkip_NonCurrentStepRejected(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	if err := session.Skip("left-shoe-sole"); err == nil {
		t.Fatal("Expected error skipping a step that is not current")
	}
}

func TestSkip_OptionalStepsAndCompletion(t *testing.T) {
	voice := &recordingPrompter{}
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, voice)

	// Capture every foot step, then skip both shoe-sole steps
	for {
		current, ok := session.CurrentStep()
		if !ok {
			t.Fatal("Ran out of steps before reaching the shoe soles")
		}
		if current.Angle == models.AngleShoeSole {
			break
		}
		mustCapture(t, session, current.ID)
	}

	if err := session.Skip("left-shoe-sole"); err != nil {
		t.Fatal(err)
	}
	if err := session.Skip("right-shoe-sole"); err != nil {
		t.Fatal(err)
	}

	complete, missing := session.Complete()
	if !complete {
		t.Errorf("Expected session complete, missing: %v", missing)
	}
	if voice.last() != "complete" {
		t.Errorf("Expected completion announced, last event %q", voice.last())
	}

	progress := session.Progress()
	if !progress.Complete {
		t.Error("Expected progress snapshot to report complete")
	}
	last := progress.Steps[len(progress.Steps)-1]
	if last.State != models.StepSkipped {
		t.Errorf("Expected skipped state on shoe-sole step, got %s", last.State)
	}
}

func TestComplete_ReportsMissingSteps(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	mustCapture(t, session, "left-plantar")

	complete, missing := session.Complete()
	if complete {
		t.Fatal("Expected incomplete session")
	}
	if len(missing) != len(session.Plan())-1 {
		t.Errorf("Expected %d missing steps, got %d", len(session.Plan())-1, len(missing))
	}
	for _, id := range missing {
		if id == "left-plantar" {
			t.Error("Expected captured step not to be reported missing")
		}
	}
}

func TestShots_PlanOrderAndURL(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	mustCapture(t, session, "left-plantar")
	mustCapture(t, session, "left-medial")
	session.SetShotURL("left-plantar", "https://blob.example.com/shot.png")

	shots := session.Shots()
	if len(shots) != 2 {
		t.Fatalf("Expected 2 shots, got %d", len(shots))
	}
	if shots[0].StepID != "left-plantar" || shots[1].StepID != "left-medial" {
		t.Errorf("Expected plan order, got %q then %q", shots[0].StepID, shots[1].StepID)
	}
	if shots[0].URL != "https://blob.example.com/shot.png" {
		t.Errorf("Expected stored shot URL, got %q", shots[0].URL)
	}

	progress := session.Progress()
	if progress.Steps[0].ShotURL != "https://blob.example.com/shot.png" {
		t.Errorf("Expected shot URL in progress, got %q", progress.Steps[0].ShotURL)
	}
}

func TestReset(t *testing.T) {
	session := newTestSession(t, models.ModeSelf, stubAnalyzer{passResult()}, nil)

	mustCapture(t, session, "left-plantar")
	session.Reset()

	current, ok := session.CurrentStep()
	if !ok || current.ID != "left-plantar" {
		t.Errorf("Expected cursor back at the first step, got %q", current.ID)
	}
	if len(session.Shots()) != 0 {
		t.Error("Expected shots cleared after reset")
	}
}

func TestCaptureClip_AcceptsSharpestFrame(t *testing.T) {
	planner, err := NewPlanner()
	if err != nil {
		t.Fatal(err)
	}
	analyzer := quality.NewAnalyzer()
	extractor := frames.NewExtractorWithOptions(analyzer, 3, 500*time.Millisecond)
	voice := &recordingPrompter{}

	session, err := NewSession(models.ModeSelf, planner, analyzer, extractor, voice)
	if err != nil {
		t.Fatal(err)
	}

	src := &clipSource{duration: 3 * time.Second}
	outcome, extracted, err := session.CaptureClip(context.Background(), "left-plantar", src)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Accepted {
		t.Errorf("Expected sharpest frame to be accepted, got %+v", outcome)
	}
	if outcome.Kind != models.CaptureVideo {
		t.Errorf("Expected video capture kind, got %q", outcome.Kind)
	}
	if len(extracted) == 0 {
		t.Error("Expected extracted frames returned")
	}
	if voice.events[2] != "video-start:left" {
		t.Errorf("Expected video start announcement, got %v", voice.events)
	}

	progress := session.Progress()
	if progress.Steps[0].Kind != models.CaptureVideo {
		t.Errorf("Expected progress to record the clip capture, got %q", progress.Steps[0].Kind)
	}
}

func TestCaptureClip_NoUsableFrames(t *testing.T) {
	planner, err := NewPlanner()
	if err != nil {
		t.Fatal(err)
	}
	analyzer := quality.NewAnalyzer()
	extractor := frames.NewExtractor(analyzer)
	voice := &recordingPrompter{}

	session, err := NewSession(models.ModeSelf, planner, analyzer, extractor, voice)
	if err != nil {
		t.Fatal(err)
	}

	// Flat frames never pass the blur gate
	src := &clipSource{duration: 3 * time.Second, flat: true}
	outcome, extracted, err := session.CaptureClip(context.Background(), "left-plantar", src)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Accepted {
		t.Error("Expected no acceptance without usable frames")
	}
	if outcome.Kind != models.CaptureVideo {
		t.Errorf("Expected video capture kind, got %q", outcome.Kind)
	}
	if outcome.RetakeReason == "" {
		t.Error("Expected a retake reason")
	}
	if len(extracted) != 0 {
		t.Errorf("Expected no extracted frames, got %d", len(extracted))
	}
}

// clipSource serves a sharp checkerboard, or a flat gray frame when flat
// is set.
type clipSource struct {
	duration time.Duration
	flat     bool
}

func (c *clipSource) Duration() time.Duration { return c.duration }

func (c *clipSource) Seek(context.Context, time.Duration) error { return nil }

func (c *clipSource) Frame() (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(128)
			if !c.flat && (x+y)%2 == 0 {
				v = 255
			} else if !c.flat {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img, nil
}

func mustCapture(t *testing.T, session *Session, stepID string) {
	t.Helper()
	outcome, err := session.Capture(stepID, testImage(), []byte("png"))
	if err != nil {
		t.Fatalf("Capture %s: %v", stepID, err)
	}
	if !outcome.Accepted {
		t.Fatalf("Capture %s: expected acceptance, got %+v", stepID, outcome)
	}
}
