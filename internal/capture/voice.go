package capture

import (
	"fmt"
	"sync"

	"go-scan-capture/internal/logger"
	"go-scan-capture/pkg/models"
)

// Prompter maps capture flow transitions to spoken guidance. Implementations
// must never block the capture flow and must never return errors to it.
type Prompter interface {
	IntroduceSession(mode models.Mode)
	AnnounceAngle(angle models.Angle, side models.Side, mode models.Mode)
	ConfirmCapture()
	RequestRetake(reason string)
	AnnounceComplete()
	AnnounceVideoStart(side models.Side)
	AnnounceVideoStop()
}

// Speaker is the underlying text-to-speech capability. Speak with interrupt
// set cancels any in-flight utterance first.
type Speaker interface {
	Speak(utterance string, interrupt bool) error
	Cancel()
}

// SpeechPrompter renders flow transitions as utterances on a Speaker.
// Instructions the user must hear (angle announcements, retake requests)
// interrupt whatever is currently being spoken; confirmations do not.
type SpeechPrompter struct {
	speaker Speaker

	mu    sync.Mutex
	muted bool
}

func NewSpeechPrompter(speaker Speaker) *SpeechPrompter {
	return &SpeechPrompter{speaker: speaker}
}

// SetMuted suppresses all utterances until unmuted. Muting cancels the
// utterance currently being spoken.
func (p *SpeechPrompter) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	if muted && p.speaker != nil {
		p.speaker.Cancel()
	}
}

func (p *SpeechPrompter) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *SpeechPrompter) IntroduceSession(mode models.Mode) {
	if mode == models.ModeClinician {
		p.say("Starting a guided scan. Follow the steps shown for each capture.", true)
		return
	}
	p.say("Welcome. I will guide you through photographing your feet, one step at a time.", true)
}

func (p *SpeechPrompter) AnnounceAngle(angle models.Angle, side models.Side, mode models.Mode) {
	table := clinicianAngleUtterances
	if mode == models.ModeSelf {
		table = selfAngleUtterances
	}
	tmpl, ok := table[angle]
	if !ok {
		logger.Logger.WithField("angle", angle).Debug("no utterance registered for angle")
		return
	}
	p.say(fmt.Sprintf(tmpl, side), true)
}

func (p *SpeechPrompter) ConfirmCapture() {
	p.say("Got it. That photo looks good.", false)
}

func (p *SpeechPrompter) RequestRetake(reason string) {
	p.say("Let's try that one again. "+reason, true)
}

func (p *SpeechPrompter) AnnounceComplete() {
	p.say("All done. Every photo has been captured.", true)
}

func (p *SpeechPrompter) AnnounceVideoStart(side models.Side) {
	p.say(fmt.Sprintf("Recording the %s foot now. Move the camera slowly around it.", side), true)
}

func (p *SpeechPrompter) AnnounceVideoStop() {
	p.say("Recording finished.", false)
}

func (p *SpeechPrompter) say(utterance string, interrupt bool) {
	p.mu.Lock()
	muted := p.muted
	p.mu.Unlock()
	if muted || p.speaker == nil {
		return
	}
	if err := p.speaker.Speak(utterance, interrupt); err != nil {
		// Speech failures degrade silently; the visual flow carries on.
		logger.Logger.WithError(err).Debug("speech prompt failed")
	}
}

var selfAngleUtterances = map[models.Angle]string{
	models.AnglePlantar:  "Next, the sole of your %s foot. Sit down and have your helper photograph it straight on.",
	models.AngleMedial:   "Now the inner side of your %s foot. Hold the camera at floor level so the arch is visible.",
	models.AngleLateral:  "Now the outer side of your %s foot, again at floor level.",
	models.AngleAnterior: "Now the front of your %s foot. Stand facing the camera.",
	models.AngleDorsal:   "Now the top of your %s foot. Point the camera straight down at it.",
	models.AngleShoeSole: "Finally, photograph the sole of your most worn %s shoe.",
}

var clinicianAngleUtterances = map[models.Angle]string{
	models.AnglePlantar:   "Next capture: plantar surface, %s foot.",
	models.AngleMedial:    "Next capture: medial side, %s foot, floor level.",
	models.AngleLateral:   "Next capture: lateral side, %s foot, floor level.",
	models.AngleAnterior:  "Next capture: anterior view, %s foot and ankle.",
	models.AnglePosterior: "Next capture: posterior view, %s heel, camera square to the heel.",
	models.AngleDorsal:    "Next capture: dorsal view, %s foot from above.",
	models.AngleShoeSole:  "Next capture: sole of the patient's most worn %s shoe.",
}

// NoopPrompter discards all prompts. Used when voice guidance is disabled and
// in tests that do not assert on speech.
type NoopPrompter struct{}

func (NoopPrompter) IntroduceSession(models.Mode)                         {}
func (NoopPrompter) AnnounceAngle(models.Angle, models.Side, models.Mode) {}
func (NoopPrompter) ConfirmCapture()                                      {}
func (NoopPrompter) RequestRetake(string)                                 {}
func (NoopPrompter) AnnounceComplete()                                    {}
func (NoopPrompter) AnnounceVideoStart(models.Side)                       {}
func (NoopPrompter) AnnounceVideoStop()                                   {}
