package models

// Mode is the capture context: who operates the camera.
type Mode string

const (
	ModeSelf      Mode = "self"
	ModeClinician Mode = "clinician"
)

// Valid reports whether m is a known capture mode.
func (m Mode) Valid() bool {
	return m == ModeSelf || m == ModeClinician
}

// Side identifies which foot a step targets.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Angle is an anatomical viewpoint for foot capture.
type Angle string

const (
	AnglePlantar   Angle = "plantar"   // sole, from below
	AngleMedial    Angle = "medial"    // inner side
	AngleLateral   Angle = "lateral"   // outer side
	AngleAnterior  Angle = "anterior"  // front
	AnglePosterior Angle = "posterior" // back, heel and achilles
	AngleDorsal    Angle = "dorsal"    // top
	AngleShoeSole  Angle = "shoe-sole" // wear pattern on the shoe
)

// CaptureKind records how a step's shot was produced: a single photo, or the
// best frame extracted from a recorded clip.
type CaptureKind string

const (
	CapturePhoto CaptureKind = "photo"
	CaptureVideo CaptureKind = "video"
)

// ScanStep is one unit of work in the guided capture sequence. Steps are
// static configuration: the planner only filters and orders a fixed registry.
type ScanStep struct {
	ID               string `json:"id"`
	Side             Side   `json:"side"`
	Angle            Angle  `json:"angle"`
	Label            string `json:"label"`
	Instruction      string `json:"instruction"`
	Tip              string `json:"tip,omitempty"`
	PlainDescription string `json:"plain_description"`
	CameraPosition   string `json:"camera_position"`

	SelfMode          bool `json:"self_mode"`
	ClinicianMode     bool `json:"clinician_mode"`
	RequiresAssistant bool `json:"requires_assistant"`

	// Mandatory steps cannot be skipped without an accepted shot.
	Mandatory bool `json:"mandatory"`
}

// StepState is the per-step progress within a capture session.
type StepState string

const (
	StepPending  StepState = "pending"
	StepAccepted StepState = "accepted"
	StepSkipped  StepState = "skipped"
)

// StepProgress reports one step's status for an external progress UI.
type StepProgress struct {
	StepID  string         `json:"step_id"`
	State   StepState      `json:"state"`
	Kind    CaptureKind    `json:"kind,omitempty"`
	Quality *QualityResult `json:"quality,omitempty"`
	ShotURL string         `json:"shot_url,omitempty"`
}

// SessionProgress is a snapshot of a capture session.
type SessionProgress struct {
	SessionID  string         `json:"session_id"`
	Mode       Mode           `json:"mode"`
	StepIndex  int            `json:"step_index"`
	TotalSteps int            `json:"total_steps"`
	Complete   bool           `json:"complete"`
	Steps      []StepProgress `json:"steps"`
}
