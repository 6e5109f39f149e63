package capture

import (
	"fmt"

	"go-scan-capture/pkg/models"
)

// stepDef is a registry entry. Instructions differ by capture mode, so the
// planner materializes the mode-specific text when building a plan.
type stepDef struct {
	id               string
	side             models.Side
	angle            models.Angle
	label            string
	instructionSelf  string
	instructionClin  string
	tip              string
	plainDescription string
	cameraPosition   string

	selfMode          bool
	clinicianMode     bool
	requiresAssistant bool
	mandatory         bool
}

// stepRegistry is the fixed capture sequence: grouped by foot side, then the
// anatomical angle order, with the shoe-sole wear-pattern pair at the end.
// Steps are static configuration and are never mutated at runtime.
func stepRegistry() []stepDef {
	var defs []stepDef
	for _, side := range []models.Side{models.SideLeft, models.SideRight} {
		defs = append(defs, footSteps(side)...)
	}
	defs = append(defs,
		shoeSoleStep(models.SideLeft),
		shoeSoleStep(models.SideRight),
	)
	return defs
}

func footSteps(side models.Side) []stepDef {
	name := string(side)
	return []stepDef{
		{
			id:    fmt.Sprintf("%s-plantar", name),
			side:  side,
			angle: models.AnglePlantar,
			label: fmt.Sprintf("Sole of the %s foot", name),
			instructionSelf: fmt.Sprintf("Sit down, lift your %s foot and have your helper photograph "+
				"the entire sole straight on, from toes to heel.", name),
			instructionClin: fmt.Sprintf("With the patient prone or seated, photograph the full plantar "+
				"surface of the %s foot perpendicular to the sole.", name),
			tip:               "Keep the whole sole inside the frame, toes at the top.",
			plainDescription:  "bottom of the foot",
			cameraPosition:    "directly below the sole, lens parallel to it",
			selfMode:          true,
			clinicianMode:     true,
			requiresAssistant: true,
			mandatory:         true,
		},
		{
			id:    fmt.Sprintf("%s-medial", name),
			side:  side,
			angle: models.AngleMedial,
			label: fmt.Sprintf("Inner side of the %s foot", name),
			instructionSelf: fmt.Sprintf("Stand with your weight on both feet and photograph the inner "+
				"side of your %s foot at floor level, showing the arch.", name),
			instructionClin: fmt.Sprintf("Photograph the medial side of the %s foot at floor level with "+
				"the patient standing in a relaxed stance; the arch must be visible.", name),
			tip:              "Hold the camera at floor level, not angled down.",
			plainDescription: "inner side, showing the arch",
			cameraPosition:   "floor level, inner side of the foot",
			selfMode:         true,
			clinicianMode:    true,
			mandatory:        true,
		},
		{
			id:    fmt.Sprintf("%s-lateral", name),
			side:  side,
			angle: models.AngleLateral,
			label: fmt.Sprintf("Outer side of the %s foot", name),
			instructionSelf: fmt.Sprintf("Photograph the outer side of your %s foot at floor level while "+
				"standing normally.", name),
			instructionClin: fmt.Sprintf("Photograph the lateral side of the %s foot at floor level, "+
				"patient standing in a relaxed stance.", name),
			tip:              "Keep both the heel and the little toe in frame.",
			plainDescription: "outer side of the foot",
			cameraPosition:   "floor level, outer side of the foot",
			selfMode:         true,
			clinicianMode:    true,
			mandatory:        true,
		},
		{
			id:    fmt.Sprintf("%s-anterior", name),
			side:  side,
			angle: models.AngleAnterior,
			label: fmt.Sprintf("Front of the %s foot", name),
			instructionSelf: fmt.Sprintf("Stand facing the camera and photograph your %s foot and ankle "+
				"from the front, from about knee height.", name),
			instructionClin: fmt.Sprintf("Photograph the %s foot and ankle from directly in front, "+
				"patient standing with feet hip-width apart.", name),
			tip:              "Toes pointing straight at the camera.",
			plainDescription: "front of the foot and ankle",
			cameraPosition:   "in front of the foot, knee height",
			selfMode:         true,
			clinicianMode:    true,
			mandatory:        true,
		},
		{
			id:    fmt.Sprintf("%s-posterior", name),
			side:  side,
			angle: models.AnglePosterior,
			label: fmt.Sprintf("Back of the %s heel", name),
			instructionClin: fmt.Sprintf("Photograph the %s heel and achilles tendon from directly "+
				"behind, patient standing; the heel alignment must be visible.", name),
			tip:              "Camera square to the back of the heel.",
			plainDescription: "back of the heel and achilles tendon",
			cameraPosition:   "directly behind the heel, ankle height",
			clinicianMode:    true,
			mandatory:        true,
		},
		{
			id:    fmt.Sprintf("%s-dorsal", name),
			side:  side,
			angle: models.AngleDorsal,
			label: fmt.Sprintf("Top of the %s foot", name),
			instructionSelf: fmt.Sprintf("Look down at your %s foot and photograph the top of it, "+
				"including all toes and the ankle.", name),
			instructionClin: fmt.Sprintf("Photograph the dorsum of the %s foot from above, including "+
				"toes and ankle.", name),
			tip:              "Shoot straight down, avoid your own shadow.",
			plainDescription: "top of the foot",
			cameraPosition:   "above the foot, pointing straight down",
			selfMode:         true,
			clinicianMode:    true,
			mandatory:        true,
		},
	}
}

func shoeSoleStep(side models.Side) stepDef {
	name := string(side)
	return stepDef{
		id:    fmt.Sprintf("%s-shoe-sole", name),
		side:  side,
		angle: models.AngleShoeSole,
		label: fmt.Sprintf("Sole of the %s shoe", name),
		instructionSelf: fmt.Sprintf("Take your most worn %s shoe and photograph its sole so the wear "+
			"pattern is clearly visible.", name),
		instructionClin: fmt.Sprintf("Photograph the sole of the patient's most worn %s shoe, wear "+
			"pattern clearly visible.", name),
		tip:              "Good light helps the wear pattern show.",
		plainDescription: "wear pattern on the shoe sole",
		cameraPosition:   "directly above the upturned sole",
		selfMode:         true,
		clinicianMode:    true,
		mandatory:        false,
	}
}

// Planner filters the fixed step registry by capture mode. Ordering is the
// registry order and is stable across calls.
type Planner struct {
	defs []stepDef
}

// NewPlanner builds a planner over the fixed registry and asserts that every
// registered step is reachable under at least one mode.
func NewPlanner() (*Planner, error) {
	defs := stepRegistry()
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.id] {
			return nil, fmt.Errorf("duplicate step id %q in registry", d.id)
		}
		seen[d.id] = true
		if !d.selfMode && !d.clinicianMode {
			return nil, fmt.Errorf("step %q is unreachable: enabled in no capture mode", d.id)
		}
	}
	return &Planner{defs: defs}, nil
}

// Steps returns the ordered plan for the given mode. A step is included iff
// its applicability flag matches the mode.
func (p *Planner) Steps(mode models.Mode) []models.ScanStep {
	steps := make([]models.ScanStep, 0, len(p.defs))
	for _, d := range p.defs {
		if mode == models.ModeSelf && !d.selfMode {
			continue
		}
		if mode == models.ModeClinician && !d.clinicianMode {
			continue
		}
		steps = append(steps, d.toStep(mode))
	}
	return steps
}

func (d stepDef) toStep(mode models.Mode) models.ScanStep {
	instruction := d.instructionClin
	if mode == models.ModeSelf && d.instructionSelf != "" {
		instruction = d.instructionSelf
	}
	return models.ScanStep{
		ID:                d.id,
		Side:              d.side,
		Angle:             d.angle,
		Label:             d.label,
		Instruction:       instruction,
		Tip:               d.tip,
		PlainDescription:  d.plainDescription,
		CameraPosition:    d.cameraPosition,
		SelfMode:          d.selfMode,
		ClinicianMode:     d.clinicianMode,
		RequiresAssistant: d.requiresAssistant,
		Mandatory:         d.mandatory,
	}
}
