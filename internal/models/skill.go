package models

import (
	"encoding/json"
	"fmt"
)

// Skill identifies one of the supported vision operations.
type Skill string

const (
	SkillDetect  Skill = "detect"
	SkillPoint   Skill = "point"
	SkillQuery   Skill = "query"
	SkillCaption Skill = "caption"
)

// AllSkills lists every skill in priority order. Routing score ties and
// analytics tie-breaks resolve to the earliest entry.
var AllSkills = []Skill{SkillDetect, SkillPoint, SkillQuery, SkillCaption}

// ParseSkill validates a skill name coming from an untrusted source
// (LLM output, query parameters).
func ParseSkill(s string) (Skill, error) {
	switch Skill(s) {
	case SkillDetect, SkillPoint, SkillQuery, SkillCaption:
		return Skill(s), nil
	}
	return "", fmt.Errorf("unknown skill %q", s)
}

// SkillParams is the per-skill parameter bag. Exactly one concrete type
// exists per skill so the executor can dispatch with an exhaustive type
// switch and new skills cannot silently fall through.
type SkillParams interface {
	Skill() Skill
}

// DetectParams configures object detection.
type DetectParams struct {
	Threshold float64 `json:"threshold"`
	Target    string  `json:"target,omitempty"`
}

func (DetectParams) Skill() Skill { return SkillDetect }

// PointParams configures point localization.
type PointParams struct {
	Query string `json:"query"`
}

func (PointParams) Skill() Skill { return SkillPoint }

// QueryParams configures visual question answering.
type QueryParams struct {
	Question string `json:"question"`
	Detailed bool   `json:"detailed,omitempty"`
}

func (QueryParams) Skill() Skill { return SkillQuery }

// CaptionParams configures captioning. Style is "brief", "detailed" or
// empty for a normal caption.
type CaptionParams struct {
	Style string `json:"style,omitempty"`
}

func (CaptionParams) Skill() Skill { return SkillCaption }

// DecodeParams unmarshals a loose JSON parameter object into the concrete
// params type for the given skill. Used on the LLM routing path where the
// params arrive as model output.
func DecodeParams(skill Skill, raw json.RawMessage) (SkillParams, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	switch skill {
	case SkillDetect:
		p := DetectParams{Threshold: 0.5}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Threshold = ClampThreshold(p.Threshold)
		return p, nil
	case SkillPoint:
		var p PointParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case SkillQuery:
		var p QueryParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case SkillCaption:
		var p CaptionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown skill %q", skill)
}

// ClampThreshold bounds a detection threshold to the provider's accepted
// range.
func ClampThreshold(t float64) float64 {
	if t < 0.1 {
		return 0.1
	}
	if t > 0.9 {
		return 0.9
	}
	return t
}
