package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"dreamforge/internal/models"
)

const narratePromptTemplate = `You are explaining the output of a visual AI system to a non-technical user.

User request: "%s"
Skill used: %s
Raw result (JSON): %s

Return ONLY a JSON object:
{
  "explanation": "<plain-language summary of the result>",
  "insights": ["<notable observation>", ...],
  "followUp": ["<suggested next prompt>", ...]
}`

// Narration is the human-readable interpretation of a vision result.
type Narration struct {
	Explanation string   `json:"explanation"`
	Insights    []string `json:"insights"`
	FollowUp    []string `json:"followUp"`
}

// Narrator produces an optional explanation of the raw result. Any failure
// yields nil; the response simply ships without an analysis section.
type Narrator struct {
	completer Completer
	log       *slog.Logger
}

func NewNarrator(completer Completer, log *slog.Logger) *Narrator {
	return &Narrator{completer: completer, log: log}
}

func (n *Narrator) Narrate(ctx context.Context, prompt string, skill models.Skill, result *models.VisionResult) (*Narration, *Degradation) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return n.none(err)
	}

	text, err := n.completer.Complete(ctx, fmt.Sprintf(narratePromptTemplate, prompt, skill, resultJSON))
	if err != nil {
		return n.none(err)
	}

	var narration Narration
	if err := json.Unmarshal([]byte(stripFences(text)), &narration); err != nil {
		return n.none(fmt.Errorf("unparseable narration reply: %w", err))
	}

	return &narration, nil
}

func (n *Narrator) none(cause error) (*Narration, *Degradation) {
	n.log.Warn("narration unavailable", "error", cause)
	return nil, degraded(StageNarration, cause)
}
