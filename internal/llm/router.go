package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"dreamforge/internal/intent"
	"dreamforge/internal/models"
)

const routePromptTemplate = `You are a router for a visual AI system. Given the user request:
"%s"

Analyze this request and return ONLY a JSON object with this exact structure:
{
  "skill": "detect" | "point" | "query" | "caption",
  "params": {}
}

Skills:
- "detect": Find/identify objects in the image
- "point": Locate specific coordinates/positions
- "query": Answer questions about the image
- "caption": Generate descriptions of the image

Choose the most appropriate skill and include relevant parameters.`

// Router asks the LLM to pick a skill for a prompt. A single failed
// attempt falls straight back to the rule-based classifier; the rule path
// is effectively free and always correct enough, so retrying would only
// add latency.
type Router struct {
	completer  Completer
	classifier *intent.Classifier
	log        *slog.Logger
}

func NewRouter(completer Completer, classifier *intent.Classifier, log *slog.Logger) *Router {
	return &Router{completer: completer, classifier: classifier, log: log}
}

// Route returns the chosen skill and params. The Degradation is non-nil
// when the LLM path failed and the classifier answered instead.
func (r *Router) Route(ctx context.Context, prompt string) (models.Skill, models.SkillParams, *Degradation) {
	text, err := r.completer.Complete(ctx, fmt.Sprintf(routePromptTemplate, prompt))
	if err != nil {
		return r.fallback(prompt, err)
	}

	var plan struct {
		Skill  string          `json:"skill"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &plan); err != nil {
		return r.fallback(prompt, fmt.Errorf("unparseable routing reply: %w", err))
	}

	skill, err := models.ParseSkill(plan.Skill)
	if err != nil {
		return r.fallback(prompt, err)
	}

	params, err := models.DecodeParams(skill, plan.Params)
	if err != nil {
		return r.fallback(prompt, fmt.Errorf("bad params for %s: %w", skill, err))
	}

	r.log.Debug("llm routing succeeded", "skill", skill)
	return skill, params, nil
}

func (r *Router) fallback(prompt string, cause error) (models.Skill, models.SkillParams, *Degradation) {
	r.log.Warn("llm routing failed, using rule-based classifier", "error", cause)
	skill, params := r.classifier.Classify(prompt)
	return skill, params, degraded(StageRouting, cause)
}
