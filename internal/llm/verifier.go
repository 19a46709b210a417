package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"dreamforge/internal/models"
)

const verifyPromptTemplate = `You are reviewing the output of a visual AI system.

User request: "%s"

System result (JSON): %s

Does the result plausibly answer the request? Return ONLY a JSON object:
{"verified": true | false, "feedback": "<one short sentence>"}`

// Verification is the LLM's judgement of a vision result.
type Verification struct {
	Verified bool   `json:"verified"`
	Feedback string `json:"feedback"`
}

// Verifier double-checks a vision result against the prompt. Verification
// failure must never block a request, so every failure path degrades to
// "assume correct".
type Verifier struct {
	completer Completer
	log       *slog.Logger
}

func NewVerifier(completer Completer, log *slog.Logger) *Verifier {
	return &Verifier{completer: completer, log: log}
}

func (v *Verifier) Verify(ctx context.Context, prompt string, result *models.VisionResult) (Verification, *Degradation) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return v.permissive(err)
	}

	text, err := v.completer.Complete(ctx, fmt.Sprintf(verifyPromptTemplate, prompt, resultJSON))
	if err != nil {
		return v.permissive(err)
	}

	var parsed struct {
		Verified *bool  `json:"verified"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return v.permissive(fmt.Errorf("unparseable verification reply: %w", err))
	}
	if parsed.Verified == nil {
		return v.permissive(errors.New("verification reply missing verified field"))
	}

	return Verification{Verified: *parsed.Verified, Feedback: parsed.Feedback}, nil
}

func (v *Verifier) permissive(cause error) (Verification, *Degradation) {
	v.log.Warn("verification unavailable, assuming result is correct", "error", cause)
	return Verification{Verified: true, Feedback: ""}, degraded(StageVerification, cause)
}
