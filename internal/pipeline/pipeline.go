// Package pipeline runs one inference request through its full lifecycle:
// validation, routing, vision execution, optional verification and
// narration, then usage persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"dreamforge/internal/llm"
	"dreamforge/internal/models"
	"dreamforge/internal/storage"
	"dreamforge/internal/vision"
)

// MaxPromptLength bounds the prompt in characters, not bytes.
const MaxPromptLength = 2000

// summaryWindowDays is the analytics window attached to every response.
const summaryWindowDays = 7

// State names a stage of the request lifecycle. A request moves strictly
// forward; the two failure states are terminal.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateRouted    State = "ROUTED"
	StateExecuted  State = "EXECUTED"
	StateVerified  State = "VERIFIED"
	StateNarrated  State = "NARRATED"
	StatePersisted State = "PERSISTED"
	StateResponded State = "RESPONDED"

	StateValidationFailed State = "VALIDATION_FAILED"
	StateExecutionFailed  State = "EXECUTION_FAILED"
)

// ValidationDetail describes one rejected input field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a request before any provider call is made.
// Validation failures are not usage events and are never persisted.
type ValidationError struct {
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Details[0].Field, e.Details[0].Message)
}

// ExecutionError wraps a vision provider failure. Unlike LLM stages,
// execution failures are hard: the request cannot produce a result.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("vision execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Request is one inference request as received from the API layer.
type Request struct {
	Prompt        string
	Image         string // base64-encoded image bytes
	UseLLMRouting bool
}

// Metadata carries the response timing block.
type Metadata struct {
	TotalTimeMs  int       `json:"totalTime"`
	VisionTimeMs int       `json:"visionTime"`
	Timestamp    time.Time `json:"timestamp"`
}

// Response is the full payload of a completed request.
type Response struct {
	Success  bool                     `json:"success"`
	Skill    models.Skill             `json:"skill"`
	Params   models.SkillParams       `json:"params"`
	Result   *models.VisionResult     `json:"result"`
	Verified bool                     `json:"verified"`
	Feedback string                   `json:"feedback,omitempty"`
	Metadata Metadata                 `json:"metadata"`
	Usage    *models.AnalyticsSummary `json:"usage,omitempty"`
	Analysis *llm.Narration           `json:"analysis,omitempty"`
}

// Pipeline wires the stages together. Router, Verifier and Narrator are
// nil when no LLM is configured; every LLM stage is best-effort and its
// absence or failure degrades silently.
type Pipeline struct {
	Classifier interface {
		Classify(prompt string) (models.Skill, models.SkillParams)
	}
	Router interface {
		Route(ctx context.Context, prompt string) (models.Skill, models.SkillParams, *llm.Degradation)
	}
	Verifier interface {
		Verify(ctx context.Context, prompt string, result *models.VisionResult) (llm.Verification, *llm.Degradation)
	}
	Narrator interface {
		Narrate(ctx context.Context, prompt string, skill models.Skill, result *models.VisionResult) (*llm.Narration, *llm.Degradation)
	}
	Executor *vision.Executor
	Store    *storage.Resilient
	Log      *slog.Logger
}

// Run executes the request end to end. On success the returned response
// is complete; on failure the error is a *ValidationError, an
// *ExecutionError, or an internal error from persistence.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	state := StateReceived
	log := p.Log.With("state_machine", "request")
	log.Debug("request received", "state", state, "prompt_length", utf8.RuneCountInString(req.Prompt))

	image, verr := p.validate(req)
	if verr != nil {
		log.Info("request rejected", "state", StateValidationFailed, "details", len(verr.Details))
		return nil, verr
	}

	skill, params := p.route(ctx, req)
	params = backfill(params, req.Prompt)
	state = StateRouted
	log.Debug("request routed", "state", state, "skill", skill)

	handle := p.Store.Record(req.Prompt, skill, params)

	visionStart := time.Now()
	result, err := p.Executor.Execute(ctx, params, image)
	visionTime := int(time.Since(visionStart).Milliseconds())
	if err != nil {
		log.Error("vision execution failed", "state", StateExecutionFailed, "skill", skill, "error", err)
		if perr := handle.MarkError(ctx, int(time.Since(started).Milliseconds()), err.Error()); perr != nil {
			log.Error("failed to persist failure record", "error", perr)
		}
		return nil, &ExecutionError{Err: err}
	}
	state = StateExecuted
	log.Debug("vision call completed", "state", state, "skill", skill, "vision_time_ms", visionTime)

	verification := llm.Verification{Verified: true}
	if p.Verifier != nil {
		var deg *llm.Degradation
		verification, deg = p.Verifier.Verify(ctx, req.Prompt, result)
		if deg != nil {
			log.Debug("stage degraded", "stage", deg.Stage, "cause", deg.Cause)
		}
	}
	state = StateVerified
	log.Debug("result reviewed", "state", state, "verified", verification.Verified)

	var analysis *llm.Narration
	if p.Narrator != nil {
		var deg *llm.Degradation
		analysis, deg = p.Narrator.Narrate(ctx, req.Prompt, skill, result)
		if deg != nil {
			log.Debug("stage degraded", "stage", deg.Stage, "cause", deg.Cause)
		}
	}
	state = StateNarrated

	resultSize := 0
	if encoded, err := json.Marshal(result); err == nil {
		resultSize = len(encoded)
	}
	totalTime := int(time.Since(started).Milliseconds())
	if err := handle.Finalize(ctx, totalTime, resultSize, result.ExtractConfidence(), verification.Verified); err != nil {
		return nil, fmt.Errorf("failed to persist usage record: %w", err)
	}
	state = StatePersisted

	summary, err := p.Store.Summarize(ctx, summaryWindowDays)
	if err != nil {
		log.Warn("usage summary unavailable for response", "error", err)
		summary = nil
	}

	state = StateResponded
	log.Info("request completed",
		"state", state,
		"skill", skill,
		"verified", verification.Verified,
		"total_time_ms", totalTime,
		"vision_time_ms", visionTime,
	)

	return &Response{
		Success:  true,
		Skill:    skill,
		Params:   params,
		Result:   result,
		Verified: verification.Verified,
		Feedback: verification.Feedback,
		Metadata: Metadata{
			TotalTimeMs:  totalTime,
			VisionTimeMs: visionTime,
			Timestamp:    time.Now(),
		},
		Usage:    summary,
		Analysis: analysis,
	}, nil
}

func (p *Pipeline) validate(req Request) ([]byte, *ValidationError) {
	var details []ValidationDetail

	promptLen := utf8.RuneCountInString(req.Prompt)
	if promptLen == 0 {
		details = append(details, ValidationDetail{Field: "prompt", Message: "prompt is required"})
	} else if promptLen > MaxPromptLength {
		details = append(details, ValidationDetail{
			Field:   "prompt",
			Message: fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength),
		})
	}

	var image []byte
	if req.Image == "" {
		details = append(details, ValidationDetail{Field: "image", Message: "image is required"})
	} else {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			details = append(details, ValidationDetail{Field: "image", Message: "image must be valid base64"})
		} else {
			image = decoded
		}
	}

	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return image, nil
}

// route picks a skill. The LLM router only runs when the request asks for
// it and a router is configured; every other path is the rule-based
// classifier.
func (p *Pipeline) route(ctx context.Context, req Request) (models.Skill, models.SkillParams) {
	if req.UseLLMRouting && p.Router != nil {
		skill, params, deg := p.Router.Route(ctx, req.Prompt)
		if deg != nil {
			p.Log.Debug("stage degraded", "stage", deg.Stage, "cause", deg.Cause)
		}
		return skill, params
	}
	skill, params := p.Classifier.Classify(req.Prompt)
	return skill, params
}

// backfill fills empty query-like params with the raw prompt so the
// provider always receives a usable argument.
func backfill(params models.SkillParams, prompt string) models.SkillParams {
	switch p := params.(type) {
	case models.PointParams:
		if p.Query == "" {
			p.Query = prompt
		}
		return p
	case models.QueryParams:
		if p.Question == "" {
			p.Question = prompt
		}
		return p
	}
	return params
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// IsExecution reports whether err is a vision execution failure.
func IsExecution(err error) (*ExecutionError, bool) {
	var eerr *ExecutionError
	if errors.As(err, &eerr) {
		return eerr, true
	}
	return nil, false
}
