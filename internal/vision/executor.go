package vision

import (
	"context"
	"fmt"

	"dreamforge/internal/models"
)

// Executor dispatches a routed request to the matching provider
// capability. The type switch over the params union is exhaustive: an
// unknown params type is a programming error, not a silent fall-through.
type Executor struct {
	client Client
}

func NewExecutor(client Client) *Executor {
	return &Executor{client: client}
}

func (e *Executor) Execute(ctx context.Context, params models.SkillParams, image []byte) (*models.VisionResult, error) {
	switch p := params.(type) {
	case models.DetectParams:
		threshold := p.Threshold
		if threshold == 0 {
			threshold = 0.5
		}
		return e.client.Detect(ctx, image, p.Target, threshold)

	case models.PointParams:
		return e.client.Point(ctx, image, p.Query)

	case models.QueryParams:
		return e.client.Query(ctx, image, p.Question)

	case models.CaptionParams:
		return e.client.Caption(ctx, image, p.Style)

	default:
		return nil, fmt.Errorf("unsupported skill params %T", params)
	}
}
