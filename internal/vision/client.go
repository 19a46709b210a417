// Package vision talks to the external vision inference provider and
// dispatches routed requests to the right capability.
package vision

import (
	"context"
	"fmt"

	"dreamforge/internal/models"
)

// Client is implemented by the vision inference provider.
type Client interface {
	// Detect finds instances of target with at least the given confidence.
	Detect(ctx context.Context, image []byte, target string, threshold float64) (*models.VisionResult, error)

	// Point returns coordinates for the queried object.
	Point(ctx context.Context, image []byte, query string) (*models.VisionResult, error)

	// Query answers a free-text question about the image.
	Query(ctx context.Context, image []byte, question string) (*models.VisionResult, error)

	// Caption describes the image in the requested style.
	Caption(ctx context.Context, image []byte, style string) (*models.VisionResult, error)
}

// ProviderError is a hard failure from the vision provider: a non-2xx
// status or an undecodable body. It propagates to the caller and fails
// the whole request.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vision provider error: %d - %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("vision provider error: %s", e.Message)
}
