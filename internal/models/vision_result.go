package models

// DetectedObject is one detection hit with a pixel-space bounding box
// [x0, y0, x1, y1].
type DetectedObject struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Point is one localized coordinate.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// VisionResult is the normalized provider response. Only the fields for
// the executed skill are populated.
type VisionResult struct {
	Objects    []DetectedObject `json:"objects,omitempty"`
	Points     []Point          `json:"points,omitempty"`
	Answer     string           `json:"answer,omitempty"`
	Caption    string           `json:"caption,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
}

// ExtractConfidence returns the scalar confidence recorded for usage
// analytics: the top-level confidence when present, otherwise the first
// object's or point's, otherwise nil.
func (r *VisionResult) ExtractConfidence() *float64 {
	if r == nil {
		return nil
	}
	if r.Confidence != nil {
		return r.Confidence
	}
	if len(r.Objects) > 0 {
		c := r.Objects[0].Confidence
		return &c
	}
	if len(r.Points) > 0 {
		c := r.Points[0].Confidence
		return &c
	}
	return nil
}
