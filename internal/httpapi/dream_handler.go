package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"dreamforge/internal/pipeline"
)

// maxRequestBytes bounds the request body; base64 images inflate by a
// third, so this allows roughly 7.5 MB of raw image.
const maxRequestBytes = 10 << 20

type dreamRequest struct {
	Prompt        string `json:"prompt"`
	Image         string `json:"image"`
	UseLLMRouting *bool  `json:"useLLMRouting"` // default true
}

// handleDream runs one inference request through the pipeline.
func (d *Dependencies) handleDream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !d.RateLimit.Allow(r.Context(), clientIP(r)) {
		respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req dreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondWithJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Validation failed",
			Details: []pipeline.ValidationDetail{{Field: "body", Message: "request body must be valid JSON"}},
		})
		return
	}

	useLLMRouting := true
	if req.UseLLMRouting != nil {
		useLLMRouting = *req.UseLLMRouting
	}
	resp, err := d.Pipeline.Run(r.Context(), pipeline.Request{
		Prompt:        req.Prompt,
		Image:         req.Image,
		UseLLMRouting: useLLMRouting,
	})
	if err != nil {
		if verr, ok := pipeline.IsValidation(err); ok {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Validation failed",
				Details: verr.Details,
			})
			return
		}

		d.Log.Error("inference request failed", "error", err)
		body := errorResponse{Error: "Internal server error"}
		if d.Dev {
			body.Message = err.Error()
		}
		respondWithJSON(w, http.StatusInternalServerError, body)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
