package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dreamforge/internal/models"
)

const (
	defaultBaseURL = "https://api.moondream.ai/v1"
	defaultTimeout = 60 * time.Second
)

// ClientConfig holds HTTP client settings for the vision provider.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// HTTPClient implements Client against the Moondream cloud API. With no
// API key configured it serves canned demo responses so the app still
// works end to end without credentials.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewHTTPClient(cfg ClientConfig, log *slog.Logger) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if cfg.APIKey == "" {
		log.Warn("vision API key missing, serving demo responses")
	}
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}
}

func (c *HTTPClient) Detect(ctx context.Context, image []byte, target string, threshold float64) (*models.VisionResult, error) {
	if target == "" {
		target = "objects"
	}
	if c.apiKey == "" {
		label := target
		if label == "objects" {
			label = "person"
		}
		conf := 0.85
		return &models.VisionResult{
			Objects: []models.DetectedObject{
				{Label: label, Confidence: conf, BBox: [4]float64{100, 100, 200, 300}},
			},
			Confidence: &conf,
		}, nil
	}

	var wire struct {
		Objects []models.DetectedObject `json:"objects"`
	}
	if err := c.post(ctx, "/detect", map[string]any{
		"image_url": dataURL(image),
		"object":    target,
		"stream":    false,
	}, &wire); err != nil {
		return nil, err
	}

	conf := 0.0
	if len(wire.Objects) > 0 {
		conf = wire.Objects[0].Confidence
	}
	return &models.VisionResult{Objects: wire.Objects, Confidence: &conf}, nil
}

func (c *HTTPClient) Point(ctx context.Context, image []byte, query string) (*models.VisionResult, error) {
	if c.apiKey == "" {
		conf := 0.9
		return &models.VisionResult{
			Points:     []models.Point{{X: 150, Y: 200, Confidence: conf}},
			Confidence: &conf,
		}, nil
	}

	var wire struct {
		Points []models.Point `json:"points"`
	}
	if err := c.post(ctx, "/point", map[string]any{
		"image_url": dataURL(image),
		"object":    query,
		"stream":    false,
	}, &wire); err != nil {
		return nil, err
	}

	conf := 0.0
	if len(wire.Points) > 0 {
		conf = wire.Points[0].Confidence
	}
	return &models.VisionResult{Points: wire.Points, Confidence: &conf}, nil
}

func (c *HTTPClient) Query(ctx context.Context, image []byte, question string) (*models.VisionResult, error) {
	if c.apiKey == "" {
		conf := 0.8
		return &models.VisionResult{
			Answer:     fmt.Sprintf("This image appears to show a scene related to: %s. (Demo mode - add a vision API key for real analysis)", question),
			Confidence: &conf,
		}, nil
	}

	var wire struct {
		Answer     string   `json:"answer"`
		Confidence *float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/query", map[string]any{
		"image_url": dataURL(image),
		"question":  question,
		"stream":    false,
	}, &wire); err != nil {
		return nil, err
	}

	conf := 0.9
	if wire.Confidence != nil {
		conf = *wire.Confidence
	}
	return &models.VisionResult{Answer: wire.Answer, Confidence: &conf}, nil
}

func (c *HTTPClient) Caption(ctx context.Context, image []byte, style string) (*models.VisionResult, error) {
	if style == "" {
		style = "normal"
	}
	if c.apiKey == "" {
		conf := 0.8
		return &models.VisionResult{
			Caption:    "This image shows a scene with various elements. (Demo mode - add a vision API key for detailed analysis)",
			Confidence: &conf,
		}, nil
	}

	var wire struct {
		Caption    string   `json:"caption"`
		Confidence *float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/caption", map[string]any{
		"image_url": dataURL(image),
		"length":    style,
		"stream":    false,
	}, &wire); err != nil {
		return nil, err
	}

	conf := 0.9
	if wire.Confidence != nil {
		conf = *wire.Confidence
	}
	return &models.VisionResult{Caption: wire.Caption, Confidence: &conf}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ProviderError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Moondream-Auth", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &ProviderError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

func dataURL(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}
