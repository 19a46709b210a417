package vision

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL}, slog.Default())
}

func TestDetectParsesObjects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Moondream-Auth"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cat", body["object"])
		assert.True(t, strings.HasPrefix(body["image_url"].(string), "data:image/jpeg;base64,"))

		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]any{
				{"label": "cat", "confidence": 0.92, "bbox": []float64{10, 20, 110, 220}},
			},
		})
	})

	result, err := client.Detect(context.Background(), []byte("img"), "cat", 0.5)
	require.NoError(t, err)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, "cat", result.Objects[0].Label)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.92, *result.Confidence, 1e-9)
}

func TestPointParsesPoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/point", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"points": []map[string]any{{"x": 42.0, "y": 13.0, "confidence": 0.77}},
		})
	})

	result, err := client.Point(context.Background(), []byte("img"), "door")
	require.NoError(t, err)
	require.Len(t, result.Points, 1)
	assert.Equal(t, 42.0, result.Points[0].X)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.77, *result.Confidence, 1e-9)
}

func TestQueryParsesAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"answer": "three people"})
	})

	result, err := client.Query(context.Background(), []byte("img"), "how many people?")
	require.NoError(t, err)
	assert.Equal(t, "three people", result.Answer)
}

func TestCaptionSendsStyleAsLength(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "brief", body["length"])
		json.NewEncoder(w).Encode(map[string]any{"caption": "a short caption"})
	})

	result, err := client.Caption(context.Background(), []byte("img"), "brief")
	require.NoError(t, err)
	assert.Equal(t, "a short caption", result.Caption)
}

func TestProviderErrorOnHTTPFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream on fire", http.StatusBadGateway)
	})

	_, err := client.Query(context.Background(), []byte("img"), "q")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.Contains(t, perr.Message, "upstream on fire")
}

func TestProviderErrorOnMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.Query(context.Background(), []byte("img"), "q")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "malformed response")
}

func TestDemoModeWithoutAPIKey(t *testing.T) {
	client := NewHTTPClient(ClientConfig{}, slog.Default())
	ctx := context.Background()

	detect, err := client.Detect(ctx, []byte("img"), "cat", 0.5)
	require.NoError(t, err)
	require.Len(t, detect.Objects, 1)
	assert.Equal(t, "cat", detect.Objects[0].Label)

	point, err := client.Point(ctx, []byte("img"), "door")
	require.NoError(t, err)
	require.Len(t, point.Points, 1)

	query, err := client.Query(ctx, []byte("img"), "what is this?")
	require.NoError(t, err)
	assert.Contains(t, query.Answer, "what is this?")

	caption, err := client.Caption(ctx, []byte("img"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, caption.Caption)
}
