package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"dreamforge/internal/analytics"
	"dreamforge/internal/models"
)

const (
	defaultTimeRangeDays = 7
	defaultHistoryLimit  = 10
	maxTimeRangeDays     = 365
	maxHistoryLimit      = 100
)

type usageResponse struct {
	Success       bool                       `json:"success"`
	Summary       *analytics.EnrichedSummary `json:"summary"`
	RecentHistory []models.HistoryEntry      `json:"recentHistory"`
	Detailed      *models.DetailedAnalytics  `json:"detailed,omitempty"`
	Metadata      usageMetadata              `json:"metadata"`
}

type usageMetadata struct {
	GeneratedAt   time.Time `json:"generatedAt"`
	TimeRangeDays int       `json:"timeRange"`
	HistoryLimit  int       `json:"limit"`
	Durable       bool      `json:"durable"`
}

// handleUsage serves aggregate analytics over the usage records.
func (d *Dependencies) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	timeRange := queryInt(r, "timeRange", defaultTimeRangeDays, 1, maxTimeRangeDays)
	limit := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	detailed := r.URL.Query().Get("detailed") == "true"

	ctx := r.Context()
	summary, err := d.Store.Summarize(ctx, timeRange)
	if err != nil {
		d.Log.Error("usage summary failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	history, err := d.Store.RecentHistory(ctx, limit)
	if err != nil {
		d.Log.Error("usage history failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := usageResponse{
		Success:       true,
		Summary:       analytics.Enrich(summary, history),
		RecentHistory: history,
		Metadata: usageMetadata{
			GeneratedAt:   time.Now(),
			TimeRangeDays: timeRange,
			HistoryLimit:  limit,
			Durable:       d.Store.Durable(),
		},
	}

	if detailed {
		det, err := d.Store.Detailed(ctx, timeRange)
		if err != nil {
			d.Log.Error("detailed analytics failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.Detailed = det
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// queryInt parses a bounded integer query parameter, falling back to the
// default on anything unparseable or out of range.
func queryInt(r *http.Request, name string, def, lo, hi int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return def
	}
	return v
}
