package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the logged outcome of one inference request. It is owned
// by the request that created it until persisted, then by the usage store.
type UsageRecord struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Prompt          string    `db:"prompt" json:"prompt"`
	Skill           Skill     `db:"skill" json:"skill"`
	Parameters      JSONB     `db:"parameters" json:"parameters,omitempty"`
	Timestamp       time.Time `db:"timestamp" json:"timestamp"`
	ResponseTimeMs  int       `db:"response_time_ms" json:"responseTime"`
	Success         bool      `db:"success" json:"success"`
	ErrorMessage    string    `db:"error_message" json:"errorMessage,omitempty"`
	Confidence      *float64  `db:"confidence" json:"confidence"`
	ResultSizeBytes *int      `db:"result_size_bytes" json:"resultSize,omitempty"`
}

// SkillStats summarizes one skill's records inside an analytics window.
type SkillStats struct {
	Count             int  `json:"count"`
	AvgResponseTimeMs int  `json:"avgResponseTime"`
	SuccessRatePct    int  `json:"successRate"`
	AvgConfidencePct  *int `json:"avgConfidence"`
}

// AnalyticsSummary is derived on every read and never stored.
type AnalyticsSummary struct {
	TotalCalls      int                  `json:"totalCalls"`
	SuccessfulCalls int                  `json:"successfulCalls"`
	SuccessRate     int                  `json:"successRate"`
	SkillBreakdown  map[Skill]SkillStats `json:"skillBreakdown"`
	CostUSD         float64              `json:"costUSD"`
	TimeRangeDays   int                  `json:"timeRange"`
}

// HistoryEntry is the bounded recent-history projection of a UsageRecord.
// Prompt is truncated for display.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	Skill          Skill     `json:"skill"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int       `json:"responseTime"`
	Success        bool      `json:"success"`
	Confidence     *float64  `json:"confidence"`
}

// DailyTrend is one day's bucket in the detailed analytics view.
type DailyTrend struct {
	Date              string `json:"date"`
	TotalCalls        int    `json:"totalCalls"`
	SuccessfulCalls   int    `json:"successfulCalls"`
	SuccessRate       int    `json:"successRate"`
	AvgResponseTimeMs int    `json:"avgResponseTime"`
}

// SkillPerformance covers successful calls only.
type SkillPerformance struct {
	Skill             Skill `json:"skill"`
	Count             int   `json:"count"`
	AvgResponseTimeMs int   `json:"avgResponseTime"`
	MinResponseTimeMs int   `json:"minResponseTime"`
	MaxResponseTimeMs int   `json:"maxResponseTime"`
	AvgConfidencePct  *int  `json:"avgConfidence"`
}

// ErrorFrequency counts occurrences of one error message.
type ErrorFrequency struct {
	ErrorMessage string `json:"errorMessage"`
	Count        int    `json:"count"`
	Skill        Skill  `json:"skill"`
}

// DetailedAnalytics extends the summary with trend and failure breakdowns.
type DetailedAnalytics struct {
	DailyTrends      []DailyTrend       `json:"dailyTrends"`
	SkillPerformance []SkillPerformance `json:"skillPerformance"`
	ErrorAnalysis    []ErrorFrequency   `json:"errorAnalysis"`
}

// HistoryEntry converts a record into its display projection.
func (r *UsageRecord) HistoryEntry() HistoryEntry {
	return HistoryEntry{
		ID:             r.ID.String(),
		Prompt:         TruncatePrompt(r.Prompt),
		Skill:          r.Skill,
		Timestamp:      r.Timestamp,
		ResponseTimeMs: r.ResponseTimeMs,
		Success:        r.Success,
		Confidence:     r.Confidence,
	}
}

// TruncatePrompt shortens a prompt to 100 characters for display.
func TruncatePrompt(p string) string {
	const max = 100
	if len(p) > max {
		return p[:max] + "..."
	}
	return p
}

// ParamsJSONB converts skill params into the JSONB shape stored alongside
// the record.
func ParamsJSONB(p SkillParams) JSONB {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var j JSONB
	if err := json.Unmarshal(b, &j); err != nil {
		return nil
	}
	return j
}
