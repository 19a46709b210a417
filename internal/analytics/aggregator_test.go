package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamforge/internal/models"
)

func ptr(f float64) *float64 { return &f }

func record(skill models.Skill, age time.Duration, rtMs int, success bool, conf *float64, now time.Time) models.UsageRecord {
	return models.UsageRecord{
		ID:             uuid.New(),
		Prompt:         "prompt for " + string(skill),
		Skill:          skill,
		Timestamp:      now.Add(-age),
		ResponseTimeMs: rtMs,
		Success:        success,
		Confidence:     conf,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	now := time.Now()
	s := Summarize(nil, 7, now)

	assert.Equal(t, 0, s.TotalCalls)
	assert.Equal(t, 0, s.SuccessfulCalls)
	assert.Equal(t, 0, s.SuccessRate)
	assert.Empty(t, s.SkillBreakdown)
	assert.Equal(t, 0.0, s.CostUSD)
	assert.Equal(t, 7, s.TimeRangeDays)
}

func TestSummarizeCountsAndRates(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		record(models.SkillDetect, time.Hour, 100, true, ptr(0.9), now),
		record(models.SkillDetect, 2*time.Hour, 200, false, nil, now),
		record(models.SkillCaption, 3*time.Hour, 300, true, ptr(0.7), now),
	}

	s := Summarize(records, 7, now)
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 2, s.SuccessfulCalls)
	assert.Equal(t, 67, s.SuccessRate) // round(2/3*100)
	assert.InDelta(t, 0.006, s.CostUSD, 1e-9)

	detect := s.SkillBreakdown[models.SkillDetect]
	assert.Equal(t, 2, detect.Count)
	assert.Equal(t, 150, detect.AvgResponseTimeMs)
	assert.Equal(t, 50, detect.SuccessRatePct)
	require.NotNil(t, detect.AvgConfidencePct)
	assert.Equal(t, 90, *detect.AvgConfidencePct)

	caption := s.SkillBreakdown[models.SkillCaption]
	assert.Equal(t, 1, caption.Count)
	require.NotNil(t, caption.AvgConfidencePct)
	assert.Equal(t, 70, *caption.AvgConfidencePct)
}

func TestSummarizeWindowFilter(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		record(models.SkillQuery, time.Hour, 100, true, nil, now),
		record(models.SkillQuery, 8*24*time.Hour, 100, false, nil, now),
	}

	s := Summarize(records, 7, now)
	assert.Equal(t, 1, s.TotalCalls)
	assert.Equal(t, 100, s.SuccessRate)
}

func TestSummarizeConfidenceAbsentWithoutSamples(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		record(models.SkillPoint, time.Hour, 50, true, nil, now),
	}

	s := Summarize(records, 7, now)
	assert.Nil(t, s.SkillBreakdown[models.SkillPoint].AvgConfidencePct)
}

func TestSummarizeIsPure(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		record(models.SkillDetect, time.Hour, 100, true, ptr(0.9), now),
		record(models.SkillCaption, 2*time.Hour, 200, false, nil, now),
	}

	first := Summarize(records, 7, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Summarize(records, 7, now))
	}
}

func TestHistoryOrderAndBound(t *testing.T) {
	now := time.Now()
	var records []models.UsageRecord
	for i := 0; i < 5; i++ {
		records = append(records, record(models.SkillCaption, time.Duration(i)*time.Hour, 100, true, nil, now))
	}

	entries := History(records, 3)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
	}
}

func TestHistoryTruncatesPrompt(t *testing.T) {
	now := time.Now()
	long := record(models.SkillQuery, time.Hour, 10, true, nil, now)
	long.Prompt = string(make([]byte, 150))

	entries := History([]models.UsageRecord{long}, 10)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Prompt, 103) // 100 chars + "..."
}

func TestDetailedTrendsAndPerformance(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	records := []models.UsageRecord{
		record(models.SkillDetect, time.Hour, 100, true, ptr(0.8), now),
		record(models.SkillDetect, 2*time.Hour, 300, true, ptr(0.6), now),
		record(models.SkillDetect, 3*time.Hour, 500, false, nil, now),
		record(models.SkillCaption, 25*time.Hour, 200, true, nil, now),
	}
	records[2].ErrorMessage = "provider timeout"

	d := Detailed(records, 7, now)

	require.Len(t, d.DailyTrends, 2)
	assert.Equal(t, "2026-08-30", d.DailyTrends[0].Date)
	assert.Equal(t, "2026-08-31", d.DailyTrends[1].Date)
	today := d.DailyTrends[1]
	assert.Equal(t, 3, today.TotalCalls)
	assert.Equal(t, 2, today.SuccessfulCalls)
	assert.Equal(t, 67, today.SuccessRate)

	// Performance covers successful calls only.
	require.Len(t, d.SkillPerformance, 2)
	detect := d.SkillPerformance[0]
	assert.Equal(t, models.SkillDetect, detect.Skill)
	assert.Equal(t, 2, detect.Count)
	assert.Equal(t, 200, detect.AvgResponseTimeMs)
	assert.Equal(t, 100, detect.MinResponseTimeMs)
	assert.Equal(t, 300, detect.MaxResponseTimeMs)
	require.NotNil(t, detect.AvgConfidencePct)
	assert.Equal(t, 70, *detect.AvgConfidencePct)

	require.Len(t, d.ErrorAnalysis, 1)
	assert.Equal(t, "provider timeout", d.ErrorAnalysis[0].ErrorMessage)
	assert.Equal(t, 1, d.ErrorAnalysis[0].Count)
	assert.Equal(t, models.SkillDetect, d.ErrorAnalysis[0].Skill)
}

func TestDetailedErrorAnalysisTopTen(t *testing.T) {
	now := time.Now()
	var records []models.UsageRecord
	for i := 0; i < 12; i++ {
		r := record(models.SkillQuery, time.Hour, 10, false, nil, now)
		r.ErrorMessage = string(rune('a' + i))
		records = append(records, r)
	}
	// One message dominates.
	for i := 0; i < 5; i++ {
		r := record(models.SkillQuery, time.Hour, 10, false, nil, now)
		r.ErrorMessage = "dominant"
		records = append(records, r)
	}

	d := Detailed(records, 7, now)
	require.Len(t, d.ErrorAnalysis, 10)
	assert.Equal(t, "dominant", d.ErrorAnalysis[0].ErrorMessage)
	assert.Equal(t, 5, d.ErrorAnalysis[0].Count)
}

func TestDetailedBlankErrorMessage(t *testing.T) {
	now := time.Now()
	r := record(models.SkillCaption, time.Hour, 10, false, nil, now)

	d := Detailed([]models.UsageRecord{r}, 7, now)
	require.Len(t, d.ErrorAnalysis, 1)
	assert.Equal(t, "Unknown error", d.ErrorAnalysis[0].ErrorMessage)
}

func TestCostRounding(t *testing.T) {
	assert.Equal(t, 0.0, Cost(0))
	assert.Equal(t, 0.002, Cost(1))
	assert.Equal(t, 0.666, Cost(333))
	assert.Equal(t, 2.0, Cost(1000))
}
