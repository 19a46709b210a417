package analytics

import (
	"math"
	"sort"

	"dreamforge/internal/models"
)

// MergeSummaries combines the durable and fallback views of the same
// window, as seen after a mid-run backend failure split the records.
// Counts add exactly, so the success-rate invariant holds across the
// split; averages merge weighted by count.
func MergeSummaries(a, b *models.AnalyticsSummary) *models.AnalyticsSummary {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	total := a.TotalCalls + b.TotalCalls
	successful := a.SuccessfulCalls + b.SuccessfulCalls

	breakdown := make(map[models.Skill]models.SkillStats, len(a.SkillBreakdown)+len(b.SkillBreakdown))
	for skill, stats := range a.SkillBreakdown {
		breakdown[skill] = stats
	}
	for skill, stats := range b.SkillBreakdown {
		existing, ok := breakdown[skill]
		if !ok {
			breakdown[skill] = stats
			continue
		}
		breakdown[skill] = mergeSkillStats(existing, stats)
	}

	return &models.AnalyticsSummary{
		TotalCalls:      total,
		SuccessfulCalls: successful,
		SuccessRate:     roundPct(successful, total),
		SkillBreakdown:  breakdown,
		CostUSD:         Cost(total),
		TimeRangeDays:   a.TimeRangeDays,
	}
}

func mergeSkillStats(a, b models.SkillStats) models.SkillStats {
	count := a.Count + b.Count
	merged := models.SkillStats{
		Count:             count,
		AvgResponseTimeMs: weightedAvg(a.AvgResponseTimeMs, a.Count, b.AvgResponseTimeMs, b.Count),
		SuccessRatePct:    weightedAvg(a.SuccessRatePct, a.Count, b.SuccessRatePct, b.Count),
	}
	switch {
	case a.AvgConfidencePct != nil && b.AvgConfidencePct != nil:
		pct := weightedAvg(*a.AvgConfidencePct, a.Count, *b.AvgConfidencePct, b.Count)
		merged.AvgConfidencePct = &pct
	case a.AvgConfidencePct != nil:
		merged.AvgConfidencePct = a.AvgConfidencePct
	case b.AvgConfidencePct != nil:
		merged.AvgConfidencePct = b.AvgConfidencePct
	}
	return merged
}

// MergeHistory interleaves two most-recent-first views and re-bounds the
// result.
func MergeHistory(a, b []models.HistoryEntry, limit int) []models.HistoryEntry {
	merged := make([]models.HistoryEntry, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// MergeDetailed combines detailed views: daily buckets merge by date,
// per-skill performance merges weighted, error frequencies sum and the
// top-10 bound is reapplied.
func MergeDetailed(a, b *models.DetailedAnalytics) *models.DetailedAnalytics {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	byDate := make(map[string]models.DailyTrend, len(a.DailyTrends)+len(b.DailyTrends))
	for _, t := range a.DailyTrends {
		byDate[t.Date] = t
	}
	for _, t := range b.DailyTrends {
		existing, ok := byDate[t.Date]
		if !ok {
			byDate[t.Date] = t
			continue
		}
		total := existing.TotalCalls + t.TotalCalls
		successes := existing.SuccessfulCalls + t.SuccessfulCalls
		byDate[t.Date] = models.DailyTrend{
			Date:              t.Date,
			TotalCalls:        total,
			SuccessfulCalls:   successes,
			SuccessRate:       roundPct(successes, total),
			AvgResponseTimeMs: weightedAvg(existing.AvgResponseTimeMs, existing.TotalCalls, t.AvgResponseTimeMs, t.TotalCalls),
		}
	}
	trends := make([]models.DailyTrend, 0, len(byDate))
	for _, t := range byDate {
		trends = append(trends, t)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })

	bySkill := make(map[models.Skill]models.SkillPerformance, len(a.SkillPerformance)+len(b.SkillPerformance))
	for _, p := range a.SkillPerformance {
		bySkill[p.Skill] = p
	}
	for _, p := range b.SkillPerformance {
		existing, ok := bySkill[p.Skill]
		if !ok {
			bySkill[p.Skill] = p
			continue
		}
		merged := models.SkillPerformance{
			Skill:             p.Skill,
			Count:             existing.Count + p.Count,
			AvgResponseTimeMs: weightedAvg(existing.AvgResponseTimeMs, existing.Count, p.AvgResponseTimeMs, p.Count),
			MinResponseTimeMs: min(existing.MinResponseTimeMs, p.MinResponseTimeMs),
			MaxResponseTimeMs: max(existing.MaxResponseTimeMs, p.MaxResponseTimeMs),
		}
		switch {
		case existing.AvgConfidencePct != nil && p.AvgConfidencePct != nil:
			pct := weightedAvg(*existing.AvgConfidencePct, existing.Count, *p.AvgConfidencePct, p.Count)
			merged.AvgConfidencePct = &pct
		case existing.AvgConfidencePct != nil:
			merged.AvgConfidencePct = existing.AvgConfidencePct
		case p.AvgConfidencePct != nil:
			merged.AvgConfidencePct = p.AvgConfidencePct
		}
		bySkill[p.Skill] = merged
	}
	performance := make([]models.SkillPerformance, 0, len(bySkill))
	for _, skill := range models.AllSkills {
		if p, ok := bySkill[skill]; ok {
			performance = append(performance, p)
		}
	}

	byMessage := make(map[string]models.ErrorFrequency, len(a.ErrorAnalysis)+len(b.ErrorAnalysis))
	var order []string
	for _, e := range a.ErrorAnalysis {
		byMessage[e.ErrorMessage] = e
		order = append(order, e.ErrorMessage)
	}
	for _, e := range b.ErrorAnalysis {
		existing, ok := byMessage[e.ErrorMessage]
		if !ok {
			byMessage[e.ErrorMessage] = e
			order = append(order, e.ErrorMessage)
			continue
		}
		existing.Count += e.Count
		byMessage[e.ErrorMessage] = existing
	}
	analysis := make([]models.ErrorFrequency, 0, len(order))
	for _, msg := range order {
		analysis = append(analysis, byMessage[msg])
	}
	sort.SliceStable(analysis, func(i, j int) bool { return analysis[i].Count > analysis[j].Count })
	if len(analysis) > 10 {
		analysis = analysis[:10]
	}

	return &models.DetailedAnalytics{
		DailyTrends:      trends,
		SkillPerformance: performance,
		ErrorAnalysis:    analysis,
	}
}

func weightedAvg(avgA, countA, avgB, countB int) int {
	total := countA + countB
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(avgA*countA+avgB*countB) / float64(total)))
}
