// Package analytics computes aggregate usage statistics. Every function
// here is pure: no I/O, no clocks beyond the explicit now argument, and
// identical inputs always yield identical outputs. The memory backend
// uses these functions directly and the resilient store uses the merge
// functions to combine durable and fallback reads.
package analytics

import (
	"math"
	"sort"
	"time"

	"dreamforge/internal/models"
)

// CostPerCallUSD is the flat per-request cost estimate.
const CostPerCallUSD = 0.002

// Summarize aggregates records inside the window ending at now.
func Summarize(records []models.UsageRecord, windowDays int, now time.Time) *models.AnalyticsSummary {
	cutoff := windowStart(now, windowDays)

	type acc struct {
		count       int
		successes   int
		sumRT       int
		sumConf     float64
		confSamples int
	}
	perSkill := make(map[models.Skill]*acc)

	total, successful := 0, 0
	for i := range records {
		r := &records[i]
		if r.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if r.Success {
			successful++
		}
		a := perSkill[r.Skill]
		if a == nil {
			a = &acc{}
			perSkill[r.Skill] = a
		}
		a.count++
		if r.Success {
			a.successes++
		}
		a.sumRT += r.ResponseTimeMs
		if r.Confidence != nil {
			a.sumConf += *r.Confidence
			a.confSamples++
		}
	}

	breakdown := make(map[models.Skill]models.SkillStats, len(perSkill))
	for skill, a := range perSkill {
		stats := models.SkillStats{
			Count:             a.count,
			AvgResponseTimeMs: roundDiv(a.sumRT, a.count),
			SuccessRatePct:    roundPct(a.successes, a.count),
		}
		if a.confSamples > 0 {
			pct := int(math.Round(a.sumConf / float64(a.confSamples) * 100))
			stats.AvgConfidencePct = &pct
		}
		breakdown[skill] = stats
	}

	return &models.AnalyticsSummary{
		TotalCalls:      total,
		SuccessfulCalls: successful,
		SuccessRate:     roundPct(successful, total),
		SkillBreakdown:  breakdown,
		CostUSD:         Cost(total),
		TimeRangeDays:   windowDays,
	}
}

// History projects records into the bounded most-recent-first view.
func History(records []models.UsageRecord, limit int) []models.HistoryEntry {
	sorted := make([]models.UsageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	entries := make([]models.HistoryEntry, len(sorted))
	for i := range sorted {
		entries[i] = sorted[i].HistoryEntry()
	}
	return entries
}

// Detailed computes daily trends, per-skill performance over successful
// calls, and the top-10 error-message frequencies for the window.
func Detailed(records []models.UsageRecord, windowDays int, now time.Time) *models.DetailedAnalytics {
	cutoff := windowStart(now, windowDays)

	type dayAcc struct {
		total     int
		successes int
		sumRT     int
	}
	days := make(map[string]*dayAcc)

	type perfAcc struct {
		count       int
		sumRT       int
		minRT       int
		maxRT       int
		sumConf     float64
		confSamples int
	}
	perf := make(map[models.Skill]*perfAcc)

	type errAcc struct {
		count int
		skill models.Skill
	}
	errs := make(map[string]*errAcc)
	var errOrder []string

	for i := range records {
		r := &records[i]
		if r.Timestamp.Before(cutoff) {
			continue
		}

		date := r.Timestamp.UTC().Format("2006-01-02")
		d := days[date]
		if d == nil {
			d = &dayAcc{}
			days[date] = d
		}
		d.total++
		if r.Success {
			d.successes++
		}
		d.sumRT += r.ResponseTimeMs

		if r.Success {
			p := perf[r.Skill]
			if p == nil {
				p = &perfAcc{minRT: r.ResponseTimeMs, maxRT: r.ResponseTimeMs}
				perf[r.Skill] = p
			}
			p.count++
			p.sumRT += r.ResponseTimeMs
			if r.ResponseTimeMs < p.minRT {
				p.minRT = r.ResponseTimeMs
			}
			if r.ResponseTimeMs > p.maxRT {
				p.maxRT = r.ResponseTimeMs
			}
			if r.Confidence != nil {
				p.sumConf += *r.Confidence
				p.confSamples++
			}
		} else {
			msg := r.ErrorMessage
			if msg == "" {
				msg = "Unknown error"
			}
			e := errs[msg]
			if e == nil {
				e = &errAcc{skill: r.Skill}
				errs[msg] = e
				errOrder = append(errOrder, msg)
			}
			e.count++
		}
	}

	trends := make([]models.DailyTrend, 0, len(days))
	for date, d := range days {
		trends = append(trends, models.DailyTrend{
			Date:              date,
			TotalCalls:        d.total,
			SuccessfulCalls:   d.successes,
			SuccessRate:       roundPct(d.successes, d.total),
			AvgResponseTimeMs: roundDiv(d.sumRT, d.total),
		})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })

	performance := make([]models.SkillPerformance, 0, len(perf))
	for _, skill := range models.AllSkills {
		p := perf[skill]
		if p == nil {
			continue
		}
		sp := models.SkillPerformance{
			Skill:             skill,
			Count:             p.count,
			AvgResponseTimeMs: roundDiv(p.sumRT, p.count),
			MinResponseTimeMs: p.minRT,
			MaxResponseTimeMs: p.maxRT,
		}
		if p.confSamples > 0 {
			pct := int(math.Round(p.sumConf / float64(p.confSamples) * 100))
			sp.AvgConfidencePct = &pct
		}
		performance = append(performance, sp)
	}

	analysis := make([]models.ErrorFrequency, 0, len(errOrder))
	for _, msg := range errOrder {
		analysis = append(analysis, models.ErrorFrequency{
			ErrorMessage: msg,
			Count:        errs[msg].count,
			Skill:        errs[msg].skill,
		})
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

// Cost estimates the USD cost of n calls, rounded to 3 decimals.
func Cost(n int) float64 {
	return math.Round(float64(n)*CostPerCallUSD*1000) / 1000
}

func windowStart(now time.Time, windowDays int) time.Time {
	return now.Add(-time.Duration(windowDays) * 24 * time.Hour)
}

func roundDiv(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

func roundPct(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
