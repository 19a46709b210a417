package analytics

import (
	"dreamforge/internal/models"
)

// EnrichedSummary is the analytics endpoint's summary payload: the base
// window aggregates plus two figures derived from the recent history.
type EnrichedSummary struct {
	models.AnalyticsSummary
	AvgResponseTimeMs int          `json:"avgResponseTime"`
	TopSkill          models.Skill `json:"topSkill"`
}

// Enrich adds an average response time computed across the recent history
// (a cross-check figure distinct from the per-skill window averages) and
// the most-used skill. Pure and deterministic: ties resolve in skill
// priority order and an empty breakdown falls back to caption.
func Enrich(summary *models.AnalyticsSummary, history []models.HistoryEntry) *EnrichedSummary {
	enriched := &EnrichedSummary{TopSkill: models.SkillCaption}
	if summary != nil {
		enriched.AnalyticsSummary = *summary
	}
	if enriched.SkillBreakdown == nil {
		enriched.SkillBreakdown = map[models.Skill]models.SkillStats{}
	}

	if len(history) > 0 {
		sum := 0
		for _, h := range history {
			sum += h.ResponseTimeMs
		}
		enriched.AvgResponseTimeMs = roundDiv(sum, len(history))
	}

	bestCount := 0
	for _, skill := range models.AllSkills {
		if stats, ok := enriched.SkillBreakdown[skill]; ok && stats.Count > bestCount {
			enriched.TopSkill = skill
			bestCount = stats.Count
		}
	}

	return enriched
}
