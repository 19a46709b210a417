// Package intent routes a free-text prompt to a vision skill using
// pattern-scoring rules. It is the always-available fallback behind the
// LLM router and never fails.
package intent

import (
	"log/slog"
	"regexp"
	"strings"

	"dreamforge/internal/models"
)

var skillPatterns = map[models.Skill][]*regexp.Regexp{
	models.SkillDetect: compile(
		`find.*objects`, `detect`, `identify.*objects`, `locate.*objects`,
		`objects.*detect`, `things.*see`, `spot.*objects`, `recognize.*objects`,
		`what.*objects`, `find.*cars`, `find.*people`, `find.*all`,
		`find.*the.*\w+`, `find.*person`, `find.*cat`, `find.*dog`,
	),
	models.SkillPoint: compile(
		`point`, `where.*is`, `where.*located`, `coordinates`, `location.*of`,
		`position.*of`, `click`, `select`, `highlight`, `mark.*position`, `mark.*the`,
	),
	models.SkillQuery: compile(
		`what.*happening`, `how.*many`, `why.*is`, `when.*was`, `who.*is`,
		`explain.*what`, `tell.*me.*about`, `what.*is.*in`, `how.*is`,
	),
	models.SkillCaption: compile(
		`caption`, `describe.*image`, `describe.*scene`, `summary`, `overview`,
		`describe.*what.*see`, `general.*description`, `overall.*scene`,
		`describe.*this`, `brief.*description`, `detailed.*description`,
	),
}

// Confidence adjectives map to threshold buckets, checked high to low.
var confidenceKeywords = []struct {
	threshold float64
	words     []string
}{
	{0.8, []string{"very", "extremely", "definitely", "clearly", "obviously"}},
	{0.5, []string{"maybe", "possibly", "might", "could", "perhaps"}},
	{0.3, []string{"barely", "hardly", "slightly", "somewhat"}},
}

var (
	percentRe = regexp.MustCompile(`(\d+)%`)
	targetRe  = regexp.MustCompile(`(?:find|detect|locate)\s+(?:the\s+)?(\w+)`)
	pointRe   = regexp.MustCompile(`(?:point|where|locate)\s+(?:to\s+|at\s+)?(?:the\s+)?(.+?)(?:\s+is|\s+in|$)`)
)

func compile(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// Classifier scores prompts against per-skill pattern tables.
type Classifier struct {
	log *slog.Logger
}

func NewClassifier(log *slog.Logger) *Classifier {
	return &Classifier{log: log}
}

// Classify picks the skill with the highest pattern score and extracts its
// parameters. Empty input defaults to a plain caption request. Ties are
// broken by skill priority order, which must stay deterministic.
func (c *Classifier) Classify(prompt string) (models.Skill, models.SkillParams) {
	if strings.TrimSpace(prompt) == "" {
		return models.SkillCaption, models.CaptionParams{}
	}

	normalized := strings.ToLower(strings.TrimSpace(prompt))

	scores := make(map[models.Skill]float64, len(models.AllSkills))
	for _, skill := range models.AllSkills {
		for _, pattern := range skillPatterns[skill] {
			hits := pattern.FindAllStringIndex(normalized, 2)
			if len(hits) == 0 {
				continue
			}
			scores[skill]++
			if len(hits) > 1 {
				scores[skill] += 0.5
			}
		}
	}

	best := models.SkillCaption
	bestScore := 0.0
	for _, skill := range models.AllSkills {
		if scores[skill] > bestScore {
			best = skill
			bestScore = scores[skill]
		}
	}
	if bestScore == 0 {
		return models.SkillCaption, models.CaptionParams{}
	}

	params := extractParams(normalized, best)
	c.log.Debug("classified prompt", "skill", best, "score", bestScore)
	return best, params
}

func extractParams(prompt string, skill models.Skill) models.SkillParams {
	switch skill {
	case models.SkillDetect:
		p := models.DetectParams{Threshold: extractThreshold(prompt)}
		if m := targetRe.FindStringSubmatch(prompt); m != nil {
			p.Target = m[1]
		}
		return p

	case models.SkillPoint:
		p := models.PointParams{Query: prompt}
		if m := pointRe.FindStringSubmatch(prompt); m != nil {
			p.Query = strings.TrimSpace(m[1])
		}
		return p

	case models.SkillQuery:
		return models.QueryParams{
			Question: prompt,
			Detailed: strings.Contains(prompt, "detail") || strings.Contains(prompt, "explain"),
		}

	case models.SkillCaption:
		p := models.CaptionParams{}
		if strings.Contains(prompt, "brief") || strings.Contains(prompt, "short") {
			p.Style = "brief"
		} else if strings.Contains(prompt, "detail") || strings.Contains(prompt, "long") {
			p.Style = "detailed"
		}
		return p
	}
	return models.CaptionParams{}
}

// extractThreshold resolves a detection threshold: an explicit percentage
// wins, then confidence adjectives, then the 0.5 default.
func extractThreshold(prompt string) float64 {
	if m := percentRe.FindStringSubmatch(prompt); m != nil {
		pct := 0
		for _, ch := range m[1] {
			pct = pct*10 + int(ch-'0')
		}
		return models.ClampThreshold(float64(pct) / 100)
	}

	for _, bucket := range confidenceKeywords {
		for _, word := range bucket.words {
			if strings.Contains(prompt, word) {
				return bucket.threshold
			}
		}
	}

	return 0.5
}
