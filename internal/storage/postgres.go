package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"dreamforge/internal/analytics"
	"dreamforge/internal/models"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id UUID PRIMARY KEY,
	prompt TEXT NOT NULL,
	skill TEXT NOT NULL,
	parameters JSONB,
	timestamp TIMESTAMPTZ NOT NULL,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION,
	result_size_bytes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_usage_records_timestamp ON usage_records (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_usage_records_skill_timestamp ON usage_records (skill, timestamp DESC);
`

// Postgres is the durable usage backend.
type Postgres struct {
	db *DB
}

// NewPostgres ensures the usage table exists and returns the backend.
func NewPostgres(ctx context.Context, db *DB) (*Postgres, error) {
	if _, err := db.conn.ExecContext(ctx, usageSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure usage schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *models.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	const query = `
		INSERT INTO usage_records (
			id, prompt, skill, parameters, timestamp,
			response_time_ms, success, error_message, confidence, result_size_bytes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.db.conn.ExecContext(
		ctx, query,
		rec.ID, rec.Prompt, rec.Skill, rec.Parameters, rec.Timestamp,
		rec.ResponseTimeMs, rec.Success, rec.ErrorMessage, rec.Confidence, rec.ResultSizeBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (p *Postgres) Summarize(ctx context.Context, windowDays int) (*models.AnalyticsSummary, error) {
	cutoff := time.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	const query = `
		SELECT skill,
		       COUNT(*) AS count,
		       COUNT(*) FILTER (WHERE success) AS successes,
		       AVG(response_time_ms) AS avg_rt,
		       AVG(confidence) AS avg_conf
		FROM usage_records
		WHERE timestamp >= $1
		GROUP BY skill
	`

	rows, err := p.db.conn.QueryxContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	summary := &models.AnalyticsSummary{
		SkillBreakdown: map[models.Skill]models.SkillStats{},
		TimeRangeDays:  windowDays,
	}

	for rows.Next() {
		var (
			skill     string
			count     int
			successes int
			avgRT     sql.NullFloat64
			avgConf   sql.NullFloat64
		)
		if err := rows.Scan(&skill, &count, &successes, &avgRT, &avgConf); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary row: %w", err)
		}

		stats := models.SkillStats{
			Count:             count,
			AvgResponseTimeMs: int(math.Round(avgRT.Float64)),
			SuccessRatePct:    roundPct(successes, count),
		}
		if avgConf.Valid {
			pct := int(math.Round(avgConf.Float64 * 100))
			stats.AvgConfidencePct = &pct
		}
		summary.SkillBreakdown[models.Skill(skill)] = stats

		summary.TotalCalls += count
		summary.SuccessfulCalls += successes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage summary rows: %w", err)
	}

	summary.SuccessRate = roundPct(summary.SuccessfulCalls, summary.TotalCalls)
	summary.CostUSD = analytics.Cost(summary.TotalCalls)
	return summary, nil
}

func (p *Postgres) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	const query = `
		SELECT id, prompt, skill, timestamp, response_time_ms, success, confidence
		FROM usage_records
		ORDER BY timestamp DESC
		LIMIT $1
	`

	var rows []struct {
		ID             uuid.UUID `db:"id"`
		Prompt         string    `db:"prompt"`
		Skill          string    `db:"skill"`
		Timestamp      time.Time `db:"timestamp"`
		ResponseTimeMs int       `db:"response_time_ms"`
		Success        bool      `db:"success"`
		Confidence     *float64  `db:"confidence"`
	}
	if err := p.db.conn.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent history: %w", err)
	}

	entries := make([]models.HistoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.HistoryEntry{
			ID:             r.ID.String(),
			Prompt:         models.TruncatePrompt(r.Prompt),
			Skill:          models.Skill(r.Skill),
			Timestamp:      r.Timestamp,
			ResponseTimeMs: r.ResponseTimeMs,
			Success:        r.Success,
			Confidence:     r.Confidence,
		}
	}
	return entries, nil
}

func (p *Postgres) Detailed(ctx context.Context, windowDays int) (*models.DetailedAnalytics, error) {
	cutoff := time.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	out := &models.DetailedAnalytics{}

	const trendQuery = `
		SELECT to_char(date_trunc('day', timestamp AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS date,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE success) AS successes,
		       AVG(response_time_ms) AS avg_rt
		FROM usage_records
		WHERE timestamp >= $1
		GROUP BY 1
		ORDER BY 1
	`
	trendRows, err := p.db.conn.QueryxContext(ctx, trendQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily trends: %w", err)
	}
	defer trendRows.Close()
	for trendRows.Next() {
		var (
			date      string
			total     int
			successes int
			avgRT     sql.NullFloat64
		)
		if err := trendRows.Scan(&date, &total, &successes, &avgRT); err != nil {
			return nil, fmt.Errorf("failed to scan daily trend: %w", err)
		}
		out.DailyTrends = append(out.DailyTrends, models.DailyTrend{
			Date:              date,
			TotalCalls:        total,
			SuccessfulCalls:   successes,
			SuccessRate:       roundPct(successes, total),
			AvgResponseTimeMs: int(math.Round(avgRT.Float64)),
		})
	}
	if err := trendRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily trends: %w", err)
	}

	const perfQuery = `
		SELECT skill,
		       COUNT(*) AS count,
		       AVG(response_time_ms) AS avg_rt,
		       MIN(response_time_ms) AS min_rt,
		       MAX(response_time_ms) AS max_rt,
		       AVG(confidence) AS avg_conf
		FROM usage_records
		WHERE timestamp >= $1 AND success
		GROUP BY skill
	`
	perfRows, err := p.db.conn.QueryxContext(ctx, perfQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill performance: %w", err)
	}
	defer perfRows.Close()
	perf := map[models.Skill]models.SkillPerformance{}
	for perfRows.Next() {
		var (
			skill        string
			count        int
			avgRT        sql.NullFloat64
			minRT, maxRT int
			avgConf      sql.NullFloat64
		)
		if err := perfRows.Scan(&skill, &count, &avgRT, &minRT, &maxRT, &avgConf); err != nil {
			return nil, fmt.Errorf("failed to scan skill performance: %w", err)
		}
		sp := models.SkillPerformance{
			Skill:             models.Skill(skill),
			Count:             count,
			AvgResponseTimeMs: int(math.Round(avgRT.Float64)),
			MinResponseTimeMs: minRT,
			MaxResponseTimeMs: maxRT,
		}
		if avgConf.Valid {
			pct := int(math.Round(avgConf.Float64 * 100))
			sp.AvgConfidencePct = &pct
		}
		perf[sp.Skill] = sp
	}
	if err := perfRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read skill performance: %w", err)
	}
	for _, skill := range models.AllSkills {
		if sp, ok := perf[skill]; ok {
			out.SkillPerformance = append(out.SkillPerformance, sp)
		}
	}

	const errQuery = `
		SELECT COALESCE(NULLIF(error_message, ''), 'Unknown error') AS message,
		       COUNT(*) AS count,
		       MIN(skill) AS skill
		FROM usage_records
		WHERE timestamp >= $1 AND NOT success
		GROUP BY 1
		ORDER BY count DESC
		LIMIT 10
	`
	errRows, err := p.db.conn.QueryxContext(ctx, errQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query error analysis: %w", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var (
			message string
			count   int
			skill   string
		)
		if err := errRows.Scan(&message, &count, &skill); err != nil {
			return nil, fmt.Errorf("failed to scan error analysis: %w", err)
		}
		out.ErrorAnalysis = append(out.ErrorAnalysis, models.ErrorFrequency{
			ErrorMessage: message,
			Count:        count,
			Skill:        models.Skill(skill),
		})
	}
	if err := errRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read error analysis: %w", err)
	}

	return out, nil
}

func roundPct(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
