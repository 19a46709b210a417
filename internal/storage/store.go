// Package storage persists usage records behind a dual-backend store: a
// durable Postgres backend and a process-lifetime in-memory fallback that
// keeps the analytics contract intact when the database is unreachable.
package storage

import (
	"context"

	"dreamforge/internal/models"
)

// Backend persists usage records and serves the aggregate read contract.
// Both implementations must apply the same window filtering and rounding
// rules.
type Backend interface {
	Insert(ctx context.Context, rec *models.UsageRecord) error

	// Summarize aggregates records with timestamp >= now - windowDays.
	Summarize(ctx context.Context, windowDays int) (*models.AnalyticsSummary, error)

	// RecentHistory returns up to limit records, most recent first, with
	// prompts truncated for display.
	RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)

	// Detailed computes daily trends, per-skill performance and error
	// frequencies for the window.
	Detailed(ctx context.Context, windowDays int) (*models.DetailedAnalytics, error)
}
