package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dreamforge/internal/analytics"
	"dreamforge/internal/models"
)

// Memory is the in-memory fallback backend: an append-only list guarded
// by a mutex. Data lives for the process lifetime only. Prior entries are
// never mutated, so concurrent appends cannot lose updates.
type Memory struct {
	mu      sync.RWMutex
	records []models.UsageRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Insert(ctx context.Context, rec *models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	m.records = append(m.records, stored)
	return nil
}

func (m *Memory) Summarize(ctx context.Context, windowDays int) (*models.AnalyticsSummary, error) {
	return analytics.Summarize(m.snapshot(), windowDays, time.Now()), nil
}

func (m *Memory) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return analytics.History(m.snapshot(), limit), nil
}

func (m *Memory) Detailed(ctx context.Context, windowDays int) (*models.DetailedAnalytics, error) {
	return analytics.Detailed(m.snapshot(), windowDays, time.Now()), nil
}

// Len reports how many records the fallback currently holds. The
// resilient store uses it to decide whether reads need merging.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) snapshot() []models.UsageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.UsageRecord, len(m.records))
	copy(out, m.records)
	return out
}
