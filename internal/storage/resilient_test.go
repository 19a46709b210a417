package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamforge/internal/models"
)

// flakyBackend wraps a Memory backend and fails while down is set,
// simulating a database outage.
type flakyBackend struct {
	mem  *Memory
	down bool
}

var errDown = errors.New("connection refused")

func (f *flakyBackend) Insert(ctx context.Context, rec *models.UsageRecord) error {
	if f.down {
		return errDown
	}
	return f.mem.Insert(ctx, rec)
}

func (f *flakyBackend) Summarize(ctx context.Context, windowDays int) (*models.AnalyticsSummary, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.Summarize(ctx, windowDays)
}

func (f *flakyBackend) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.RecentHistory(ctx, limit)
}

func (f *flakyBackend) Detailed(ctx context.Context, windowDays int) (*models.DetailedAnalytics, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.Detailed(ctx, windowDays)
}

func finalize(t *testing.T, s *Resilient, skill models.Skill, success bool) {
	t.Helper()
	h := s.Record("prompt", skill, models.CaptionParams{})
	if success {
		conf := 0.8
		require.NoError(t, h.Finalize(context.Background(), 100, 64, &conf, true))
	} else {
		require.NoError(t, h.MarkError(context.Background(), 100, "provider error"))
	}
}

func TestResilientMemoryOnlyWithoutPrimary(t *testing.T) {
	s := NewResilient(nil, NewMemory(), slog.Default())
	assert.False(t, s.Durable())

	finalize(t, s, models.SkillCaption, true)

	summary, err := s.Summarize(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCalls)
}

func TestResilientWritesGoToPrimary(t *testing.T) {
	primary := &flakyBackend{mem: NewMemory()}
	fallback := NewMemory()
	s := NewResilient(primary, fallback, slog.Default())

	finalize(t, s, models.SkillDetect, true)

	assert.Equal(t, 1, primary.mem.Len())
	assert.Equal(t, 0, fallback.Len())
}

func TestResilientFallsBackPerOperation(t *testing.T) {
	primary := &flakyBackend{mem: NewMemory()}
	fallback := NewMemory()
	s := NewResilient(primary, fallback, slog.Default())

	finalize(t, s, models.SkillDetect, true)

	primary.down = true
	finalize(t, s, models.SkillQuery, true)

	// Recovery: next write lands on the primary again.
	primary.down = false
	finalize(t, s, models.SkillCaption, true)

	assert.Equal(t, 2, primary.mem.Len())
	assert.Equal(t, 1, fallback.Len())
}

func TestResilientMergesAggregatesAcrossSplit(t *testing.T) {
	primary := &flakyBackend{mem: NewMemory()}
	s := NewResilient(primary, NewMemory(), slog.Default())

	finalize(t, s, models.SkillDetect, true)
	finalize(t, s, models.SkillDetect, false)

	primary.down = true
	finalize(t, s, models.SkillQuery, true)
	primary.down = false

	summary, err := s.Summarize(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalCalls)
	assert.Equal(t, 2, summary.SuccessfulCalls)
	assert.Equal(t, 67, summary.SuccessRate)
	assert.Equal(t, 2, summary.SkillBreakdown[models.SkillDetect].Count)
	assert.Equal(t, 1, summary.SkillBreakdown[models.SkillQuery].Count)

	history, err := s.RecentHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	detailed, err := s.Detailed(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, detailed.ErrorAnalysis, 1)
	assert.Equal(t, "provider error", detailed.ErrorAnalysis[0].ErrorMessage)
}

func TestResilientReadsFallBackWhenPrimaryDown(t *testing.T) {
	primary := &flakyBackend{mem: NewMemory()}
	s := NewResilient(primary, NewMemory(), slog.Default())

	primary.down = true
	finalize(t, s, models.SkillCaption, true)

	summary, err := s.Summarize(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCalls)
}

func TestHandleWritesOnlyOnce(t *testing.T) {
	fallback := NewMemory()
	s := NewResilient(nil, fallback, slog.Default())

	h := s.Record("prompt", models.SkillCaption, models.CaptionParams{})
	require.NoError(t, h.Finalize(context.Background(), 50, 10, nil, true))
	require.NoError(t, h.MarkError(context.Background(), 50, "late error"))
	require.NoError(t, h.Finalize(context.Background(), 50, 10, nil, false))

	assert.Equal(t, 1, fallback.Len())
	history, err := s.RecentHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestHandleTimestampFixedAtDraft(t *testing.T) {
	s := NewResilient(nil, NewMemory(), slog.Default())

	h := s.Record("prompt", models.SkillCaption, models.CaptionParams{})
	drafted := time.Now()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.Finalize(context.Background(), 10, 0, nil, true))

	history, err := s.RecentHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.WithinDuration(t, drafted, history[0].Timestamp, 5*time.Millisecond)
}

func TestValidationFailuresAreNotRecorded(t *testing.T) {
	// A Handle that is never finalized must leave no trace.
	fallback := NewMemory()
	s := NewResilient(nil, fallback, slog.Default())

	_ = s.Record("prompt", models.SkillCaption, models.CaptionParams{})
	assert.Equal(t, 0, fallback.Len())
}
