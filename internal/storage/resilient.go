package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dreamforge/internal/analytics"
	"dreamforge/internal/models"
)

// Resilient fronts the durable backend with the in-memory fallback. Every
// operation tries the primary first and falls back per call, so a database
// that recovers mid-run is used again without a restart. Reads merge the
// fallback's records into the primary's aggregates whenever the fallback
// holds data, keeping totals exact across a backend split.
type Resilient struct {
	primary  Backend
	fallback *Memory
	log      *slog.Logger
}

// NewResilient builds the store. primary may be nil, in which case every
// operation goes straight to the in-memory fallback.
func NewResilient(primary Backend, fallback *Memory, log *slog.Logger) *Resilient {
	if fallback == nil {
		fallback = NewMemory()
	}
	return &Resilient{primary: primary, fallback: fallback, log: log}
}

// Durable reports whether the durable backend is configured at all.
func (s *Resilient) Durable() bool {
	return s.primary != nil
}

// Record opens a draft usage record for an in-flight request. The
// timestamp is fixed at draft creation so latency downstream does not
// shift the record's position in the analytics window.
func (s *Resilient) Record(prompt string, skill models.Skill, params models.SkillParams) *Handle {
	rec := &models.UsageRecord{
		ID:         uuid.New(),
		Prompt:     prompt,
		Skill:      skill,
		Parameters: models.ParamsJSONB(params),
		Timestamp:  time.Now(),
	}
	return &Handle{store: s, rec: rec}
}

func (s *Resilient) insert(ctx context.Context, rec *models.UsageRecord) error {
	if s.primary != nil {
		if err := s.primary.Insert(ctx, rec); err == nil {
			return nil
		} else {
			s.log.Warn("durable insert failed, using in-memory fallback", "error", err)
		}
	}
	return s.fallback.Insert(ctx, rec)
}

func (s *Resilient) Summarize(ctx context.Context, windowDays int) (*models.AnalyticsSummary, error) {
	fb, err := s.fallback.Summarize(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if s.primary == nil {
		return fb, nil
	}

	primary, err := s.primary.Summarize(ctx, windowDays)
	if err != nil {
		s.log.Warn("durable summarize failed, serving in-memory analytics", "error", err)
		return fb, nil
	}
	if s.fallback.Len() == 0 {
		return primary, nil
	}
	return analytics.MergeSummaries(primary, fb), nil
}

func (s *Resilient) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	fb, err := s.fallback.RecentHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.primary == nil {
		return fb, nil
	}

	primary, err := s.primary.RecentHistory(ctx, limit)
	if err != nil {
		s.log.Warn("durable history read failed, serving in-memory history", "error", err)
		return fb, nil
	}
	if s.fallback.Len() == 0 {
		return primary, nil
	}
	return analytics.MergeHistory(primary, fb, limit), nil
}

func (s *Resilient) Detailed(ctx context.Context, windowDays int) (*models.DetailedAnalytics, error) {
	fb, err := s.fallback.Detailed(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if s.primary == nil {
		return fb, nil
	}

	primary, err := s.primary.Detailed(ctx, windowDays)
	if err != nil {
		s.log.Warn("durable detailed read failed, serving in-memory analytics", "error", err)
		return fb, nil
	}
	if s.fallback.Len() == 0 {
		return primary, nil
	}
	return analytics.MergeDetailed(primary, fb), nil
}

// Handle is a draft usage record awaiting its outcome. Exactly one of
// Finalize or MarkError performs the write; later calls are no-ops.
type Handle struct {
	store *Resilient
	rec   *models.UsageRecord
	saved bool
}

// ID returns the draft record's identifier.
func (h *Handle) ID() uuid.UUID {
	return h.rec.ID
}

// Finalize records the request outcome and persists the record.
func (h *Handle) Finalize(ctx context.Context, responseTimeMs, resultSizeBytes int, confidence *float64, success bool) error {
	if h.saved {
		return nil
	}
	h.saved = true

	h.rec.ResponseTimeMs = responseTimeMs
	h.rec.Success = success
	h.rec.Confidence = confidence
	if resultSizeBytes > 0 {
		h.rec.ResultSizeBytes = &resultSizeBytes
	}
	return h.store.insert(ctx, h.rec)
}

// MarkError persists the record as a failure with the given message.
func (h *Handle) MarkError(ctx context.Context, responseTimeMs int, message string) error {
	if h.saved {
		return nil
	}
	h.saved = true

	h.rec.ResponseTimeMs = responseTimeMs
	h.rec.Success = false
	h.rec.ErrorMessage = message
	return h.store.insert(ctx, h.rec)
}
