// Package httpapi exposes the inference and analytics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"dreamforge/internal/config"
	"dreamforge/internal/intent"
	"dreamforge/internal/llm"
	"dreamforge/internal/pipeline"
	"dreamforge/internal/ratelimit"
	"dreamforge/internal/storage"
	"dreamforge/internal/vision"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Pipeline  *pipeline.Pipeline
	Store     *storage.Resilient
	RateLimit ratelimit.Limiter
	Log       *slog.Logger
	Dev       bool
}

// NewRouter builds the service graph from configuration and registers all
// routes. Each optional dependency (database, Redis, LLM, vision API key)
// is wired when configured and replaced with its fallback when not; only
// programming errors can make this fail.
func NewRouter(cfg *config.Config, log *slog.Logger) (*http.ServeMux, *Dependencies, error) {
	var primary storage.Backend
	if cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.Warn("database unavailable, running with in-memory usage storage", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			pg, err := storage.NewPostgres(ctx, db)
			cancel()
			if err != nil {
				log.Warn("database schema setup failed, running with in-memory usage storage", "error", err)
			} else {
				primary = pg
			}
		}
	} else {
		log.Info("no DATABASE_URL configured, usage storage is in-memory only")
	}
	store := storage.NewResilient(primary, storage.NewMemory(), log)

	visionClient := vision.NewHTTPClient(vision.ClientConfig{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Timeout: cfg.Vision.Timeout,
	}, log)

	classifier := intent.NewClassifier(log)

	pipe := &pipeline.Pipeline{
		Classifier: classifier,
		Executor:   vision.NewExecutor(visionClient),
		Store:      store,
		Log:        log,
	}
	if cfg.LLM.APIKey != "" {
		completer := llm.NewOpenAICompleter(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
		pipe.Router = llm.NewRouter(completer, classifier, log)
		pipe.Verifier = llm.NewVerifier(completer, log)
		pipe.Narrator = llm.NewNarrator(completer, log)
	} else {
		log.Info("no LLM API key configured, routing uses rules only and verification is skipped")
	}

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit.PerMinute, log)
	}

	deps := &Dependencies{
		Pipeline:  pipe,
		Store:     store,
		RateLimit: limiter,
		Log:       log,
		Dev:       cfg.IsDevelopment(),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)
	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/api/dream", deps.handleDream)
	mux.HandleFunc("/api/usage", deps.handleUsage)
	mux.HandleFunc("/health", deps.handleHealth)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"durable": d.Store.Durable(),
	})
}
