package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// CacheBumper invalidates cached reports.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// CacheInvalidateJob drops cached reports after ledger writes.
type CacheInvalidateJob struct {
	Cache  CacheBumper
	Logger *slog.Logger
}

// Handle bumps the report cache version.
func (j *CacheInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache invalidate: handler not configured")
	}
	var payload CacheInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.Cache.Bump(ctx); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("report cache invalidated", slog.String("job", TaskReportCacheInvalidate), slog.String("reason", payload.Reason))
	}
	return nil
}
