package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/fetcher"
	"github.com/urbanhealthlab/icemapper/internal/store"
)

// newFetcher builds the shared HTTP fetcher from config.
func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}

// openStore opens and migrates the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// recordRun wraps a pipeline stage with run accounting. The run row is
// finished even when the stage fails, so status reflects the failure.
func recordRun(ctx context.Context, st store.Store, kind string, fn func(ctx context.Context) (map[string]any, error)) error {
	run, err := st.CreateRun(ctx, kind)
	if err != nil {
		return err
	}

	summary, stageErr := fn(ctx)
	if err := st.FinishRun(ctx, run.ID, summary, stageErr); err != nil {
		zap.L().Warn("failed to record run outcome",
			zap.String("run_id", run.ID), zap.Error(err))
	}
	return stageErr
}
