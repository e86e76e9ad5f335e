package replay

import (
	"context"
	"fmt"

	"stableScope/internal/model"
	"stableScope/internal/storage"
	"stableScope/internal/storage/postgres"
)

// MetricsSink receives closed replay windows and the pools they cover.
type MetricsSink interface {
	WritePools(ctx context.Context, pools []model.Pool) error
	WriteMetrics(ctx context.Context, metrics []model.ReplayWindowMetrics) error
}

// PostgresSink upserts into the pools and replay_window_metrics tables.
type PostgresSink struct {
	Store *postgres.Store
}

func (s *PostgresSink) WritePools(ctx context.Context, pools []model.Pool) error {
	return s.Store.UpsertPools(ctx, pools)
}

func (s *PostgresSink) WriteMetrics(ctx context.Context, metrics []model.ReplayWindowMetrics) error {
	return s.Store.UpsertReplayWindowMetrics(ctx, metrics)
}

// JSONLSink appends window metrics to a JSONL file. Pools are not written.
type JSONLSink struct {
	Writer *storage.JSONLWriter
}

func (s *JSONLSink) WritePools(context.Context, []model.Pool) error { return nil }

func (s *JSONLSink) WriteMetrics(_ context.Context, metrics []model.ReplayWindowMetrics) error {
	for _, m := range metrics {
		if err := s.Writer.Write(m); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return s.Writer.Flush()
}
