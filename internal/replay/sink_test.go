package replay

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"stableScope/internal/model"
	"stableScope/internal/storage"
)

func TestJSONLSinkWritesMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	w, err := storage.NewJSONLWriter(path, true)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	sink := &JSONLSink{Writer: w}

	start := time.Unix(3600, 0).UTC()
	metrics := []model.ReplayWindowMetrics{{
		ChainID:        1,
		PoolAddress:    "0xpool",
		WindowSizeSecs: 3600,
		WindowStart:    start,
		WindowEnd:      start.Add(time.Hour),
		EventCount:     2,
		SwapCount:      1,
	}}
	if err := sink.WritePools(context.Background(), []model.Pool{{ChainID: 1, Address: "0xpool"}}); err != nil {
		t.Fatalf("write pools: %v", err)
	}
	if err := sink.WriteMetrics(context.Background(), metrics); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []model.ReplayWindowMetrics
	err = storage.ScanJSONL(path, func(line []byte) error {
		var m model.ReplayWindowMetrics
		if err := json.Unmarshal(line, &m); err != nil {
			return err
		}
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 line, got %d", len(got))
	}
	if got[0].EventCount != 2 || got[0].SwapCount != 1 || !got[0].WindowStart.Equal(start) {
		t.Fatalf("unexpected metrics: %+v", got[0])
	}
}
