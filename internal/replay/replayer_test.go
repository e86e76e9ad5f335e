package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"cosmossdk.io/math"

	"stableScope/internal/model"
	"stableScope/internal/storage"
)

func mustInt(t *testing.T, s string) math.Int {
	t.Helper()
	v, ok := math.NewIntFromString(s)
	if !ok {
		t.Fatalf("bad int %q", s)
	}
	return v
}

type memorySink struct {
	pools   []model.Pool
	metrics []model.ReplayWindowMetrics
}

func (m *memorySink) WritePools(_ context.Context, pools []model.Pool) error {
	m.pools = append(m.pools, pools...)
	return nil
}

func (m *memorySink) WriteMetrics(_ context.Context, metrics []model.ReplayWindowMetrics) error {
	m.metrics = append(m.metrics, metrics...)
	return nil
}

func writeEvents(t *testing.T, path string, records []model.TypedEventRecord, extra ...string) {
	t.Helper()
	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	for _, line := range extra {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
}

func replayEvents(t *testing.T) []model.TypedEventRecord {
	first := record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{
		SoldID: 0, TokensSold: "100000000000000000000", BoughtID: 1, TokensBought: "99800210753893756193",
	})
	other := record(t, model.EventTokenExchange, 101, 1100, model.TokenExchangeData{
		SoldID: 0, TokensSold: "1", BoughtID: 1, TokensBought: "1",
	})
	other.Address = "0x0000000000000000000000000000000000000001"
	stale := record(t, model.EventTokenExchange, 50, 900, model.TokenExchangeData{
		SoldID: 0, TokensSold: "1", BoughtID: 1, TokensBought: "1",
	})
	second := record(t, model.EventTokenExchange, 103, 4000, model.TokenExchangeData{
		SoldID: 1, TokensSold: "50000000000000000000", BoughtID: 0, TokensBought: "49000000000000000000",
	})
	return []model.TypedEventRecord{first, other, stale, second}
}

func TestReplayerRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, replayEvents(t), "{not json")

	cmpPath := filepath.Join(dir, "comparisons.jsonl")
	cmpWriter, err := storage.NewJSONLWriter(cmpPath, false)
	if err != nil {
		t.Fatalf("open comparisons: %v", err)
	}
	sink := &memorySink{}
	store := &FileStateStore{Path: filepath.Join(dir, "state.json")}

	r := NewReplayer(Config{
		WindowSeconds: 3600,
		FollowChain:   true,
		StateStore:    store,
		Comparisons:   cmpWriter,
	}, sink, nil)
	summary, err := r.Run(context.Background(), input, seedState())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := cmpWriter.Close(); err != nil {
		t.Fatalf("close comparisons: %v", err)
	}

	if summary.Total != 5 || summary.Replayed != 2 || summary.Skipped != 2 || summary.Failed != 1 || summary.Windows != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	wantFinal := []string{"1051000000000000000000", "950199789246106243807"}
	if !reflect.DeepEqual(summary.Final.Balances, wantFinal) {
		t.Fatalf("final balances mismatch: %v != %v", summary.Final.Balances, wantFinal)
	}
	if summary.Final.BlockNumber != 103 || summary.Final.Timestamp != 4000 {
		t.Fatalf("final position mismatch: %+v", summary.Final)
	}

	if len(sink.pools) != 1 || sink.pools[0].FirstSeenBlock != 101 {
		t.Fatalf("unexpected pools: %+v", sink.pools)
	}
	if len(sink.metrics) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(sink.metrics))
	}
	w0, w1 := sink.metrics[0], sink.metrics[1]
	if w0.WindowStart.Unix() != 0 || w0.WindowEnd.Unix() != 3600 || w1.WindowStart.Unix() != 3600 {
		t.Fatalf("unexpected window bounds: %v %v", w0.WindowStart, w1.WindowStart)
	}
	if w0.EventCount != 1 || w0.SwapCount != 1 || w0.ExactMatches != 1 || w0.NonConverged != 0 {
		t.Fatalf("unexpected first window: %+v", w0)
	}
	if !reflect.DeepEqual(w0.Volumes, []string{"100000000000000000000", "0"}) {
		t.Fatalf("unexpected volumes: %v", w0.Volumes)
	}
	if w0.AbsDeviation != "0" || w0.MaxDeviationBps != "0.000000000000000000" {
		t.Fatalf("unexpected deviation: %+v", w0)
	}
	if w0.VirtualPrice == nil {
		t.Fatalf("expected virtual price")
	}
	if w1.ExactMatches != 0 || w1.ObservedTotal != "49000000000000000000" || w1.AbsDeviation == "0" {
		t.Fatalf("unexpected second window: %+v", w1)
	}

	lines := 0
	if err := storage.ScanJSONL(cmpPath, func(line []byte) error {
		var cmp model.ReplayComparison
		if err := json.Unmarshal(line, &cmp); err != nil {
			return err
		}
		lines++
		return nil
	}); err != nil {
		t.Fatalf("scan comparisons: %v", err)
	}
	if lines != 2 {
		t.Fatalf("expected 2 comparisons, got %d", lines)
	}

	// Only the closed window is checkpointed.
	st, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if st.LastProcessedTs != 1000 || st.Snapshot == nil || st.Snapshot.BlockNumber != 101 {
		t.Fatalf("unexpected checkpoint: %+v", st)
	}
	wantCheckpoint := []string{"1100000000000000000000", "900199789246106243807"}
	if !reflect.DeepEqual(st.Snapshot.Balances, wantCheckpoint) {
		t.Fatalf("checkpoint balances mismatch: %v", st.Snapshot.Balances)
	}
}

func TestReplayerResumes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, replayEvents(t))
	store := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	cfg := Config{WindowSeconds: 3600, FollowChain: true, StateStore: store}

	if _, err := NewReplayer(cfg, &memorySink{}, nil).Run(context.Background(), input, seedState()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	sink := &memorySink{}
	summary, err := NewReplayer(cfg, sink, nil).Run(context.Background(), input, seedState())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Replayed != 1 || len(sink.metrics) != 1 || sink.metrics[0].WindowStart.Unix() != 3600 {
		t.Fatalf("unexpected resume: %+v metrics=%d", summary, len(sink.metrics))
	}
	wantFinal := []string{"1051000000000000000000", "950199789246106243807"}
	if !reflect.DeepEqual(summary.Final.Balances, wantFinal) {
		t.Fatalf("final balances mismatch: %v", summary.Final.Balances)
	}
}

func TestReplayerRecomputeSkipsMeasurement(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, replayEvents(t))

	sink := &memorySink{}
	cfg := Config{WindowSeconds: 3600, FollowChain: true, RecomputeFrom: 3600}
	summary, err := NewReplayer(cfg, sink, nil).Run(context.Background(), input, seedState())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Replayed != 2 || len(sink.metrics) != 1 {
		t.Fatalf("unexpected recompute: %+v metrics=%d", summary, len(sink.metrics))
	}
	if sink.metrics[0].SwapCount != 1 {
		t.Fatalf("unexpected window: %+v", sink.metrics[0])
	}
}

func TestReplayerValidates(t *testing.T) {
	if _, err := NewReplayer(Config{}, &memorySink{}, nil).Run(context.Background(), "missing", seedState()); err == nil {
		t.Fatalf("expected window error")
	}
	if _, err := NewReplayer(Config{WindowSeconds: 60}, nil, nil).Run(context.Background(), "missing", seedState()); err == nil {
		t.Fatalf("expected sink error")
	}
	if _, err := NewReplayer(Config{WindowSeconds: 60}, &memorySink{}, nil).Run(context.Background(), "missing", model.PoolState{}); err == nil {
		t.Fatalf("expected snapshot error")
	}
}
