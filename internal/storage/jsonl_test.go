package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"stableScope/internal/model"
)

func TestJsonlStorageAppendsAndScans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	first := []model.LogRecord{{TxHash: "0x1", LogIndex: 1, Topics: []string{"0xa"}}}
	second := []model.LogRecord{{TxHash: "0x2", LogIndex: 2, Topics: []string{"0xb"}}}
	if err := s.PutLogBatch(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutLogBatch(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := s.PutLogBatch(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	var got []model.LogRecord
	err := ScanJSONL(path, func(line []byte) error {
		var rec model.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := append(first, second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records mismatch: %+v != %+v", got, want)
	}
}

func TestJsonlStorageHonorsCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewJsonlStorage(path).PutLogBatch(ctx, []model.LogRecord{{TxHash: "0x1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written, stat err %v", err)
	}
}

func TestScanJSONLSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	if err := os.WriteFile(path, []byte("{\"a\":1}\n\n   \n{\"a\":2}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	count := 0
	if err := ScanJSONL(path, func([]byte) error { count++; return nil }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
}

func TestJSONFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "pool.json")

	var missing model.PoolState
	ok, err := ReadJSONFile(path, &missing)
	if err != nil || ok {
		t.Fatalf("expected missing file, got ok=%v err=%v", ok, err)
	}

	want := model.PoolState{Address: "0x1", Amplification: 100, Balances: []string{"1", "2"}, Prices: []string{"3", "4"}, TotalSupply: "3"}
	if err := WriteJSONFile(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	var got model.PoolState
	ok, err = ReadJSONFile(path, &got)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("state mismatch: %+v != %+v", got, want)
	}
}
