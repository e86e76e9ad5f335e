package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     1,
		BlockNumber: 19000000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     3,
		LogIndex:    41,
		Address:     "0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7",
		Topics:      []string{"0x8b3e96f2b889fa771c53c981b40daf005f63f637f1869f707052d15a3dd97140"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
	if decoded.Key() != "0xdef456:41" {
		t.Fatalf("unexpected key %s", decoded.Key())
	}
}

func TestLogRecordMissingTopics(t *testing.T) {
	var decoded LogRecord
	if err := json.Unmarshal([]byte(`{"tx_hash":"0x1","log_index":2}`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Topics == nil || len(decoded.Topics) != 0 {
		t.Fatalf("expected empty topics, got %#v", decoded.Topics)
	}
}
