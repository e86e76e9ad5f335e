package model

import (
	"encoding/json"
	"fmt"
)

// LogRecord is a raw pool log as fetched from the chain.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Key identifies a log across reorg-free reruns.
func (lr LogRecord) Key() string {
	return fmt.Sprintf("%s:%d", lr.TxHash, lr.LogIndex)
}

// UnmarshalJSON tolerates records written before topics were always set.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type alias LogRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Topics == nil {
		a.Topics = []string{}
	}
	*lr = LogRecord(a)
	return nil
}

// DecodeError records a log line that could not be decoded.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
