package indexer

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"stableScope/internal/model"
)

// recordBuilder stamps every log of one batch with the same chain and
// ingestion time.
type recordBuilder struct {
	chainID    uint64
	ingestedAt string
}

func newRecordBuilder(chainID uint64, now time.Time) recordBuilder {
	return recordBuilder{chainID: chainID, ingestedAt: now.UTC().Format(time.RFC3339Nano)}
}

func (b recordBuilder) record(log types.Log, timestamp uint64) model.LogRecord {
	return model.LogRecord{
		ChainID:     b.chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      hexTopics(log),
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  b.ingestedAt,
	}
}

func hexTopics(log types.Log) []string {
	out := make([]string, len(log.Topics))
	for k, topic := range log.Topics {
		out[k] = topic.Hex()
	}
	return out
}

// logID keys a log by block, tx and index; halved ranges can overlap on retry.
func logID(log types.Log) string {
	return fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
}
