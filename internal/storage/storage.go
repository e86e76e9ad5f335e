package storage

import (
	"context"

	"stableScope/internal/model"
)

// Storage receives raw pool logs one block range at a time. A batch is
// written whole or not at all before the indexer advances its checkpoint.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}
