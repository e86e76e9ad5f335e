package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"stableScope/internal/model"
)

// ContractCaller is the eth_call surface the metadata readers need.
// *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context        context.Context
	Chain          ContractCaller
	PoolMetaCache  *PoolMetaCache
	TokenMetaCache *TokenMetaCache
	Logger         *zap.Logger
	// IncludeLiveParams re-reads A and fee at the log's block. Needs an
	// archive node for old blocks.
	IncludeLiveParams bool
}
