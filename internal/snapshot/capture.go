package snapshot

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stableScope/internal/chain"
	"stableScope/internal/dex"
	"stableScope/internal/model"
)

// Source is the chain surface needed to capture a pool state.
type Source interface {
	dex.ContractCaller
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Capture reads pool metadata and balances at block (0 = latest) and
// returns them as a PoolState along with the pool's metadata.
func Capture(ctx context.Context, src Source, pool common.Address, block uint64, retry chain.RetryPolicy, logger *zap.Logger) (model.PoolState, model.PoolMeta, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		chainID *big.Int
		meta    model.PoolMeta
		state   model.PoolState
		ts      uint64
	)
	call := func(what string, fn func(context.Context) error) error {
		return chain.WithRetry(ctx, retry, func(ctx context.Context) error {
			err := fn(ctx)
			if err != nil {
				logger.Warn("snapshot call failed", zap.String("call", what), zap.String("pool", pool.Hex()), zap.Error(err))
			}
			return err
		})
	}

	if err := call("chain_id", func(ctx context.Context) (err error) {
		chainID, err = src.GetChainID(ctx)
		return err
	}); err != nil {
		return model.PoolState{}, model.PoolMeta{}, fmt.Errorf("get chain id: %w", err)
	}
	if block == 0 {
		if err := call("latest_block", func(ctx context.Context) (err error) {
			block, err = src.LatestBlockNumber(ctx)
			return err
		}); err != nil {
			return model.PoolState{}, model.PoolMeta{}, fmt.Errorf("get latest block: %w", err)
		}
	}
	if err := call("pool_meta", func(ctx context.Context) (err error) {
		meta, err = dex.FetchPoolMeta(ctx, src, pool, dex.NewTokenMetaCache(), logger)
		return err
	}); err != nil {
		return model.PoolState{}, model.PoolMeta{}, fmt.Errorf("fetch pool meta: %w", err)
	}
	if err := call("pool_state", func(ctx context.Context) (err error) {
		state, err = dex.FetchPoolState(ctx, src, pool, meta, block)
		return err
	}); err != nil {
		return model.PoolState{}, model.PoolMeta{}, fmt.Errorf("fetch pool state: %w", err)
	}
	if err := call("block_timestamp", func(ctx context.Context) (err error) {
		ts, err = src.BlockTimestamp(ctx, block)
		return err
	}); err != nil {
		return model.PoolState{}, model.PoolMeta{}, fmt.Errorf("block timestamp: %w", err)
	}

	state.ChainID = chainID.Uint64()
	state.Timestamp = ts
	logger.Info("pool captured",
		zap.String("pool", state.Address),
		zap.Uint64("block", state.BlockNumber),
		zap.Int("n_coins", meta.N()),
		zap.Uint64("a", state.Amplification),
	)
	return state, meta, nil
}
