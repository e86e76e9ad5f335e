package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stableScope/internal/chain"
	"stableScope/internal/config"
	"stableScope/internal/model"
	"stableScope/internal/snapshot"
	"stableScope/internal/storage/postgres"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address: %q", cfg.Pool)
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{RequestsPerSecond: cfg.RequestsPerSecond})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	state, meta, err := snapshot.Capture(ctx, chainClient, common.HexToAddress(cfg.Pool), cfg.Block, retryPolicy(cfg.Retry), logger)
	if err != nil {
		return err
	}

	var store snapshot.Store
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := pg.UpsertPools(ctx, []model.Pool{{
			ChainID:        state.ChainID,
			Address:        state.Address,
			Meta:           meta,
			FirstSeenBlock: state.BlockNumber,
		}}); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
		store = snapshot.NewDBStore(pg)
	} else {
		store = snapshot.NewFileStore(cfg.Out)
	}

	if err := store.Save(ctx, state); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	logger.Info("snapshot saved",
		zap.String("pool", state.Address),
		zap.Uint64("block", state.BlockNumber),
		zap.Strings("balances", state.Balances),
		zap.String("total_supply", state.TotalSupply),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("out", cfg.Out),
	)
	return nil
}
