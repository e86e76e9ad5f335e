package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stableScope/internal/config"
	"stableScope/internal/model"
	"stableScope/internal/replay"
	"stableScope/internal/snapshot"
	"stableScope/internal/storage"
	"stableScope/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" && cfg.Out == "" {
		return fmt.Errorf("either pg dsn or out path is required")
	}
	windowSeconds := uint64(cfg.Window.Seconds())

	ctx, stop := signalContext()
	defer stop()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var seed model.PoolState
	var snapStore snapshot.Store
	switch {
	case cfg.Snapshot != "":
		snapStore = snapshot.NewFileStore(cfg.Snapshot)
	case store != nil && cfg.Pool != "":
		snapStore = snapshot.NewDBStore(store)
	}
	if snapStore != nil {
		var ok bool
		seed, ok, err = snapStore.Load(ctx, cfg.ChainID, cfg.Pool)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if !ok {
			return fmt.Errorf("no snapshot found for pool %q", cfg.Pool)
		}
	}

	var sink replay.MetricsSink
	if store != nil {
		sink = &replay.PostgresSink{Store: store}
	} else {
		w, err := storage.NewJSONLWriter(cfg.Out, true)
		if err != nil {
			return err
		}
		defer w.Close()
		sink = &replay.JSONLSink{Writer: w}
	}

	var stateStore replay.StateStore
	switch {
	case cfg.StateFile != "":
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	case store != nil:
		stateStore = &replay.DBStateStore{Store: store, Name: fmt.Sprintf("%s:%d", cfg.StateName, windowSeconds)}
	}

	rcfg := replay.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: cfg.RecomputeFrom,
		FollowChain:   cfg.FollowChain,
		StateStore:    stateStore,
		Engine: snapshot.Options{
			MaxIterations:     cfg.Engine.MaxIterations,
			StrictConvergence: cfg.Engine.StrictConvergence,
			Logger:            logger,
		},
	}
	if cfg.Comparisons != "" {
		w, err := storage.NewJSONLWriter(cfg.Comparisons, false)
		if err != nil {
			return err
		}
		defer w.Close()
		rcfg.Comparisons = w
	}

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.Duration("window", cfg.Window),
		zap.String("pool", seed.Address),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("out", cfg.Out),
		zap.String("state_file", cfg.StateFile),
		zap.Uint64("recompute_from", cfg.RecomputeFrom),
		zap.Bool("follow_chain", cfg.FollowChain),
	)

	summary, err := replay.NewReplayer(rcfg, sink, logger).Run(ctx, cfg.Input, seed)
	if err != nil {
		return err
	}
	logger.Info("final pool state",
		zap.Uint64("block", summary.Final.BlockNumber),
		zap.Strings("balances", summary.Final.Balances),
		zap.String("total_supply", summary.Final.TotalSupply),
	)
	return nil
}
