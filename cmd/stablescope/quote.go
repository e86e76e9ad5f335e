package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stableScope/internal/config"
	"stableScope/internal/quote"
	"stableScope/internal/snapshot"
	"stableScope/internal/storage/postgres"
)

func runQuote(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	var store snapshot.Store
	if cfg.PGDSN != "" {
		if cfg.Pool == "" {
			return fmt.Errorf("pool address is required with pg dsn")
		}
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		store = snapshot.NewDBStore(pg)
	} else {
		if cfg.Snapshot == "" {
			return fmt.Errorf("snapshot path is required")
		}
		store = snapshot.NewFileStore(cfg.Snapshot)
	}

	state, ok, err := store.Load(ctx, cfg.ChainID, cfg.Pool)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("no snapshot found")
	}
	pool, err := snapshot.ToPool(state, snapshot.Options{
		MaxIterations:     cfg.Engine.MaxIterations,
		StrictConvergence: cfg.Engine.StrictConvergence,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	resp, next, err := quote.Run(pool, quote.Request{
		Op:      args[0],
		I:       cfg.I,
		J:       cfg.J,
		Amount:  cfg.Amount,
		Amounts: cfg.Amounts,
		Execute: cfg.Execute,
	})
	if err != nil {
		return err
	}

	if cfg.Execute {
		if err := store.Save(ctx, snapshot.FromPool(next, state)); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		logger.Info("snapshot updated", zap.String("op", args[0]), zap.String("pool", state.Address))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
