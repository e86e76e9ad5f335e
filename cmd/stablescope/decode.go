package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stableScope/internal/chain"
	"stableScope/internal/config"
	"stableScope/internal/dex"
	"stableScope/internal/model"
	"stableScope/internal/storage"
	"stableScope/internal/storage/postgres"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
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
	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{RequestsPerSecond: cfg.RequestsPerSecond})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

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

	var decoder dex.Decoder
	decoder, err = dex.NewCurvePoolDecoder(dex.DecoderConfig{CoinCounts: cfg.CoinCounts, Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	decodeCtx := dex.DecodeContext{
		Context:           ctx,
		Chain:             chainClient,
		PoolMetaCache:     dex.NewPoolMetaCache(),
		TokenMetaCache:    dex.NewTokenMetaCache(),
		Logger:            logger,
		IncludeLiveParams: cfg.IncludeLiveMeta,
	}

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Ints("n_coins", cfg.CoinCounts),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)

	pools := make(map[string]model.Pool)
	var total, decoded, skipped, failed int
	err = storage.ScanJSONL(cfg.In, func(line []byte) error {
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			writeDecodeError(errWriter, model.DecodeError{Error: err.Error()})
			return nil
		}
		if len(record.Topics) == 0 {
			failed++
			writeDecodeError(errWriter, decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
			return nil
		}
		if !decoder.CanDecode(record.Topics[0]) {
			skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			failed++
			logger.Debug("decode failed", zap.String("tx", record.TxHash), zap.Error(err))
			writeDecodeError(errWriter, decodeErrorFromRecord(record, err))
			return nil
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		trackPool(pools, event)
		decoded++
		return nil
	})
	if err != nil {
		return err
	}

	if store != nil && len(pools) > 0 {
		rows := make([]model.Pool, 0, len(pools))
		for _, p := range pools {
			rows = append(rows, p)
		}
		if err := store.UpsertPools(ctx, rows); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("pools", len(pools)),
	)

	return nil
}

func trackPool(pools map[string]model.Pool, event *model.TypedEvent) {
	key := strings.ToLower(event.Address)
	existing, ok := pools[key]
	if ok && existing.FirstSeenBlock <= event.BlockNumber {
		return
	}
	pools[key] = model.Pool{
		ChainID:        event.ChainID,
		Address:        common.HexToAddress(event.Address).Hex(),
		Meta:           event.PoolMeta,
		FirstSeenBlock: event.BlockNumber,
	}
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func writeDecodeError(writer *storage.JSONLWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
