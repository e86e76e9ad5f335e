package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stableScope/internal/chain"
	"stableScope/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "stablescope",
		Short:        "StableSwap pool indexer, replayer and calculator",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newIndexCmd(), newDecodeCmd(), newReplayCmd(), newQuoteCmd(), newSnapshotCmd())
	return root
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Fetch raw Curve pool logs into JSONL",
		RunE:  runIndex,
	}
	addRPCFlags(cmd)
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	cmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), defaults to Curve pool events")
	cmd.Flags().IntSlice("n-coins", []int{2, 3, 4}, "pool sizes whose events make up the default topic0 filter")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	addRetryFlags(cmd)
	addLogFlag(cmd)
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed pool events",
		RunE:  runDecode,
	}
	addRPCFlags(cmd)
	cmd.Flags().String("in", "", "input raw logs JSONL")
	cmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN to upsert pool metadata")
	cmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	cmd.Flags().IntSlice("n-coins", []int{2, 3, 4}, "pool sizes to recognize")
	cmd.Flags().Bool("include-live-meta", false, "re-read A and fee at each log's block (requires archive RPC)")
	addLogFlag(cmd)
	return cmd
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay typed events through the invariant engine and measure deviation",
		RunE:  runReplay,
	}
	cmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	cmd.Flags().String("window", "1h", "metrics window (e.g. 5m, 1h)")
	cmd.Flags().String("pool", "", "pool address, required when the snapshot comes from Postgres")
	cmd.Flags().Uint64("chain-id", 0, "chain id of the pool snapshot")
	cmd.Flags().String("snapshot", "", "seed snapshot JSON file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots, metrics and state")
	cmd.Flags().String("out", "", "metrics JSONL path, used when no Postgres DSN is given")
	cmd.Flags().String("comparisons", "", "optional per-event comparison JSONL path")
	cmd.Flags().Int("batch-size", 1000, "windows per sink write")
	cmd.Flags().String("state-file", "", "local state file for progress tracking")
	cmd.Flags().String("state-name", "replay", "state row name in Postgres")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	cmd.Flags().Bool("follow-chain", false, "advance the pool by observed deltas instead of engine results")
	addEngineFlags(cmd)
	addLogFlag(cmd)
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "quote <op>",
		Short:     "Run one engine operation against a pool snapshot",
		Long:      "Ops: swap, withdraw-one, withdraw-imbalance, deposit, virtual-price, invariant.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"swap", "withdraw-one", "withdraw-imbalance", "deposit", "virtual-price", "invariant"},
		RunE:      runQuote,
	}
	cmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot JSON file")
	cmd.Flags().String("pg-dsn", "", "read the snapshot from Postgres instead of a file")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Uint64("chain-id", 0, "chain id")
	cmd.Flags().Int("i", 0, "input coin index (swap) or withdrawn coin (withdraw-one)")
	cmd.Flags().Int("j", 1, "output coin index (swap)")
	cmd.Flags().String("amount", "", "raw input amount (swap) or LP amount (withdraw-one)")
	cmd.Flags().StringSlice("amounts", nil, "raw per-coin amounts (deposit, withdraw-imbalance)")
	cmd.Flags().Bool("execute", false, "commit the operation and save the snapshot")
	addEngineFlags(cmd)
	addLogFlag(cmd)
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture pool parameters and balances at a block",
		RunE:  runSnapshot,
	}
	addRPCFlags(cmd)
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	cmd.Flags().String("out", "./data/snapshot.json", "snapshot JSON path")
	cmd.Flags().String("pg-dsn", "", "store the snapshot in Postgres instead of a file")
	addRetryFlags(cmd)
	addLogFlag(cmd)
	return cmd
}

func addRPCFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "EVM RPC URL (http, ws or ipc)")
	cmd.Flags().Float64("rps", 0, "max RPC requests per second, 0 means unlimited")
}

func addRetryFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("max-backoff", 30*time.Second, "retry backoff cap")
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-iterations", 1000, "solver iteration cap")
	cmd.Flags().Bool("strict", false, "fail instead of warn when the solver hits the cap")
}

func addLogFlag(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func retryPolicy(cfg config.RetryConfig) chain.RetryPolicy {
	return chain.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		MaxBackoff: cfg.MaxBackoff,
	}
}

// redactDSN hides the password of a Postgres URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
