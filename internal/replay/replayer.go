package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stableScope/internal/model"
	"stableScope/internal/snapshot"
	"stableScope/internal/stableswap"
	"stableScope/internal/storage"
)

// Config controls replay behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom ignores stored progress and only measures events at or
	// after this timestamp. Earlier events still advance the pool.
	RecomputeFrom uint64
	// FollowChain advances the pool by the observed deltas instead of the
	// engine's own results, so errors do not compound.
	FollowChain bool
	StateStore  StateStore
	Engine      snapshot.Options
	// Comparisons receives one model.ReplayComparison per measured event.
	Comparisons ComparisonWriter
}

// ComparisonWriter is satisfied by *storage.JSONLWriter.
type ComparisonWriter interface {
	Write(value interface{}) error
}

// Summary reports what a run did.
type Summary struct {
	Total    int
	Replayed int
	Skipped  int
	Failed   int
	Windows  int
	// Final is the pool after the last replayed event.
	Final model.PoolState
}

// Replayer replays typed pool events through the invariant engine.
type Replayer struct {
	cfg    Config
	sink   MetricsSink
	logger *zap.Logger
}

func NewReplayer(cfg Config, sink MetricsSink, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = logger
	}
	return &Replayer{cfg: cfg, sink: sink, logger: logger}
}

type run struct {
	pool       *stableswap.Pool
	base       model.PoolState
	acc        *Accumulator
	checkpoint State
	batch      []model.ReplayWindowMetrics
	pools      []model.Pool
	poolSent   bool
	lastBlock  uint64
	lastTs     uint64
	summary    Summary
}

// Run replays the typed events JSONL at inputPath starting from seed, or
// from stored progress when there is some for the same pool.
func (r *Replayer) Run(ctx context.Context, inputPath string, seed model.PoolState) (Summary, error) {
	if r.sink == nil {
		return Summary{}, fmt.Errorf("metrics sink is nil")
	}
	if r.cfg.WindowSeconds == 0 {
		return Summary{}, fmt.Errorf("window seconds must be > 0")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 1000
	}

	base, startTs, err := r.resume(ctx, seed)
	if err != nil {
		return Summary{}, err
	}
	pool, err := snapshot.ToPool(base, r.cfg.Engine)
	if err != nil {
		return Summary{}, err
	}

	st := &run{
		pool:       pool,
		base:       base,
		checkpoint: State{LastProcessedTs: startTs, Snapshot: &base},
		lastBlock:  base.BlockNumber,
		lastTs:     max(startTs, base.Timestamp),
	}
	r.logger.Info("replay start",
		zap.String("pool", base.Address),
		zap.Uint64("from_block", base.BlockNumber),
		zap.Uint64("from_ts", startTs),
		zap.Bool("follow_chain", r.cfg.FollowChain),
	)

	err = storage.ScanJSONL(inputPath, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return r.handle(ctx, st, line, startTs)
	})
	if err != nil {
		return Summary{}, err
	}

	if st.acc != nil {
		st.batch = append(st.batch, r.closeWindow(st))
		st.acc = nil
	}
	if err := r.flush(ctx, st); err != nil {
		return Summary{}, err
	}

	st.summary.Final = r.stateOf(st, st.lastBlock, st.lastTs)
	r.logger.Info("replay complete",
		zap.Int("total", st.summary.Total),
		zap.Int("replayed", st.summary.Replayed),
		zap.Int("skipped", st.summary.Skipped),
		zap.Int("failed", st.summary.Failed),
		zap.Int("windows", st.summary.Windows),
	)
	return st.summary, nil
}

func (r *Replayer) handle(ctx context.Context, st *run, line []byte, startTs uint64) error {
	st.summary.Total++

	var record model.TypedEventRecord
	if err := json.Unmarshal(line, &record); err != nil {
		st.summary.Failed++
		r.logger.Warn("decode typed event", zap.Error(err))
		return nil
	}
	if !strings.EqualFold(record.Address, st.base.Address) ||
		record.BlockNumber <= st.base.BlockNumber ||
		record.Timestamp <= startTs {
		st.summary.Skipped++
		return nil
	}
	if record.BlockNumber < st.lastBlock {
		st.summary.Skipped++
		r.logger.Warn("out of order event", zap.Uint64("block", record.BlockNumber), zap.Uint64("last_block", st.lastBlock))
		return nil
	}
	if n := record.PoolMeta.N(); n != 0 && n != st.pool.N() {
		st.summary.Failed++
		r.logger.Warn("coin count mismatch", zap.Int("event_coins", n), zap.Int("pool_coins", st.pool.N()), zap.String("tx", record.TxHash))
		return nil
	}

	ws := windowStart(record.Timestamp, r.cfg.WindowSeconds)
	if st.acc != nil && st.acc.WindowStart != ws {
		st.batch = append(st.batch, r.closeWindow(st))
		st.checkpoint = State{LastProcessedTs: st.acc.LastTS, Snapshot: ptr(r.stateOf(st, st.acc.LastBlock, st.acc.LastTS))}
		st.acc = nil
		if len(st.batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, st); err != nil {
				return err
			}
		}
	}

	out, err := step(st.pool, record, r.cfg.FollowChain)
	if err != nil {
		st.summary.Failed++
		r.logger.Warn("replay event", zap.Error(err), zap.String("event", record.EventName), zap.String("tx", record.TxHash))
		return nil
	}
	if out.predictErr != nil {
		r.logger.Warn("engine could not price event",
			zap.Error(out.predictErr),
			zap.String("event", record.EventName),
			zap.String("tx", record.TxHash),
		)
	}
	st.pool = out.next
	st.lastBlock, st.lastTs = record.BlockNumber, record.Timestamp
	st.summary.Replayed++

	if record.Timestamp < r.cfg.RecomputeFrom {
		return nil
	}
	if st.acc == nil {
		st.acc = NewAccumulator(record, st.pool.N(), ws, ws+r.cfg.WindowSeconds)
		if !st.poolSent {
			st.pools = append(st.pools, model.Pool{
				ChainID:        record.ChainID,
				Address:        record.Address,
				Meta:           record.PoolMeta,
				FirstSeenBlock: record.BlockNumber,
			})
			st.poolSent = true
		}
	}
	dev := st.acc.Add(record, out, st.pool.Prices())
	return r.writeComparison(record, out, dev.String())
}

func (r *Replayer) writeComparison(record model.TypedEventRecord, out outcome, dev string) error {
	if r.cfg.Comparisons == nil {
		return nil
	}
	cmp := model.ReplayComparison{
		ChainID:      record.ChainID,
		BlockNumber:  record.BlockNumber,
		TxHash:       record.TxHash,
		LogIndex:     record.LogIndex,
		Address:      record.Address,
		EventName:    record.EventName,
		Timestamp:    record.Timestamp,
		Coin:         out.coin,
		Observed:     out.observed.String(),
		Predicted:    out.predicted.String(),
		DeviationBps: dev,
		Iterations:   out.diag.Iterations,
		Converged:    out.diag.Converged,
	}
	if out.predictErr != nil {
		cmp.Error = out.predictErr.Error()
	}
	if err := r.cfg.Comparisons.Write(cmp); err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}
	return nil
}

func (r *Replayer) resume(ctx context.Context, seed model.PoolState) (model.PoolState, uint64, error) {
	if r.cfg.RecomputeFrom == 0 && r.cfg.StateStore != nil {
		st, ok, err := r.cfg.StateStore.Load(ctx)
		if err != nil {
			return model.PoolState{}, 0, fmt.Errorf("load replay state: %w", err)
		}
		if ok && st.Snapshot != nil && (seed.Address == "" || strings.EqualFold(seed.Address, st.Snapshot.Address)) {
			r.logger.Info("resume from state", zap.Uint64("last_processed_ts", st.LastProcessedTs))
			return *st.Snapshot, st.LastProcessedTs, nil
		}
	}
	if seed.Address == "" {
		return model.PoolState{}, 0, fmt.Errorf("no pool snapshot to replay from")
	}
	return seed, 0, nil
}

func (r *Replayer) closeWindow(st *run) model.ReplayWindowMetrics {
	var vp *string
	if price, err := st.pool.VirtualPrice(); err == nil {
		s := price.String()
		vp = &s
	}
	st.summary.Windows++
	return st.acc.Metrics(r.cfg.WindowSeconds, vp)
}

func (r *Replayer) flush(ctx context.Context, st *run) error {
	if len(st.pools) > 0 {
		if err := r.sink.WritePools(ctx, st.pools); err != nil {
			return fmt.Errorf("write pools: %w", err)
		}
		st.pools = st.pools[:0]
	}
	if len(st.batch) > 0 {
		if err := r.sink.WriteMetrics(ctx, st.batch); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		st.batch = st.batch[:0]
	}
	if r.cfg.StateStore == nil {
		return nil
	}
	if err := r.cfg.StateStore.Save(ctx, st.checkpoint); err != nil {
		return fmt.Errorf("save replay state: %w", err)
	}
	return nil
}

func (r *Replayer) stateOf(st *run, block, ts uint64) model.PoolState {
	out := snapshot.FromPool(st.pool, st.base)
	out.BlockNumber = block
	out.Timestamp = ts
	return out
}

func ptr[T any](v T) *T { return &v }
