package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stableScope/internal/model"
)

// Store provides Postgres persistence for pools, replay metrics and state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by the store when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		n_coins INT NOT NULL,
		coins TEXT[] NOT NULL,
		decimals INT[] NOT NULL,
		amplification BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		lp_token TEXT,
		first_seen_block BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address)
	)`,
	`CREATE TABLE IF NOT EXISTS replay_window_metrics (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts TIMESTAMPTZ NOT NULL,
		event_count BIGINT NOT NULL,
		swap_count BIGINT NOT NULL,
		volumes NUMERIC[] NOT NULL,
		observed_total NUMERIC NOT NULL,
		predicted_total NUMERIC NOT NULL,
		abs_deviation NUMERIC NOT NULL,
		max_deviation_bps NUMERIC NOT NULL,
		exact_matches BIGINT NOT NULL,
		non_converged BIGINT NOT NULL,
		virtual_price NUMERIC,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		block_number BIGINT NOT NULL,
		block_ts BIGINT NOT NULL,
		amplification BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		prices NUMERIC[] NOT NULL,
		balances NUMERIC[] NOT NULL,
		total_supply NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address)
	)`,
	`CREATE TABLE IF NOT EXISTS replay_state (
		name TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		snapshot JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		decimals := make([]int32, len(pool.Meta.Decimals))
		for i, d := range pool.Meta.Decimals {
			decimals[i] = int32(d)
		}
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, n_coins, coins, decimals, amplification, fee, lp_token,
				first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				n_coins = EXCLUDED.n_coins,
				coins = EXCLUDED.coins,
				decimals = EXCLUDED.decimals,
				amplification = EXCLUDED.amplification,
				fee = EXCLUDED.fee,
				lp_token = EXCLUDED.lp_token,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Meta.N(),
			pool.Meta.Coins,
			decimals,
			int64(pool.Meta.A),
			int64(pool.Meta.Fee),
			pool.Meta.LPToken,
			int64(pool.FirstSeenBlock),
		)
	}

	return s.sendBatch(ctx, batch, len(pools))
}

// UpsertReplayWindowMetrics inserts or updates replay window metrics.
func (s *Store) UpsertReplayWindowMetrics(ctx context.Context, metrics []model.ReplayWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO replay_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				event_count, swap_count, volumes, observed_total, predicted_total, abs_deviation,
				max_deviation_bps, exact_matches, non_converged, virtual_price, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric[],$9::numeric,$10::numeric,$11::numeric,
				$12::numeric,$13,$14,$15::numeric,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				event_count = EXCLUDED.event_count,
				swap_count = EXCLUDED.swap_count,
				volumes = EXCLUDED.volumes,
				observed_total = EXCLUDED.observed_total,
				predicted_total = EXCLUDED.predicted_total,
				abs_deviation = EXCLUDED.abs_deviation,
				max_deviation_bps = EXCLUDED.max_deviation_bps,
				exact_matches = EXCLUDED.exact_matches,
				non_converged = EXCLUDED.non_converged,
				virtual_price = EXCLUDED.virtual_price,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.EventCount),
			int64(m.SwapCount),
			m.Volumes,
			m.ObservedTotal,
			m.PredictedTotal,
			m.AbsDeviation,
			m.MaxDeviationBps,
			int64(m.ExactMatches),
			int64(m.NonConverged),
			m.VirtualPrice,
		)
	}

	return s.sendBatch(ctx, batch, len(metrics))
}

// LoadPoolSnapshot returns the stored snapshot for a pool.
func (s *Store) LoadPoolSnapshot(ctx context.Context, chainID uint64, address string) (model.PoolState, bool, error) {
	state := model.PoolState{ChainID: chainID, Address: address}
	var (
		block, ts, amp, fee int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT block_number, block_ts, amplification, fee,
			prices::text[], balances::text[], total_supply::text
		FROM pool_snapshots WHERE chain_id=$1 AND pool_address=$2
	`, int64(chainID), address)
	if err := row.Scan(&block, &ts, &amp, &fee, &state.Prices, &state.Balances, &state.TotalSupply); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolState{}, false, nil
		}
		return model.PoolState{}, false, err
	}
	state.BlockNumber = uint64(block)
	state.Timestamp = uint64(ts)
	state.Amplification = uint64(amp)
	state.FeeRate = uint64(fee)
	return state, true, nil
}

// SavePoolSnapshot upserts the snapshot for a pool.
func (s *Store) SavePoolSnapshot(ctx context.Context, state model.PoolState) error {
	if state.Address == "" {
		return fmt.Errorf("pool address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			chain_id, pool_address, block_number, block_ts, amplification, fee,
			prices, balances, total_supply, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric[],$8::numeric[],$9::numeric,now())
		ON CONFLICT (chain_id, pool_address) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			block_ts = EXCLUDED.block_ts,
			amplification = EXCLUDED.amplification,
			fee = EXCLUDED.fee,
			prices = EXCLUDED.prices,
			balances = EXCLUDED.balances,
			total_supply = EXCLUDED.total_supply,
			updated_at = now()
	`,
		int64(state.ChainID),
		state.Address,
		int64(state.BlockNumber),
		int64(state.Timestamp),
		int64(state.Amplification),
		int64(state.FeeRate),
		state.Prices,
		state.Balances,
		state.TotalSupply,
	)
	return err
}

// LoadState returns last_processed_ts and the pool snapshot saved under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, *model.PoolState, bool, error) {
	if name == "" {
		return 0, nil, false, fmt.Errorf("state name required")
	}
	var (
		ts  int64
		raw []byte
	)
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts, snapshot FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&ts, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}

	var snap *model.PoolState
	if len(raw) > 0 {
		snap = &model.PoolState{}
		if err := json.Unmarshal(raw, snap); err != nil {
			return 0, nil, false, fmt.Errorf("parse snapshot: %w", err)
		}
	}
	return uint64(ts), snap, true, nil
}

// SaveState upserts last_processed_ts and the pool snapshot for name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64, snap *model.PoolState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	var raw []byte
	if snap != nil {
		var err error
		raw, err = json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_processed_ts, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, snapshot = EXCLUDED.snapshot, updated_at = now()
	`, name, int64(ts), raw)
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
