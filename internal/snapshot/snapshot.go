package snapshot

import (
	"fmt"

	"go.uber.org/zap"

	"stableScope/internal/model"
	"stableScope/internal/stableswap"
)

// Options carries engine settings that are not part of a stored state.
type Options struct {
	MaxIterations     int
	StrictConvergence bool
	Logger            *zap.Logger
}

// ToPool rebuilds an engine pool from a stored state.
func ToPool(state model.PoolState, opts Options) (*stableswap.Pool, error) {
	if len(state.Prices) != 0 && len(state.Prices) != len(state.Balances) {
		return nil, fmt.Errorf("snapshot %s: %d prices for %d balances", state.Address, len(state.Prices), len(state.Balances))
	}

	prices := make([]stableswap.Price, len(state.Prices))
	for k, s := range state.Prices {
		p, err := stableswap.ParsePrice(s)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s price %d: %w", state.Address, k, err)
		}
		prices[k] = p
	}
	balances, err := parseAmounts(state.Balances)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", state.Address, err)
	}
	supply := stableswap.AmountFromUint64(0)
	if state.TotalSupply != "" {
		supply, err = stableswap.ParseAmount(state.TotalSupply)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s total supply: %w", state.Address, err)
		}
	}

	cfg := stableswap.Config{
		Amplification:     state.Amplification,
		FeeRate:           stableswap.FeeRate(state.FeeRate),
		Prices:            prices,
		MaxIterations:     opts.MaxIterations,
		StrictConvergence: opts.StrictConvergence,
		Logger:            opts.Logger,
	}
	pool, err := stableswap.New(cfg, balances, supply)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", state.Address, err)
	}
	return pool, nil
}

// FromPool writes the pool's parameters and balances over base, keeping
// base's identity and block position.
func FromPool(pool *stableswap.Pool, base model.PoolState) model.PoolState {
	out := base
	out.Amplification = pool.Amplification()
	out.FeeRate = uint64(pool.FeeRate())

	prices := pool.Prices()
	out.Prices = make([]string, len(prices))
	for k, p := range prices {
		out.Prices[k] = p.String()
	}
	balances := pool.Balances()
	out.Balances = make([]string, len(balances))
	for k, b := range balances {
		out.Balances[k] = b.String()
	}
	out.TotalSupply = pool.TotalSupply().String()
	return out
}

func parseAmounts(values []string) ([]stableswap.Amount, error) {
	out := make([]stableswap.Amount, len(values))
	for k, s := range values {
		a, err := stableswap.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("balance %d: %w", k, err)
		}
		out[k] = a
	}
	return out, nil
}
