package stableswap

import (
	"math/rand/v2"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

const propertyRounds = 300

var wei17 = math.NewIntWithDecimal(1, 17)

// randomPool draws n in [2,4], A in [1,5000], a fee in [0.01%, 1%] and parity
// balances in [1e20, 1e23]. Supply starts at the balance sum.
func randomPool(t *testing.T, rng *rand.Rand) *Pool {
	t.Helper()
	n := 2 + rng.IntN(3)
	balances := make([]Amount, n)
	supply := math.ZeroInt()
	for k := range balances {
		b := math.NewInt(rng.Int64N(999_000) + 1000).Mul(wei17)
		balances[k] = NewAmount(b)
		supply = supply.Add(b)
	}
	cfg := Config{
		Amplification: uint64(rng.Int64N(5000) + 1),
		FeeRate:       FeeRate(rng.Int64N(99_000_000) + 1_000_000),
	}
	p, err := New(cfg, balances, NewAmount(supply))
	require.NoError(t, err)
	return p
}

// fraction returns v·per/1000.
func fraction(v Amount, per int64) Amount {
	return NewAmount(v.Int().MulRaw(per).QuoRaw(1000))
}

func invariantOf(t *testing.T, p *Pool) math.Int {
	t.Helper()
	d, err := p.Invariant()
	require.NoError(t, err)
	return d.Int()
}

func TestSwapPropertiesRandomPools(t *testing.T) {
	rng := rand.New(rand.NewPCG(20240601, 1))
	for round := 0; round < propertyRounds; round++ {
		p := randomPool(t, rng)
		i := rng.IntN(p.N())
		j := (i + 1 + rng.IntN(p.N()-1)) % p.N()
		dx := fraction(p.Balances()[i], rng.Int64N(100)+1)

		d0 := invariantOf(t, p)
		next := p.Clone()
		res, err := next.ExecuteSwap(i, j, dx)
		require.NoError(t, err, "round %d", round)

		require.False(t, res.Net.Int().IsNegative(), "round %d", round)
		require.True(t, res.Net.Int().LTE(res.Gross.Int()), "round %d: net %s gross %s", round, res.Net, res.Gross)
		require.True(t, res.AmountOut.Int().IsPositive(), "round %d", round)

		d1 := invariantOf(t, next)
		require.True(t, d1.GTE(d0), "round %d: D fell from %s to %s", round, d0, d1)
	}
}

func TestImbalanceWithdrawalConservesValue(t *testing.T) {
	rng := rand.New(rand.NewPCG(20240601, 2))
	for round := 0; round < propertyRounds; round++ {
		p := randomPool(t, rng)
		amounts := make([]Amount, p.N())
		for k, b := range p.Balances() {
			amounts[k] = fraction(b, rng.Int64N(51))
		}

		d0 := invariantOf(t, p)
		supply := p.TotalSupply().Int()
		res, err := p.QuoteRemoveLiquidityImbalance(amounts)
		require.NoError(t, err, "round %d", round)
		require.True(t, res.Burn.Int().LTE(supply), "round %d", round)

		rest := supply.Sub(res.Burn.Int())
		after, err := p.WithState(res.Balances, NewAmount(rest))
		require.NoError(t, err)
		d1 := invariantOf(t, after)

		// D_after·supply ≤ D0·(supply - burn)
		require.True(t, d1.Mul(supply).LTE(d0.Mul(rest)), "round %d: burn %s too small", round, res.Burn)
	}
}

func TestWithdrawOneCoinKeepsShareValue(t *testing.T) {
	rng := rand.New(rand.NewPCG(20240601, 3))
	for round := 0; round < propertyRounds; round++ {
		p := randomPool(t, rng)
		i := rng.IntN(p.N())
		supply := p.TotalSupply().Int()
		burn := fraction(p.TotalSupply(), rng.Int64N(100)+1)

		d0 := invariantOf(t, p)
		res, err := p.CalcWithdrawOneCoin(burn, i)
		require.NoError(t, err, "round %d", round)

		balances := p.Balances()
		balances[i] = NewAmount(balances[i].Int().Sub(res.AmountOut.Int()))
		rest := supply.Sub(burn.Int())
		after, err := p.WithState(balances, NewAmount(rest))
		require.NoError(t, err)
		d1 := invariantOf(t, after)

		// D per LP token does not fall: D_after·supply ≥ D0·(supply - burn)
		require.True(t, d1.Mul(supply).GTE(d0.Mul(rest)), "round %d: paid %s for %s", round, res.AmountOut, burn)
	}
}

func TestDepositMintKeepsShareValue(t *testing.T) {
	rng := rand.New(rand.NewPCG(20240601, 4))
	for round := 0; round < propertyRounds; round++ {
		p := randomPool(t, rng)
		amounts := make([]Amount, p.N())
		balances := p.Balances()
		for k, b := range balances {
			amounts[k] = fraction(b, rng.Int64N(201))
			balances[k] = NewAmount(b.Int().Add(amounts[k].Int()))
		}

		d0 := invariantOf(t, p)
		supply := p.TotalSupply().Int()
		res, err := p.CalcTokenAmount(amounts, true)
		require.NoError(t, err, "round %d", round)

		total := supply.Add(res.Amount.Int())
		after, err := p.WithState(balances, NewAmount(total))
		require.NoError(t, err)
		d1 := invariantOf(t, after)

		// D_after·supply ≥ D0·(supply + minted)
		require.True(t, d1.Mul(supply).GTE(d0.Mul(total)), "round %d: minted %s", round, res.Amount)
	}
}
