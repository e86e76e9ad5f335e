package stableswap

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestRemoveLiquidityImbalance(t *testing.T) {
	p := balancedPool(t)
	d0, err := p.Invariant()
	require.NoError(t, err)

	res, err := p.RemoveLiquidityImbalance([]Amount{e18(100), AmountFromUint64(0)})
	require.NoError(t, err)
	require.Equal(t, "100076127224761186724", res.Burn.String())

	bal := p.Balances()
	require.Equal(t, "899975006531635071017", bal[0].String())
	require.Equal(t, "999974993468364928984", bal[1].String())
	require.Equal(t, e18(2000).String(), p.TotalSupply().String())

	// Burning the returned amount never leaves more value per LP token.
	d2, err := p.Invariant()
	require.NoError(t, err)
	supply := e18(2000).Int()
	lhs := d2.Int().Mul(supply)
	rhs := d0.Int().Mul(supply.Sub(res.Burn.Int()))
	require.True(t, lhs.LTE(rhs))
}

func TestQuoteRemoveLiquidityImbalanceDoesNotMutate(t *testing.T) {
	p := balancedPool(t)

	res, err := p.QuoteRemoveLiquidityImbalance([]Amount{e18(100), AmountFromUint64(0)})
	require.NoError(t, err)
	require.Equal(t, "100076127224761186724", res.Burn.String())
	require.Equal(t, e18(1000).String(), p.Balances()[0].String())
}

func TestRemoveLiquidityImbalanceRejects(t *testing.T) {
	p := balancedPool(t)

	_, err := p.RemoveLiquidityImbalance([]Amount{e18(1001), AmountFromUint64(0)})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = p.RemoveLiquidityImbalance([]Amount{e18(1)})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = p.RemoveLiquidityImbalance([]Amount{e18(-1), e18(1)})
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Equal(t, e18(1000).String(), p.Balances()[0].String())

	empty, err := New(Config{Amplification: 100}, []Amount{AmountFromUint64(0), AmountFromUint64(0)}, Amount{})
	require.NoError(t, err)
	_, err = empty.RemoveLiquidityImbalance([]Amount{AmountFromUint64(0), AmountFromUint64(0)})
	require.ErrorIs(t, err, ErrEmptyPool)
}

func TestCalcWithdrawOneCoin(t *testing.T) {
	p := balancedPool(t)

	res, err := p.CalcWithdrawOneCoin(e18(100), 0)
	require.NoError(t, err)
	require.Equal(t, "99918901862548209600", res.AmountOut.String())
	require.Equal(t, FeeRate(5_500_000), res.FeeRate)
	require.Equal(t, e18(1000).String(), p.Balances()[0].String())

	free, err := New(Config{Amplification: 100}, []Amount{e18(1000), e18(1000)}, e18(2000))
	require.NoError(t, err)
	res, err = free.CalcWithdrawOneCoin(e18(100), 1)
	require.NoError(t, err)
	require.Equal(t, "99973887500673580069", res.AmountOut.String())
	require.Equal(t, FeeRate(0), res.FeeRate)
}

func TestCalcWithdrawOneCoinMixedDecimals(t *testing.T) {
	usdc, err := PriceForDecimals(6)
	require.NoError(t, err)
	cfg := Config{
		Amplification: 200,
		FeeRate:       4_000_000,
		Prices:        []Price{ParityPrice(), ParityPrice(), usdc},
	}
	p, err := New(cfg, []Amount{e18(500), e18(700), AmountFromUint64(300_000_000)}, e18(1500))
	require.NoError(t, err)

	res, err := p.CalcWithdrawOneCoin(e18(10), 2)
	require.NoError(t, err)
	require.Equal(t, "9955603135660320441", res.Net.String())
	require.Equal(t, "9955603", res.AmountOut.String())
}

func TestCalcWithdrawOneCoinRejects(t *testing.T) {
	p := balancedPool(t)

	_, err := p.CalcWithdrawOneCoin(e18(2001), 0)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = p.CalcWithdrawOneCoin(e18(1), 2)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = p.CalcWithdrawOneCoin(e18(-1), 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, p.SetTotalSupply(Amount{}))
	_, err = p.CalcWithdrawOneCoin(e18(1), 0)
	require.ErrorIs(t, err, ErrEmptyPool)
}

func TestCalcTokenAmount(t *testing.T) {
	p := balancedPool(t)

	minted, err := p.CalcTokenAmount([]Amount{e18(100), AmountFromUint64(0)}, true)
	require.NoError(t, err)
	require.Equal(t, "99976373430783457038", minted.Amount.String())
	require.True(t, minted.Diagnostics.Converged)
	require.Positive(t, minted.Diagnostics.Iterations)

	burned, err := p.CalcTokenAmount([]Amount{e18(100), AmountFromUint64(0)}, false)
	require.NoError(t, err)
	require.Equal(t, "100026126540284064158", burned.Amount.String())

	fresh, err := New(Config{Amplification: 100}, []Amount{AmountFromUint64(0), AmountFromUint64(0)}, Amount{})
	require.NoError(t, err)
	first, err := fresh.CalcTokenAmount([]Amount{e18(5), e18(5)}, true)
	require.NoError(t, err)
	require.Equal(t, e18(10).String(), first.Amount.String())
}

func TestCalcTokenAmountReportsNonConvergence(t *testing.T) {
	p, err := New(Config{Amplification: 100, MaxIterations: 1}, []Amount{e18(1000), e18(10)}, e18(900))
	require.NoError(t, err)

	res, err := p.CalcTokenAmount([]Amount{e18(100), AmountFromUint64(0)}, true)
	require.NoError(t, err)
	require.False(t, res.Diagnostics.Converged)
	require.Equal(t, 2, res.Diagnostics.Iterations)
}

func TestQuoteProportionalWithdrawal(t *testing.T) {
	p, err := New(Config{Amplification: 100}, []Amount{Amount(math.NewInt(10)), Amount(math.NewInt(7))}, Amount(math.NewInt(3)))
	require.NoError(t, err)

	floor, err := p.QuoteProportionalWithdrawal(Amount(math.NewInt(1)), RoundFloor)
	require.NoError(t, err)
	require.Equal(t, "3", floor[0].String())
	require.Equal(t, "2", floor[1].String())

	ceil, err := p.QuoteProportionalWithdrawal(Amount(math.NewInt(1)), RoundCeiling)
	require.NoError(t, err)
	require.Equal(t, "4", ceil[0].String())
	require.Equal(t, "3", ceil[1].String())

	_, err = p.QuoteProportionalWithdrawal(Amount(math.NewInt(4)), RoundFloor)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}
