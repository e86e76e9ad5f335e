package stableswap

import (
	"fmt"

	"cosmossdk.io/math"
)

// SwapResult describes an exchange of token i for token j.
type SwapResult struct {
	// AmountOut is paid to the trader in raw units of j.
	AmountOut Amount
	// Fee stays in the pool, in raw units of j.
	Fee Amount
	// Gross and Net are dy and dy - fee in normalized units.
	Gross Scaled
	Net   Scaled
	Diagnostics

	balances []math.Int
}

// QuoteSwap prices exchange(i, j, dx) without touching the pool.
func (p *Pool) QuoteSwap(i, j int, dx Amount) (SwapResult, error) {
	return p.swap(i, j, dx)
}

// ExecuteSwap exchanges dx raw units of token i for token j and commits the
// new balances. A trade too small to move y returns a zero result and leaves
// the pool as it was.
func (p *Pool) ExecuteSwap(i, j int, dx Amount) (SwapResult, error) {
	res, err := p.swap(i, j, dx)
	if err != nil {
		return SwapResult{}, err
	}
	if res.balances != nil {
		p.balances = res.balances
	}
	return res, nil
}

func (p *Pool) swap(i, j int, dx Amount) (SwapResult, error) {
	if err := p.checkIndex(i); err != nil {
		return SwapResult{}, err
	}
	if err := p.checkIndex(j); err != nil {
		return SwapResult{}, err
	}
	if i == j {
		return SwapResult{}, fmt.Errorf("%w: cannot swap token %d for itself", ErrInvalidIndex, i)
	}
	if dx.Int().IsNegative() {
		return SwapResult{}, fmt.Errorf("%w: negative input %s", ErrInvalidAmount, dx)
	}

	xp, err := p.xp(p.balances)
	if err != nil {
		return SwapResult{}, err
	}
	d, diag, err := p.curve.invariant(xp)
	if err != nil {
		return SwapResult{}, fmt.Errorf("swap: %w", err)
	}
	if d.IsZero() {
		return SwapResult{}, fmt.Errorf("%w: swap needs liquidity", ErrEmptyPool)
	}

	var c checked
	x := c.add(xp[i], p.toScaled(&c, i, dx.Int()))
	if c.err != nil {
		return SwapResult{}, fmt.Errorf("swap: %w", c.err)
	}
	y, yDiag, err := p.curve.solveY(xp, i, j, x, d)
	diag = diag.merge(yDiag)
	if err != nil {
		return SwapResult{}, fmt.Errorf("swap: %w", err)
	}
	if err := p.checkConvergence("swap", diag); err != nil {
		return SwapResult{}, err
	}

	dy := c.sub(xp[j], y)
	if !dy.IsPositive() {
		return SwapResult{
			AmountOut:   Amount(math.ZeroInt()),
			Fee:         Amount(math.ZeroInt()),
			Gross:       Scaled(math.ZeroInt()),
			Net:         Scaled(math.ZeroInt()),
			Diagnostics: diag,
		}, nil
	}
	fee := c.mulDiv(dy, p.fee.Int(), feeDenominator)
	net := c.sub(dy, fee)

	balances := cloneInts(p.balances)
	balances[i] = c.mulDiv(x, pricePrecision, p.prices[i])
	balances[j] = c.mulDiv(c.add(y, fee), pricePrecision, p.prices[j])
	out := p.toRaw(&c, j, net)
	feeRaw := p.toRaw(&c, j, fee)
	if c.err != nil {
		return SwapResult{}, fmt.Errorf("swap: %w", c.err)
	}
	if balances[j].IsNegative() {
		return SwapResult{}, fmt.Errorf("%w: token %d would go below zero", ErrInsufficientBalance, j)
	}

	return SwapResult{
		AmountOut:   Amount(out),
		Fee:         Amount(feeRaw),
		Gross:       Scaled(dy),
		Net:         Scaled(net),
		Diagnostics: diag,
		balances:    balances,
	}, nil
}
