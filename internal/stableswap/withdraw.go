package stableswap

import (
	"fmt"

	"cosmossdk.io/math"
)

// RoundDirection picks how a pro-rata share is rounded.
type RoundDirection int

const (
	RoundFloor RoundDirection = iota
	RoundCeiling
)

// ImbalanceResult describes a withdrawal of arbitrary per-token amounts.
type ImbalanceResult struct {
	// Burn is the LP amount the caller must burn. The pool's total supply
	// is not changed by the withdrawal itself.
	Burn Amount
	// Fees are the imbalance fees kept back per token, in raw units.
	Fees []Amount
	// Balances are the post-fee balances.
	Balances []Amount
	Diagnostics

	balances []math.Int
}

// WithdrawOneResult describes a withdrawal of a single token.
type WithdrawOneResult struct {
	// AmountOut is paid in raw units of the withdrawn token.
	AmountOut Amount
	Net       Scaled
	// FeeRate is the effective rate applied to this withdrawal.
	FeeRate FeeRate
	Diagnostics
}

// RemoveLiquidityImbalance withdraws amounts[k] raw units of every token,
// charges the imbalance fee and commits the post-fee balances.
func (p *Pool) RemoveLiquidityImbalance(amounts []Amount) (ImbalanceResult, error) {
	res, err := p.removeImbalance(amounts)
	if err != nil {
		return ImbalanceResult{}, err
	}
	p.balances = res.balances
	return res, nil
}

// QuoteRemoveLiquidityImbalance is RemoveLiquidityImbalance without the commit.
func (p *Pool) QuoteRemoveLiquidityImbalance(amounts []Amount) (ImbalanceResult, error) {
	return p.removeImbalance(amounts)
}

func (p *Pool) removeImbalance(amounts []Amount) (ImbalanceResult, error) {
	n := p.N()
	if len(amounts) != n {
		return ImbalanceResult{}, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidAmount, len(amounts), n)
	}

	old := cloneInts(p.balances)
	next := make([]math.Int, n)
	for k, a := range amounts {
		v := a.Int()
		if v.IsNegative() {
			return ImbalanceResult{}, fmt.Errorf("%w: negative amount %s at %d", ErrInvalidAmount, v, k)
		}
		if v.GT(old[k]) {
			return ImbalanceResult{}, fmt.Errorf("%w: withdraw %s of token %d, balance %s", ErrInsufficientBalance, v, k, old[k])
		}
		next[k] = old[k].Sub(v)
	}

	d0, diag, err := p.invariantAt(old)
	if err != nil {
		return ImbalanceResult{}, fmt.Errorf("remove liquidity imbalance: %w", err)
	}
	if d0.IsZero() {
		return ImbalanceResult{}, fmt.Errorf("%w: withdrawal needs liquidity", ErrEmptyPool)
	}
	d1, d1Diag, err := p.invariantAt(next)
	diag = diag.merge(d1Diag)
	if err != nil {
		return ImbalanceResult{}, fmt.Errorf("remove liquidity imbalance: %w", err)
	}

	var c checked
	nn := math.NewInt(int64(n))
	fee := c.quo(c.mul(p.fee.Int(), nn), math.NewInt(int64(4*(n-1))))
	fees := make([]Amount, n)
	for k := range next {
		ideal := c.mulDiv(d1, old[k], d0)
		diff := c.sub(ideal, next[k]).Abs()
		f := c.mulDiv(fee, diff, feeDenominator)
		next[k] = c.sub(next[k], f)
		fees[k] = Amount(f)
		if c.err == nil && next[k].IsNegative() {
			return ImbalanceResult{}, fmt.Errorf("%w: imbalance fee drains token %d", ErrInsufficientBalance, k)
		}
	}
	if c.err != nil {
		return ImbalanceResult{}, fmt.Errorf("remove liquidity imbalance: %w", c.err)
	}

	d2, d2Diag, err := p.invariantAt(next)
	diag = diag.merge(d2Diag)
	if err != nil {
		return ImbalanceResult{}, fmt.Errorf("remove liquidity imbalance: %w", err)
	}
	if err := p.checkConvergence("remove_liquidity_imbalance", diag); err != nil {
		return ImbalanceResult{}, err
	}

	burn := c.mulDiv(c.sub(d0, d2), p.supply, d0)
	if c.err != nil {
		return ImbalanceResult{}, fmt.Errorf("remove liquidity imbalance: %w", c.err)
	}

	balances := make([]Amount, n)
	for k, v := range next {
		balances[k] = Amount(v)
	}
	return ImbalanceResult{
		Burn:        Amount(burn),
		Fees:        fees,
		Balances:    balances,
		Diagnostics: diag,
		balances:    next,
	}, nil
}

// CalcWithdrawOneCoin quotes the raw amount of token i paid for burning
// tokenAmount LP tokens. It never mutates the pool.
func (p *Pool) CalcWithdrawOneCoin(tokenAmount Amount, i int) (WithdrawOneResult, error) {
	if err := p.checkIndex(i); err != nil {
		return WithdrawOneResult{}, err
	}
	burn := tokenAmount.Int()
	if burn.IsNegative() {
		return WithdrawOneResult{}, fmt.Errorf("%w: negative token amount %s", ErrInvalidAmount, burn)
	}
	if !p.supply.IsPositive() {
		return WithdrawOneResult{}, fmt.Errorf("%w: no liquidity tokens outstanding", ErrEmptyPool)
	}
	if burn.GT(p.supply) {
		return WithdrawOneResult{}, fmt.Errorf("%w: burn %s exceeds supply %s", ErrInsufficientBalance, burn, p.supply)
	}

	xp, err := p.xp(p.balances)
	if err != nil {
		return WithdrawOneResult{}, err
	}
	var c checked
	total := c.sum(xp)
	if c.err == nil && total.IsZero() {
		return WithdrawOneResult{}, fmt.Errorf("%w: no balances to withdraw", ErrEmptyPool)
	}

	fee := math.ZeroInt()
	if p.fee > 0 {
		rate := p.fee.Int()
		fee = c.add(c.sub(rate, c.mulDiv(rate, xp[i], total)), math.NewInt(withdrawOneFeeOffset))
	}
	if c.err != nil {
		return WithdrawOneResult{}, fmt.Errorf("withdraw one coin: %w", c.err)
	}

	d0, diag, err := p.curve.invariant(xp)
	if err != nil {
		return WithdrawOneResult{}, fmt.Errorf("withdraw one coin: %w", err)
	}
	d1 := c.sub(d0, c.mulDiv(burn, d0, p.supply))
	if c.err != nil {
		return WithdrawOneResult{}, fmt.Errorf("withdraw one coin: %w", c.err)
	}
	y, yDiag, err := p.curve.solveYD(xp, i, d1)
	diag = diag.merge(yDiag)
	if err != nil {
		return WithdrawOneResult{}, fmt.Errorf("withdraw one coin: %w", err)
	}
	if err := p.checkConvergence("calc_withdraw_one_coin", diag); err != nil {
		return WithdrawOneResult{}, err
	}

	dy := c.sub(xp[i], y)
	net := c.sub(dy, c.mulDiv(dy, fee, feeDenominator))
	if net.IsNegative() {
		net = math.ZeroInt()
	}
	out := p.toRaw(&c, i, net)
	if c.err != nil {
		return WithdrawOneResult{}, fmt.Errorf("withdraw one coin: %w", c.err)
	}
	return WithdrawOneResult{
		AmountOut:   Amount(out),
		Net:         Scaled(net),
		FeeRate:     FeeRate(fee.Uint64()),
		Diagnostics: diag,
	}, nil
}

// TokenAmountResult is the LP amount of a fee-less multi-token change.
type TokenAmountResult struct {
	Amount      Amount
	Diagnostics Diagnostics
}

// CalcTokenAmount returns the LP amount minted by a deposit of amounts, or
// burned by a withdrawal of them, ignoring fees. Deposits round down and
// withdrawals round up so the pool never loses value to rounding.
func (p *Pool) CalcTokenAmount(amounts []Amount, deposit bool) (TokenAmountResult, error) {
	n := p.N()
	if len(amounts) != n {
		return TokenAmountResult{}, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidAmount, len(amounts), n)
	}

	var c checked
	next := cloneInts(p.balances)
	for k, a := range amounts {
		v := a.Int()
		if v.IsNegative() {
			return TokenAmountResult{}, fmt.Errorf("%w: negative amount %s at %d", ErrInvalidAmount, v, k)
		}
		if deposit {
			next[k] = c.add(next[k], v)
			continue
		}
		if v.GT(next[k]) {
			return TokenAmountResult{}, fmt.Errorf("%w: withdraw %s of token %d, balance %s", ErrInsufficientBalance, v, k, next[k])
		}
		next[k] = c.sub(next[k], v)
	}
	if c.err != nil {
		return TokenAmountResult{}, fmt.Errorf("calc token amount: %w", c.err)
	}

	d0, diag, err := p.invariantAt(p.balances)
	if err != nil {
		return TokenAmountResult{}, fmt.Errorf("calc token amount: %w", err)
	}
	d1, d1Diag, err := p.invariantAt(next)
	diag = diag.merge(d1Diag)
	if err != nil {
		return TokenAmountResult{}, fmt.Errorf("calc token amount: %w", err)
	}
	if err := p.checkConvergence("calc_token_amount", diag); err != nil {
		return TokenAmountResult{}, err
	}

	if !p.supply.IsPositive() || d0.IsZero() {
		if !deposit {
			return TokenAmountResult{}, fmt.Errorf("%w: nothing to withdraw", ErrEmptyPool)
		}
		return TokenAmountResult{Amount: Amount(d1), Diagnostics: diag}, nil
	}

	diff := c.sub(d1, d0).Abs()
	var amount math.Int
	if deposit {
		amount = c.mulDiv(diff, p.supply, d0)
	} else {
		amount = c.mulDivCeil(diff, p.supply, d0)
	}
	if c.err != nil {
		return TokenAmountResult{}, fmt.Errorf("calc token amount: %w", c.err)
	}
	return TokenAmountResult{Amount: Amount(amount), Diagnostics: diag}, nil
}

// QuoteProportionalWithdrawal returns the raw amount of every token backing
// share LP tokens.
func (p *Pool) QuoteProportionalWithdrawal(share Amount, dir RoundDirection) ([]Amount, error) {
	s := share.Int()
	if s.IsNegative() {
		return nil, fmt.Errorf("%w: negative share %s", ErrInvalidAmount, s)
	}
	if !p.supply.IsPositive() {
		return nil, fmt.Errorf("%w: no liquidity tokens outstanding", ErrEmptyPool)
	}
	if s.GT(p.supply) {
		return nil, fmt.Errorf("%w: share %s exceeds supply %s", ErrInsufficientBalance, s, p.supply)
	}

	var c checked
	out := make([]Amount, p.N())
	for k, b := range p.balances {
		if dir == RoundCeiling {
			out[k] = Amount(c.mulDivCeil(b, s, p.supply))
		} else {
			out[k] = Amount(c.mulDiv(b, s, p.supply))
		}
	}
	if c.err != nil {
		return nil, fmt.Errorf("proportional withdrawal: %w", c.err)
	}
	return out, nil
}
