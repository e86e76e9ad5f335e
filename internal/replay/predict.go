package replay

import (
	"encoding/json"
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"stableScope/internal/model"
	"stableScope/internal/stableswap"
)

// lpCoin marks comparisons made in LP token units.
const lpCoin = -1

var errUnsupportedEvent = errors.New("unsupported event")

// outcome is the result of replaying one event against the pool.
type outcome struct {
	coin      int
	observed  math.Int
	predicted math.Int
	diag      stableswap.Diagnostics
	// predictErr is set when the engine could not price the event; the pool
	// then advances by the observed deltas.
	predictErr error

	swap     bool
	coinIn   int
	amountIn math.Int

	next *stableswap.Pool
}

// step prices rec against pool and returns the pool state after it.
func step(pool *stableswap.Pool, rec model.TypedEventRecord, followChain bool) (outcome, error) {
	switch rec.EventName {
	case model.EventTokenExchange:
		var ev model.TokenExchangeData
		if err := json.Unmarshal(rec.Decoded, &ev); err != nil {
			return outcome{}, fmt.Errorf("decode exchange: %w", err)
		}
		return stepExchange(pool, ev, followChain)
	case model.EventAddLiquidity:
		var ev model.AddLiquidityData
		if err := json.Unmarshal(rec.Decoded, &ev); err != nil {
			return outcome{}, fmt.Errorf("decode add liquidity: %w", err)
		}
		return stepDeposit(pool, ev, followChain)
	case model.EventRemoveLiquidity:
		var ev model.RemoveLiquidityData
		if err := json.Unmarshal(rec.Decoded, &ev); err != nil {
			return outcome{}, fmt.Errorf("decode remove liquidity: %w", err)
		}
		return stepProportional(pool, ev, followChain)
	case model.EventRemoveLiquidityImbalance:
		var ev model.RemoveLiquidityImbalanceData
		if err := json.Unmarshal(rec.Decoded, &ev); err != nil {
			return outcome{}, fmt.Errorf("decode remove imbalance: %w", err)
		}
		return stepImbalance(pool, ev, followChain)
	case model.EventRemoveLiquidityOne:
		var ev model.RemoveLiquidityOneData
		if err := json.Unmarshal(rec.Decoded, &ev); err != nil {
			return outcome{}, fmt.Errorf("decode remove one: %w", err)
		}
		return stepWithdrawOne(pool, ev, followChain)
	default:
		return outcome{}, fmt.Errorf("%w: %s", errUnsupportedEvent, rec.EventName)
	}
}

func stepExchange(pool *stableswap.Pool, ev model.TokenExchangeData, followChain bool) (outcome, error) {
	i, j := int(ev.SoldID), int(ev.BoughtID)
	if i < 0 || i >= pool.N() || j < 0 || j >= pool.N() || i == j {
		return outcome{}, fmt.Errorf("exchange %d -> %d on a %d coin pool", i, j, pool.N())
	}
	dx, err := stableswap.ParseAmount(ev.TokensSold)
	if err != nil {
		return outcome{}, fmt.Errorf("tokens sold: %w", err)
	}
	dy, err := stableswap.ParseAmount(ev.TokensBought)
	if err != nil {
		return outcome{}, fmt.Errorf("tokens bought: %w", err)
	}

	out := outcome{coin: j, observed: dy.Int(), swap: true, coinIn: i, amountIn: dx.Int()}
	deltas := zeroDeltas(pool.N())
	deltas[i] = dx.Int()
	deltas[j] = dy.Int().Neg()

	if followChain {
		res, err := pool.QuoteSwap(i, j, dx)
		out.fill(res.AmountOut, res.Diagnostics, err)
		out.next, err = shift(pool, deltas, pool.TotalSupply().Int())
		return out, err
	}

	next := pool.Clone()
	res, err := next.ExecuteSwap(i, j, dx)
	out.fill(res.AmountOut, res.Diagnostics, err)
	if err != nil {
		out.next, err = shift(pool, deltas, pool.TotalSupply().Int())
		return out, err
	}
	out.next = next
	return out, nil
}

func stepDeposit(pool *stableswap.Pool, ev model.AddLiquidityData, followChain bool) (outcome, error) {
	amounts, err := parseAmounts(ev.TokenAmounts, pool.N())
	if err != nil {
		return outcome{}, fmt.Errorf("token amounts: %w", err)
	}
	supplyAfter, err := stableswap.ParseAmount(ev.TokenSupply)
	if err != nil {
		return outcome{}, fmt.Errorf("token supply: %w", err)
	}
	supply := pool.TotalSupply().Int()
	out := outcome{coin: lpCoin, observed: nonNegative(supplyAfter.Int().Sub(supply))}

	minted, err := pool.CalcTokenAmount(amounts, true)
	out.fill(minted.Amount, minted.Diagnostics, err)

	nextSupply := supplyAfter.Int()
	if !followChain && err == nil {
		nextSupply = supply.Add(minted.Amount.Int())
	}
	out.next, err = shift(pool, amountInts(amounts, false), nextSupply)
	return out, err
}

func stepProportional(pool *stableswap.Pool, ev model.RemoveLiquidityData, followChain bool) (outcome, error) {
	amounts, err := parseAmounts(ev.TokenAmounts, pool.N())
	if err != nil {
		return outcome{}, fmt.Errorf("token amounts: %w", err)
	}
	supplyAfter, err := stableswap.ParseAmount(ev.TokenSupply)
	if err != nil {
		return outcome{}, fmt.Errorf("token supply: %w", err)
	}
	supply := pool.TotalSupply().Int()
	burn := nonNegative(supply.Sub(supplyAfter.Int()))
	out := outcome{coin: lpCoin, observed: burn}

	predicted, err := pool.CalcTokenAmount(amounts, false)
	out.fill(predicted.Amount, predicted.Diagnostics, err)

	deltas := amountInts(amounts, true)
	if !followChain {
		if shares, qerr := pool.QuoteProportionalWithdrawal(stableswap.NewAmount(burn), stableswap.RoundFloor); qerr == nil {
			deltas = amountInts(shares, true)
		}
	}
	out.next, err = shift(pool, deltas, supplyAfter.Int())
	return out, err
}

func stepImbalance(pool *stableswap.Pool, ev model.RemoveLiquidityImbalanceData, followChain bool) (outcome, error) {
	amounts, err := parseAmounts(ev.TokenAmounts, pool.N())
	if err != nil {
		return outcome{}, fmt.Errorf("token amounts: %w", err)
	}
	supplyAfter, err := stableswap.ParseAmount(ev.TokenSupply)
	if err != nil {
		return outcome{}, fmt.Errorf("token supply: %w", err)
	}
	supply := pool.TotalSupply().Int()
	out := outcome{coin: lpCoin, observed: nonNegative(supply.Sub(supplyAfter.Int()))}

	if followChain {
		res, err := pool.QuoteRemoveLiquidityImbalance(amounts)
		out.fill(res.Burn, res.Diagnostics, err)
		out.next, err = shift(pool, amountInts(amounts, true), supplyAfter.Int())
		return out, err
	}

	next := pool.Clone()
	res, err := next.RemoveLiquidityImbalance(amounts)
	out.fill(res.Burn, res.Diagnostics, err)
	if err != nil {
		out.next, err = shift(pool, amountInts(amounts, true), supplyAfter.Int())
		return out, err
	}
	if err := next.SetTotalSupply(stableswap.NewAmount(nonNegative(supply.Sub(res.Burn.Int())))); err != nil {
		return outcome{}, err
	}
	out.next = next
	return out, nil
}

// stepWithdrawOne infers the withdrawn coin, which the event does not carry,
// as the one whose quote lands closest to the observed amount.
func stepWithdrawOne(pool *stableswap.Pool, ev model.RemoveLiquidityOneData, followChain bool) (outcome, error) {
	burn, err := stableswap.ParseAmount(ev.TokenAmount)
	if err != nil {
		return outcome{}, fmt.Errorf("token amount: %w", err)
	}
	paid, err := stableswap.ParseAmount(ev.CoinAmount)
	if err != nil {
		return outcome{}, fmt.Errorf("coin amount: %w", err)
	}

	prices := pool.Prices()
	best := -1
	var (
		bestGap  math.Int
		bestRes  stableswap.WithdrawOneResult
		firstErr error
	)
	for i := 0; i < pool.N(); i++ {
		res, err := pool.CalcWithdrawOneCoin(burn, i)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		gap := normalize(res.AmountOut.Int().Sub(paid.Int()).Abs(), prices[i])
		if best < 0 || gap.LT(bestGap) {
			best, bestGap, bestRes = i, gap, res
		}
	}

	supplyAfter := nonNegative(pool.TotalSupply().Int().Sub(burn.Int()))
	if best < 0 {
		return outcome{}, fmt.Errorf("withdraw one: %w", firstErr)
	}

	out := outcome{coin: best, observed: paid.Int()}
	out.fill(bestRes.AmountOut, bestRes.Diagnostics, nil)

	taken := paid.Int()
	if !followChain {
		taken = bestRes.AmountOut.Int()
	}
	deltas := zeroDeltas(pool.N())
	deltas[best] = taken.Neg()
	out.next, err = shift(pool, deltas, supplyAfter)
	return out, err
}

func (o *outcome) fill(predicted stableswap.Amount, diag stableswap.Diagnostics, err error) {
	if err != nil {
		o.predictErr = err
		o.predicted = math.ZeroInt()
		return
	}
	o.predicted = predicted.Int()
	o.diag = diag
}

// shift returns pool with deltas added to its balances and the given supply.
func shift(pool *stableswap.Pool, deltas []math.Int, supply math.Int) (*stableswap.Pool, error) {
	balances := pool.Balances()
	next := make([]stableswap.Amount, len(balances))
	for k, b := range balances {
		v := b.Int().Add(deltas[k])
		if v.IsNegative() {
			return nil, fmt.Errorf("%w: coin %d balance would go to %s", stableswap.ErrInsufficientBalance, k, v)
		}
		next[k] = stableswap.NewAmount(v)
	}
	return pool.WithState(next, stableswap.NewAmount(supply))
}

func parseAmounts(values []string, n int) ([]stableswap.Amount, error) {
	if len(values) != n {
		return nil, fmt.Errorf("%d amounts for %d coins", len(values), n)
	}
	out := make([]stableswap.Amount, n)
	for k, s := range values {
		a, err := stableswap.ParseAmount(s)
		if err != nil {
			return nil, err
		}
		out[k] = a
	}
	return out, nil
}

func amountInts(amounts []stableswap.Amount, negate bool) []math.Int {
	out := make([]math.Int, len(amounts))
	for k, a := range amounts {
		out[k] = a.Int()
		if negate {
			out[k] = out[k].Neg()
		}
	}
	return out
}

func zeroDeltas(n int) []math.Int {
	out := make([]math.Int, n)
	for k := range out {
		out[k] = math.ZeroInt()
	}
	return out
}

func nonNegative(v math.Int) math.Int {
	if v.IsNegative() {
		return math.ZeroInt()
	}
	return v
}
