package replay

import (
	"time"

	"cosmossdk.io/math"

	"stableScope/internal/model"
	"stableScope/internal/stableswap"
)

var (
	pricePrecision = math.NewIntWithDecimal(1, 18)
	bpsScale       = int64(10_000)
)

// Accumulator holds replay totals for one pool window. Observed and
// predicted totals are normalized to 18 decimals so coins and LP amounts
// add up in one unit.
type Accumulator struct {
	ChainID     uint64
	PoolAddress string
	PoolMeta    model.PoolMeta
	WindowStart uint64
	WindowEnd   uint64

	EventCount   uint64
	SwapCount    uint64
	ExactMatches uint64
	NonConverged uint64
	Volumes      []math.Int
	Observed     math.Int
	Predicted    math.Int
	AbsDeviation math.Int
	MaxDeviation math.LegacyDec

	FirstBlock uint64
	LastBlock  uint64
	LastTS     uint64
}

func NewAccumulator(record model.TypedEventRecord, n int, windowStart, windowEnd uint64) *Accumulator {
	volumes := make([]math.Int, n)
	for k := range volumes {
		volumes[k] = math.ZeroInt()
	}
	return &Accumulator{
		ChainID:      record.ChainID,
		PoolAddress:  record.Address,
		PoolMeta:     record.PoolMeta,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Volumes:      volumes,
		Observed:     math.ZeroInt(),
		Predicted:    math.ZeroInt(),
		AbsDeviation: math.ZeroInt(),
		MaxDeviation: math.LegacyZeroDec(),
		FirstBlock:   record.BlockNumber,
		LastBlock:    record.BlockNumber,
		LastTS:       record.Timestamp,
	}
}

// Add folds one replayed event into the window and returns its deviation.
func (a *Accumulator) Add(record model.TypedEventRecord, out outcome, prices []stableswap.Price) math.LegacyDec {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}
	a.EventCount++

	if out.swap {
		a.SwapCount++
		a.Volumes[out.coinIn] = a.Volumes[out.coinIn].Add(out.amountIn)
	}
	if out.predictErr != nil {
		return math.LegacyZeroDec()
	}
	if !out.diag.Converged {
		a.NonConverged++
	}

	observed, predicted := out.observed, out.predicted
	if out.coin != lpCoin {
		observed = normalize(observed, prices[out.coin])
		predicted = normalize(predicted, prices[out.coin])
	}
	a.Observed = a.Observed.Add(observed)
	a.Predicted = a.Predicted.Add(predicted)
	a.AbsDeviation = a.AbsDeviation.Add(predicted.Sub(observed).Abs())

	if out.observed.Equal(out.predicted) {
		a.ExactMatches++
	}
	dev := deviationBps(out.observed, out.predicted)
	if dev.GT(a.MaxDeviation) {
		a.MaxDeviation = dev
	}
	return dev
}

// Metrics renders the window. virtualPrice is nil when the pool has no supply.
func (a *Accumulator) Metrics(windowSeconds uint64, virtualPrice *string) model.ReplayWindowMetrics {
	volumes := make([]string, len(a.Volumes))
	for k, v := range a.Volumes {
		volumes[k] = v.String()
	}
	return model.ReplayWindowMetrics{
		ChainID:         a.ChainID,
		PoolAddress:     a.PoolAddress,
		WindowSizeSecs:  int64(windowSeconds),
		WindowStart:     time.Unix(int64(a.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(a.WindowEnd), 0).UTC(),
		EventCount:      a.EventCount,
		SwapCount:       a.SwapCount,
		Volumes:         volumes,
		ObservedTotal:   a.Observed.String(),
		PredictedTotal:  a.Predicted.String(),
		AbsDeviation:    a.AbsDeviation.String(),
		MaxDeviationBps: a.MaxDeviation.String(),
		ExactMatches:    a.ExactMatches,
		NonConverged:    a.NonConverged,
		VirtualPrice:    virtualPrice,
	}
}

// deviationBps is |predicted - observed| in basis points of observed. A
// nonzero prediction of a zero observation counts as 100%.
func deviationBps(observed, predicted math.Int) math.LegacyDec {
	diff := predicted.Sub(observed).Abs()
	if diff.IsZero() {
		return math.LegacyZeroDec()
	}
	if observed.IsZero() {
		return math.LegacyNewDec(bpsScale)
	}
	return math.LegacyNewDecFromInt(diff).MulInt64(bpsScale).QuoInt(observed.Abs())
}

// normalize lifts a raw amount to 18 decimals with its coin's price.
func normalize(raw math.Int, price stableswap.Price) math.Int {
	return raw.Mul(price.Int()).Quo(pricePrecision)
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
