package replay

import (
	"encoding/json"
	"reflect"
	"testing"

	"stableScope/internal/model"
	"stableScope/internal/snapshot"
	"stableScope/internal/stableswap"
)

const poolAddress = "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7"

func seedState() model.PoolState {
	return model.PoolState{
		ChainID:       1,
		Address:       poolAddress,
		BlockNumber:   100,
		Amplification: 100,
		FeeRate:       10_000_000,
		Prices:        []string{"1000000000000000000", "1000000000000000000"},
		Balances:      []string{"1000000000000000000000", "1000000000000000000000"},
		TotalSupply:   "2000000000000000000000",
	}
}

func seedPool(t *testing.T) *stableswap.Pool {
	t.Helper()
	pool, err := snapshot.ToPool(seedState(), snapshot.Options{})
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	return pool
}

func record(t *testing.T, name string, block, ts uint64, payload interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return model.TypedEventRecord{
		ChainID:     1,
		BlockNumber: block,
		TxHash:      "0xabc",
		Address:     poolAddress,
		EventName:   name,
		Timestamp:   ts,
		Decoded:     raw,
		PoolMeta:    model.PoolMeta{Coins: []string{"0x1", "0x2"}, Decimals: []uint8{18, 18}, A: 100, Fee: 10_000_000},
	}
}

func balancesOf(pool *stableswap.Pool) []string {
	out := []string{}
	for _, b := range pool.Balances() {
		out = append(out, b.String())
	}
	return out
}

func TestStepExchange(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{
		SoldID: 0, TokensSold: "100000000000000000000", BoughtID: 1, TokensBought: "99800210753893756193",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.coin != 1 || !out.swap || out.coinIn != 0 {
		t.Fatalf("unexpected outcome shape: %+v", out)
	}
	if out.predicted.String() != "99800210753893756193" || !out.predicted.Equal(out.observed) {
		t.Fatalf("prediction mismatch: %s vs %s", out.predicted, out.observed)
	}
	want := []string{"1100000000000000000000", "900199789246106243807"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
	if got := balancesOf(pool); got[0] != "1000000000000000000000" {
		t.Fatalf("input pool mutated: %v", got)
	}
}

func TestStepExchangeFollowChain(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{
		SoldID: 0, TokensSold: "100000000000000000000", BoughtID: 1, TokensBought: "99000000000000000000",
	})

	out, err := step(pool, rec, true)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	want := []string{"1100000000000000000000", "901000000000000000000"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
	if out.predicted.String() != "99800210753893756193" {
		t.Fatalf("prediction mismatch: %s", out.predicted)
	}
}

func TestStepWithdrawOneInfersCoin(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventRemoveLiquidityOne, 101, 1000, model.RemoveLiquidityOneData{
		TokenAmount: "100000000000000000000", CoinAmount: "99918901862548209600",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.coin != 0 {
		t.Fatalf("expected coin 0, got %d", out.coin)
	}
	if !out.predicted.Equal(out.observed) {
		t.Fatalf("prediction mismatch: %s vs %s", out.predicted, out.observed)
	}
	if out.next.TotalSupply().String() != "1900000000000000000000" {
		t.Fatalf("unexpected supply %s", out.next.TotalSupply())
	}
	want := []string{"900081098137451790400", "1000000000000000000000"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
}

func TestStepImbalance(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventRemoveLiquidityImbalance, 101, 1000, model.RemoveLiquidityImbalanceData{
		TokenAmounts: []string{"100000000000000000000", "0"},
		Fees:         []string{"0", "0"},
		TokenSupply:  "1899923872775238813276",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.coin != lpCoin {
		t.Fatalf("expected lp comparison, got coin %d", out.coin)
	}
	if out.observed.String() != "100076127224761186724" || !out.predicted.Equal(out.observed) {
		t.Fatalf("burn mismatch: %s vs %s", out.predicted, out.observed)
	}
	want := []string{"899975006531635071017", "999974993468364928984"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
	if out.next.TotalSupply().String() != "1899923872775238813276" {
		t.Fatalf("unexpected supply %s", out.next.TotalSupply())
	}
}

func TestStepDeposit(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventAddLiquidity, 101, 1000, model.AddLiquidityData{
		TokenAmounts: []string{"100000000000000000000", "0"},
		Fees:         []string{"0", "0"},
		TokenSupply:  "2099976373430783457038",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.predicted.String() != "99976373430783457038" || !out.predicted.Equal(out.observed) {
		t.Fatalf("mint mismatch: %s vs %s", out.predicted, out.observed)
	}
	want := []string{"1100000000000000000000", "1000000000000000000000"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
}

func TestStepDepositCarriesSolverDiagnostics(t *testing.T) {
	pool, err := snapshot.ToPool(seedState(), snapshot.Options{MaxIterations: 1})
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	rec := record(t, model.EventAddLiquidity, 101, 1000, model.AddLiquidityData{
		TokenAmounts: []string{"100000000000000000000", "0"},
		Fees:         []string{"0", "0"},
		TokenSupply:  "2099976373430783457038",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.predictErr != nil {
		t.Fatalf("unexpected prediction error: %v", out.predictErr)
	}
	if out.diag.Converged {
		t.Fatalf("expected a non-converged deposit prediction, got %+v", out.diag)
	}
}

func TestStepProportional(t *testing.T) {
	pool := seedPool(t)
	rec := record(t, model.EventRemoveLiquidity, 101, 1000, model.RemoveLiquidityData{
		TokenAmounts: []string{"100000000000000000000", "100000000000000000000"},
		Fees:         []string{"0", "0"},
		TokenSupply:  "1800000000000000000000",
	})

	out, err := step(pool, rec, false)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.observed.String() != "200000000000000000000" || !out.predicted.Equal(out.observed) {
		t.Fatalf("burn mismatch: %s vs %s", out.predicted, out.observed)
	}
	want := []string{"900000000000000000000", "900000000000000000000"}
	if got := balancesOf(out.next); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances mismatch: %v != %v", got, want)
	}
}

func TestStepRejectsBadEvents(t *testing.T) {
	pool := seedPool(t)
	cases := []model.TypedEventRecord{
		record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{SoldID: 0, TokensSold: "1", BoughtID: 5, TokensBought: "1"}),
		record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{SoldID: 0, TokensSold: "x", BoughtID: 1, TokensBought: "1"}),
		record(t, model.EventAddLiquidity, 101, 1000, model.AddLiquidityData{TokenAmounts: []string{"1"}, TokenSupply: "1"}),
		record(t, "Transfer", 101, 1000, struct{}{}),
	}
	for i, rec := range cases {
		if _, err := step(pool, rec, false); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}

	// Balances cannot go negative under follow-chain deltas.
	rec := record(t, model.EventTokenExchange, 101, 1000, model.TokenExchangeData{
		SoldID: 0, TokensSold: "1", BoughtID: 1, TokensBought: "2000000000000000000000",
	})
	if _, err := step(pool, rec, true); err == nil {
		t.Fatalf("expected insufficient balance")
	}
}

func TestDeviationBps(t *testing.T) {
	obs := mustInt(t, "99800000000000000000")
	pred := mustInt(t, "99800210753893756193")
	if got := deviationBps(obs, pred).String(); got != "0.021117624624869038" {
		t.Fatalf("unexpected deviation %s", got)
	}
	if got := deviationBps(obs, obs); !got.IsZero() {
		t.Fatalf("expected zero deviation, got %s", got)
	}
	if got := deviationBps(mustInt(t, "0"), obs).String(); got != "10000.000000000000000000" {
		t.Fatalf("unexpected deviation for zero observation %s", got)
	}
}
