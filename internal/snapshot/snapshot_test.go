package snapshot

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"stableScope/internal/chain"
	"stableScope/internal/dex"
	"stableScope/internal/model"
	"stableScope/internal/stableswap"
)

func balancedState() model.PoolState {
	return model.PoolState{
		ChainID:       1,
		Address:       "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7",
		BlockNumber:   100,
		Timestamp:     1_700_000_000,
		Amplification: 100,
		FeeRate:       10_000_000,
		Prices:        []string{"1000000000000000000", "1000000000000000000"},
		Balances:      []string{"1000000000000000000000", "1000000000000000000000"},
		TotalSupply:   "2000000000000000000000",
	}
}

func TestToPoolAndBack(t *testing.T) {
	state := balancedState()
	pool, err := ToPool(state, Options{})
	if err != nil {
		t.Fatalf("to pool: %v", err)
	}
	d, err := pool.Invariant()
	if err != nil {
		t.Fatalf("invariant: %v", err)
	}
	if d.String() != "2000000000000000000000" {
		t.Fatalf("unexpected invariant %s", d)
	}

	if _, err := pool.ExecuteSwap(0, 1, stableswap.AmountFromUint64(0)); err != nil {
		t.Fatalf("zero swap: %v", err)
	}
	if got := FromPool(pool, state); !reflect.DeepEqual(got, state) {
		t.Fatalf("round trip mismatch: %+v != %+v", got, state)
	}

	dx, _ := stableswap.ParseAmount("100000000000000000000")
	if _, err := pool.ExecuteSwap(0, 1, dx); err != nil {
		t.Fatalf("swap: %v", err)
	}
	next := FromPool(pool, state)
	want := []string{"1100000000000000000000", "900199789246106243807"}
	if !reflect.DeepEqual(next.Balances, want) {
		t.Fatalf("balances mismatch: %v != %v", next.Balances, want)
	}
	if next.BlockNumber != state.BlockNumber || next.Address != state.Address {
		t.Fatalf("identity changed: %+v", next)
	}
}

func TestToPoolRejectsBadState(t *testing.T) {
	cases := map[string]func(*model.PoolState){
		"price count":  func(s *model.PoolState) { s.Prices = s.Prices[:1] },
		"bad balance":  func(s *model.PoolState) { s.Balances[0] = "-5" },
		"bad supply":   func(s *model.PoolState) { s.TotalSupply = "abc" },
		"bad price":    func(s *model.PoolState) { s.Prices[1] = "x" },
		"zero amp":     func(s *model.PoolState) { s.Amplification = 0 },
		"single token": func(s *model.PoolState) { s.Balances = s.Balances[:1]; s.Prices = s.Prices[:1] },
	}
	for name, mutate := range cases {
		state := balancedState()
		mutate(&state)
		if _, err := ToPool(state, Options{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "snap", "pool.json"))

	if _, ok, err := store.Load(ctx, 1, ""); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	state := balancedState()
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx, 1, strings.ToLower(state.Address))
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, state) {
		t.Fatalf("state mismatch: %+v != %+v", got, state)
	}

	if _, _, err := store.Load(ctx, 1, "0x0000000000000000000000000000000000000001"); err == nil {
		t.Fatalf("expected pool mismatch error")
	}
	if _, _, err := store.Load(ctx, 5, ""); err == nil {
		t.Fatalf("expected chain mismatch error")
	}
}

type fakeSource struct {
	responses map[string][]byte
}

func (f *fakeSource) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	resp, ok := f.responses[msg.To.Hex()+hexutil.Encode(msg.Data)]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return 500, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) expect(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	data, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.responses[to.Hex()+hexutil.Encode(data)] = out
}

const erc20JSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

func TestCapture(t *testing.T) {
	pool := common.HexToAddress("0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7")
	coins := []common.Address{
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}
	decimals := []uint8{18, 6}

	poolABI, err := dex.CurvePoolABI(2)
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20JSON))
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}

	src := &fakeSource{responses: make(map[string][]byte)}
	balances := []*big.Int{new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)), big.NewInt(1_000_000_000)}
	for i, coin := range coins {
		src.expect(t, pool, poolABI, "coins", []interface{}{big.NewInt(int64(i))}, coin)
		src.expect(t, pool, poolABI, "balances", []interface{}{big.NewInt(int64(i))}, balances[i])
		src.expect(t, coin, erc20, "decimals", nil, decimals[i])
		src.expect(t, coin, erc20, "symbol", nil, "TKN")
	}
	src.expect(t, pool, poolABI, "A", nil, big.NewInt(100))
	src.expect(t, pool, poolABI, "fee", nil, big.NewInt(4_000_000))
	src.expect(t, pool, erc20, "totalSupply", nil, new(big.Int).Mul(big.NewInt(2000), big.NewInt(1e18)))

	state, meta, err := Capture(context.Background(), src, pool, 0, chain.RetryPolicy{}, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if meta.N() != 2 || meta.Decimals[1] != 6 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if state.ChainID != 1 || state.BlockNumber != 500 || state.Timestamp != 1_700_000_500 {
		t.Fatalf("unexpected position: %+v", state)
	}
	if state.Prices[1] != "1000000000000000000000000000000" {
		t.Fatalf("unexpected usdc price %s", state.Prices[1])
	}

	engine, err := ToPool(state, Options{})
	if err != nil {
		t.Fatalf("to pool: %v", err)
	}
	xp, err := engine.Xp()
	if err != nil {
		t.Fatalf("xp: %v", err)
	}
	if xp[0].String() != xp[1].String() {
		t.Fatalf("normalized balances differ: %s %s", xp[0], xp[1])
	}
}
