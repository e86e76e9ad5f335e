package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stableScope/internal/model"
	"stableScope/internal/stableswap"
)

// NativeCoin is the placeholder address pools use for the chain's native coin.
var NativeCoin = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPoolMeta reads coins, decimals, A and fee of a pool. The coin count is
// found by probing coins(i) until the call reverts.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address, tokenCache *TokenMetaCache, logger *zap.Logger) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// View functions do not depend on the coin count.
	poolABI, err := CurvePoolABI(MinCoins)
	if err != nil {
		return model.PoolMeta{}, err
	}

	var coins []common.Address
	for i := 0; i < MaxCoins; i++ {
		values, err := callMethod(ctx, caller, pool, poolABI, "coins", nil, big.NewInt(int64(i)))
		if err != nil {
			if i < MinCoins {
				return model.PoolMeta{}, fmt.Errorf("coins(%d): %w", i, err)
			}
			break
		}
		coin, err := asAddress(values[0])
		if err != nil {
			return model.PoolMeta{}, fmt.Errorf("coins(%d): %w", i, err)
		}
		coins = append(coins, coin)
	}

	amp, fee, err := FetchPoolParams(ctx, caller, pool, nil)
	if err != nil {
		return model.PoolMeta{}, err
	}

	meta := model.PoolMeta{
		Coins:    make([]string, len(coins)),
		Decimals: make([]uint8, len(coins)),
		A:        amp,
		Fee:      fee,
		LPToken:  pool.Hex(),
	}

	// Older pools mint a separate LP token; newer ones are their own.
	if values, err := callMethod(ctx, caller, pool, poolABI, "lp_token", nil); err == nil {
		if lp, err := asAddress(values[0]); err == nil {
			meta.LPToken = lp.Hex()
		}
	} else {
		logger.Debug("lp_token call failed, using pool address", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	for i, coin := range coins {
		meta.Coins[i] = coin.Hex()
		tokenMeta, err := tokenMetaFor(ctx, caller, coin, tokenCache, logger)
		if err != nil {
			return model.PoolMeta{}, fmt.Errorf("coin %d metadata: %w", i, err)
		}
		meta.Decimals[i] = tokenMeta.Decimals
	}

	return meta, nil
}

func tokenMetaFor(ctx context.Context, caller ContractCaller, token common.Address, cache *TokenMetaCache, logger *zap.Logger) (model.TokenMeta, error) {
	if token == NativeCoin {
		return model.TokenMeta{Address: token.Hex(), Decimals: 18, Symbol: "ETH", Name: "Native"}, nil
	}
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta, nil
		}
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		return model.TokenMeta{}, err
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta, nil
}

// FetchPoolParams reads A and fee at a block height. A nil block reads latest.
func FetchPoolParams(ctx context.Context, caller ContractCaller, pool common.Address, block *big.Int) (uint64, uint64, error) {
	poolABI, err := CurvePoolABI(MinCoins)
	if err != nil {
		return 0, 0, err
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "A", block)
	if err != nil {
		return 0, 0, err
	}
	amp, err := asUint64(values[0])
	if err != nil {
		return 0, 0, fmt.Errorf("A: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "fee", block)
	if err != nil {
		return 0, 0, err
	}
	fee, err := asUint64(values[0])
	if err != nil {
		return 0, 0, fmt.Errorf("fee: %w", err)
	}
	return amp, fee, nil
}

// FetchPoolState reads balances, LP supply and parameters at a block height
// and derives the normalization rate of every coin from its decimals.
func FetchPoolState(ctx context.Context, caller ContractCaller, pool common.Address, meta model.PoolMeta, blockNumber uint64) (model.PoolState, error) {
	if caller == nil {
		return model.PoolState{}, fmt.Errorf("chain client is nil")
	}
	if len(meta.Decimals) != meta.N() {
		return model.PoolState{}, fmt.Errorf("pool meta has %d decimals for %d coins", len(meta.Decimals), meta.N())
	}
	poolABI, err := CurvePoolABI(MinCoins)
	if err != nil {
		return model.PoolState{}, err
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}

	state := model.PoolState{
		Address:     pool.Hex(),
		BlockNumber: blockNumber,
		Prices:      make([]string, meta.N()),
		Balances:    make([]string, meta.N()),
	}
	state.Amplification, state.FeeRate, err = FetchPoolParams(ctx, caller, pool, block)
	if err != nil {
		return model.PoolState{}, err
	}

	for i := 0; i < meta.N(); i++ {
		values, err := callMethod(ctx, caller, pool, poolABI, "balances", block, big.NewInt(int64(i)))
		if err != nil {
			return model.PoolState{}, fmt.Errorf("balances(%d): %w", i, err)
		}
		bal, err := asBigInt(values[0])
		if err != nil {
			return model.PoolState{}, fmt.Errorf("balances(%d): %w", i, err)
		}
		state.Balances[i] = bal.String()

		price, err := stableswap.PriceForDecimals(meta.Decimals[i])
		if err != nil {
			return model.PoolState{}, err
		}
		state.Prices[i] = price.String()
	}

	lpToken := pool
	if meta.LPToken != "" && common.IsHexAddress(meta.LPToken) {
		lpToken = common.HexToAddress(meta.LPToken)
	}
	erc20, err := erc20StringABI()
	if err != nil {
		return model.PoolState{}, err
	}
	values, err := callMethod(ctx, caller, lpToken, erc20, "totalSupply", block)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("lp supply: %w", err)
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("lp supply: %w", err)
	}
	state.TotalSupply = supply.String()

	return state, nil
}

// FetchVirtualPrice reads get_virtual_price at a block height.
func FetchVirtualPrice(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber uint64) (*big.Int, error) {
	poolABI, err := CurvePoolABI(MinCoins)
	if err != nil {
		return nil, err
	}
	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	values, err := callMethod(ctx, caller, pool, poolABI, "get_virtual_price", block)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func callMethod(ctx context.Context, caller ContractCaller, target common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20StringABI()
	if err != nil {
		return meta, err
	}
	bytes32ABI, err := erc20Bytes32ABI()
	if err != nil {
		return meta, err
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	meta.Symbol = readText(ctx, caller, token, "symbol", stringABI, bytes32ABI, logger)
	meta.Name = readText(ctx, caller, token, "name", stringABI, bytes32ABI, logger)
	return meta, nil
}

func readText(ctx context.Context, caller ContractCaller, token common.Address, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := callMethod(ctx, caller, token, stringABI, method, nil); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := callMethod(ctx, caller, token, bytes32ABI, method, nil)
	if err == nil {
		if s, ok := bytes32ToString(values[0]); ok {
			return s
		}
	}
	if logger != nil {
		logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	return ""
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return strings.TrimSpace(string(bytes.TrimRight(v[:], "\x00"))), true
	case []byte:
		return strings.TrimSpace(string(bytes.TrimRight(v, "\x00"))), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint64(value interface{}) (uint64, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s does not fit in uint64", v)
	}
	return v.Uint64(), nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
