package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// MinCoins and MaxCoins bound the pool sizes the decoder understands.
	MinCoins = 2
	MaxCoins = 8
)

// curvePoolABITemplate is instantiated per coin count: the liquidity events
// carry uint256[N] arrays, so their signatures and topic0 depend on N.
const curvePoolABITemplate = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "buyer", "type": "address"},
      {"indexed": false, "name": "sold_id", "type": "int128"},
      {"indexed": false, "name": "tokens_sold", "type": "uint256"},
      {"indexed": false, "name": "bought_id", "type": "int128"},
      {"indexed": false, "name": "tokens_bought", "type": "uint256"}
    ],
    "name": "TokenExchange",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "token_amounts", "type": "%[1]s"},
      {"indexed": false, "name": "fees", "type": "%[1]s"},
      {"indexed": false, "name": "invariant", "type": "uint256"},
      {"indexed": false, "name": "token_supply", "type": "uint256"}
    ],
    "name": "AddLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "token_amounts", "type": "%[1]s"},
      {"indexed": false, "name": "fees", "type": "%[1]s"},
      {"indexed": false, "name": "token_supply", "type": "uint256"}
    ],
    "name": "RemoveLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "token_amount", "type": "uint256"},
      {"indexed": false, "name": "coin_amount", "type": "uint256"}
    ],
    "name": "RemoveLiquidityOne",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "token_amounts", "type": "%[1]s"},
      {"indexed": false, "name": "fees", "type": "%[1]s"},
      {"indexed": false, "name": "invariant", "type": "uint256"},
      {"indexed": false, "name": "token_supply", "type": "uint256"}
    ],
    "name": "RemoveLiquidityImbalance",
    "type": "event"
  },
  {"inputs": [], "name": "A", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "lp_token", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "get_virtual_price", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "i", "type": "uint256"}], "name": "coins", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "i", "type": "uint256"}], "name": "balances", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	curveABIMu    sync.Mutex
	curveABICache = make(map[int]abi.ABI)
)

// CurvePoolABI returns the parsed pool ABI for a pool of n coins.
func CurvePoolABI(n int) (abi.ABI, error) {
	if n < MinCoins || n > MaxCoins {
		return abi.ABI{}, fmt.Errorf("unsupported coin count %d", n)
	}

	curveABIMu.Lock()
	defer curveABIMu.Unlock()
	if parsed, ok := curveABICache[n]; ok {
		return parsed, nil
	}

	parsed, err := abi.JSON(strings.NewReader(fmt.Sprintf(curvePoolABITemplate, fmt.Sprintf("uint256[%d]", n))))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse pool abi n=%d: %w", n, err)
	}
	curveABICache[n] = parsed
	return parsed, nil
}
