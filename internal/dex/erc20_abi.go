package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens return bytes32 for symbol and name.
const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

// erc20StringABI and erc20Bytes32ABI parse once on first use; metadata reads
// fall back to the bytes32 layout when the string one fails to unpack.
var (
	erc20StringABI  = sync.OnceValues(func() (abi.ABI, error) { return parseERC20(erc20ABIStringJSON) })
	erc20Bytes32ABI = sync.OnceValues(func() (abi.ABI, error) { return parseERC20(erc20ABIBytes32JSON) })
)

func parseERC20(def string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return parsed, nil
}
