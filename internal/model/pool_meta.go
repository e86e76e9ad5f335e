package model

// PoolMeta captures Curve pool parameters read at decode time.
type PoolMeta struct {
	Coins    []string `json:"coins"`
	Decimals []uint8  `json:"decimals"`
	A        uint64   `json:"a"`
	Fee      uint64   `json:"fee"`
	LPToken  string   `json:"lp_token,omitempty"`
}

// N returns the coin count.
func (m PoolMeta) N() int { return len(m.Coins) }

// Pool is a pool row for storage.
type Pool struct {
	ChainID        uint64
	Address        string
	Meta           PoolMeta
	FirstSeenBlock uint64
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
