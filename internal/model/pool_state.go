package model

// PoolState is a point-in-time view of a pool, enough to rebuild the
// invariant engine. Integers are base-10 strings.
type PoolState struct {
	ChainID       uint64   `json:"chain_id"`
	Address       string   `json:"address"`
	BlockNumber   uint64   `json:"block_number"`
	Timestamp     uint64   `json:"timestamp"`
	Amplification uint64   `json:"amplification"`
	FeeRate       uint64   `json:"fee_rate"`
	Prices        []string `json:"prices"`
	Balances      []string `json:"balances"`
	TotalSupply   string   `json:"total_supply"`
}
