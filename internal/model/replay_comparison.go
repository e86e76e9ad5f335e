package model

// ReplayComparison is one event's engine prediction next to what the pool
// actually did. Amounts are raw base-10 strings in the compared unit.
type ReplayComparison struct {
	ChainID      uint64 `json:"chain_id"`
	BlockNumber  uint64 `json:"block_number"`
	TxHash       string `json:"tx_hash"`
	LogIndex     uint64 `json:"log_index"`
	Address      string `json:"address"`
	EventName    string `json:"event_name"`
	Timestamp    uint64 `json:"timestamp"`
	Coin         int    `json:"coin"`
	Observed     string `json:"observed"`
	Predicted    string `json:"predicted"`
	DeviationBps string `json:"deviation_bps"`
	Iterations   int    `json:"iterations"`
	Converged    bool   `json:"converged"`
	Error        string `json:"error,omitempty"`
}
