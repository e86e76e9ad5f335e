package model

// Curve pool event names.
const (
	EventTokenExchange            = "TokenExchange"
	EventAddLiquidity             = "AddLiquidity"
	EventRemoveLiquidity          = "RemoveLiquidity"
	EventRemoveLiquidityImbalance = "RemoveLiquidityImbalance"
	EventRemoveLiquidityOne       = "RemoveLiquidityOne"
)

// TokenExchangeData is the decoded TokenExchange payload.
type TokenExchangeData struct {
	Buyer        string `json:"buyer"`
	SoldID       int64  `json:"sold_id"`
	TokensSold   string `json:"tokens_sold"`
	BoughtID     int64  `json:"bought_id"`
	TokensBought string `json:"tokens_bought"`
}

// AddLiquidityData is the decoded AddLiquidity payload.
type AddLiquidityData struct {
	Provider     string   `json:"provider"`
	TokenAmounts []string `json:"token_amounts"`
	Fees         []string `json:"fees"`
	Invariant    string   `json:"invariant"`
	TokenSupply  string   `json:"token_supply"`
}

// RemoveLiquidityData is the decoded proportional RemoveLiquidity payload.
type RemoveLiquidityData struct {
	Provider     string   `json:"provider"`
	TokenAmounts []string `json:"token_amounts"`
	Fees         []string `json:"fees"`
	TokenSupply  string   `json:"token_supply"`
}

// RemoveLiquidityImbalanceData is the decoded RemoveLiquidityImbalance payload.
type RemoveLiquidityImbalanceData struct {
	Provider     string   `json:"provider"`
	TokenAmounts []string `json:"token_amounts"`
	Fees         []string `json:"fees"`
	Invariant    string   `json:"invariant"`
	TokenSupply  string   `json:"token_supply"`
}

// RemoveLiquidityOneData is the decoded RemoveLiquidityOne payload. The event
// does not carry the coin index.
type RemoveLiquidityOneData struct {
	Provider    string `json:"provider"`
	TokenAmount string `json:"token_amount"`
	CoinAmount  string `json:"coin_amount"`
}
