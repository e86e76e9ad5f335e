package quote

import (
	"fmt"
	"sort"

	"stableScope/internal/stableswap"
)

// Operations understood by Run.
const (
	OpSwap              = "swap"
	OpWithdrawOne       = "withdraw-one"
	OpWithdrawImbalance = "withdraw-imbalance"
	OpDeposit           = "deposit"
	OpVirtualPrice      = "virtual-price"
	OpInvariant         = "invariant"
)

var readOnly = map[string]bool{OpVirtualPrice: true, OpInvariant: true}

// Ops lists the supported operation names.
func Ops() []string {
	ops := []string{OpSwap, OpWithdrawOne, OpWithdrawImbalance, OpDeposit, OpVirtualPrice, OpInvariant}
	sort.Strings(ops)
	return ops
}

// Request describes one engine call. Amount is a raw token or LP amount,
// Amounts one raw amount per coin.
type Request struct {
	Op      string
	I       int
	J       int
	Amount  string
	Amounts []string
	Execute bool
}

// Response is printed as JSON by the quote command.
type Response struct {
	Op         string   `json:"op"`
	Executed   bool     `json:"executed"`
	AmountOut  string   `json:"amount_out,omitempty"`
	Fee        string   `json:"fee,omitempty"`
	FeeRate    uint64   `json:"fee_rate,omitempty"`
	Coin       *int     `json:"coin,omitempty"`
	LPAmount   string   `json:"lp_amount,omitempty"`
	Fees       []string `json:"fees,omitempty"`
	Value      string   `json:"value,omitempty"`
	Iterations int      `json:"iterations"`
	Converged  bool     `json:"converged"`
	Balances   []string `json:"balances"`
	Supply     string   `json:"total_supply"`
}

// Run performs req against pool. With req.Execute the returned pool carries
// the mutation; otherwise it is pool itself, untouched.
func Run(pool *stableswap.Pool, req Request) (Response, *stableswap.Pool, error) {
	resp := Response{Op: req.Op}
	if req.Execute && readOnly[req.Op] {
		return Response{}, nil, fmt.Errorf("%s does not change the pool", req.Op)
	}

	next := pool
	switch req.Op {
	case OpSwap:
		dx, err := stableswap.ParseAmount(req.Amount)
		if err != nil {
			return Response{}, nil, err
		}
		var res stableswap.SwapResult
		if req.Execute {
			next = pool.Clone()
			res, err = next.ExecuteSwap(req.I, req.J, dx)
		} else {
			res, err = pool.QuoteSwap(req.I, req.J, dx)
		}
		if err != nil {
			return Response{}, nil, err
		}
		resp.AmountOut, resp.Fee = res.AmountOut.String(), res.Fee.String()
		resp.setDiagnostics(res.Diagnostics)

	case OpWithdrawOne:
		burn, err := stableswap.ParseAmount(req.Amount)
		if err != nil {
			return Response{}, nil, err
		}
		res, err := pool.CalcWithdrawOneCoin(burn, req.I)
		if err != nil {
			return Response{}, nil, err
		}
		resp.AmountOut, resp.FeeRate, resp.Coin = res.AmountOut.String(), uint64(res.FeeRate), &req.I
		resp.setDiagnostics(res.Diagnostics)
		if req.Execute {
			balances := pool.Balances()
			balances[req.I] = stableswap.NewAmount(balances[req.I].Int().Sub(res.AmountOut.Int()))
			next, err = pool.WithState(balances, stableswap.NewAmount(pool.TotalSupply().Int().Sub(burn.Int())))
			if err != nil {
				return Response{}, nil, err
			}
		}

	case OpWithdrawImbalance:
		amounts, err := parseAmounts(req.Amounts)
		if err != nil {
			return Response{}, nil, err
		}
		var res stableswap.ImbalanceResult
		if req.Execute {
			next = pool.Clone()
			res, err = next.RemoveLiquidityImbalance(amounts)
			if err == nil {
				err = next.SetTotalSupply(stableswap.NewAmount(next.TotalSupply().Int().Sub(res.Burn.Int())))
			}
		} else {
			res, err = pool.QuoteRemoveLiquidityImbalance(amounts)
		}
		if err != nil {
			return Response{}, nil, err
		}
		resp.LPAmount = res.Burn.String()
		resp.Fees = amountStrings(res.Fees)
		resp.setDiagnostics(res.Diagnostics)

	case OpDeposit:
		amounts, err := parseAmounts(req.Amounts)
		if err != nil {
			return Response{}, nil, err
		}
		minted, err := pool.CalcTokenAmount(amounts, true)
		if err != nil {
			return Response{}, nil, err
		}
		resp.LPAmount = minted.Amount.String()
		resp.setDiagnostics(minted.Diagnostics)
		if req.Execute {
			balances := pool.Balances()
			for k := range balances {
				balances[k] = stableswap.NewAmount(balances[k].Int().Add(amounts[k].Int()))
			}
			next, err = pool.WithState(balances, stableswap.NewAmount(pool.TotalSupply().Int().Add(minted.Amount.Int())))
			if err != nil {
				return Response{}, nil, err
			}
		}

	case OpVirtualPrice:
		vp, err := pool.VirtualPrice()
		if err != nil {
			return Response{}, nil, err
		}
		resp.Value = vp.String()
		resp.Converged = true

	case OpInvariant:
		d, diag, err := pool.InvariantDiagnostics()
		if err != nil {
			return Response{}, nil, err
		}
		resp.Value = d.String()
		resp.setDiagnostics(diag)

	default:
		return Response{}, nil, fmt.Errorf("unknown op %q, want one of %v", req.Op, Ops())
	}

	resp.Executed = req.Execute
	resp.Balances = amountStrings(next.Balances())
	resp.Supply = next.TotalSupply().String()
	return resp, next, nil
}

func (r *Response) setDiagnostics(d stableswap.Diagnostics) {
	r.Iterations = d.Iterations
	r.Converged = d.Converged
}

func parseAmounts(values []string) ([]stableswap.Amount, error) {
	out := make([]stableswap.Amount, len(values))
	for k, s := range values {
		a, err := stableswap.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("amount %d: %w", k, err)
		}
		out[k] = a
	}
	return out, nil
}

func amountStrings(values []stableswap.Amount) []string {
	out := make([]string, len(values))
	for k, v := range values {
		out[k] = v.String()
	}
	return out
}
