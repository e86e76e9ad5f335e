package stableswap

import "errors"

var (
	ErrInvalidIndex        = errors.New("invalid token index")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonConvergence      = errors.New("solver did not converge")
	ErrConfiguration       = errors.New("invalid pool configuration")
	ErrOverflow            = errors.New("arithmetic overflow")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyPool           = errors.New("empty pool")

	errDivisionByZero = errors.New("division by zero")
)
