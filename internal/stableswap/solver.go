package stableswap

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"
)

// solveY returns the normalized balance of token j that keeps the invariant d
// once token i holds x. Both indices are validated by the caller.
func (cv curve) solveY(xp []math.Int, i, j int, x, d math.Int) (math.Int, Diagnostics, error) {
	xx := make([]math.Int, 0, len(xp)-1)
	for k, v := range xp {
		switch k {
		case i:
			xx = append(xx, x)
		case j:
		default:
			xx = append(xx, v)
		}
	}

	var c checked
	cc, err := cv.foldC(&c, xx, d)
	if err != nil {
		return math.ZeroInt(), Diagnostics{}, err
	}
	wd := d.BigInt()
	b := c.wsub(c.wadd(c.sum(xx).BigInt(), c.wquo(wd, cv.ann.BigInt())), wd)
	if c.err != nil {
		return math.ZeroInt(), Diagnostics{}, fmt.Errorf("solve y: %w", c.err)
	}
	return cv.iterate(cc, b, wd)
}

// solveYD returns the normalized balance of token i at which the invariant
// evaluates to d, every other balance held at its current value.
func (cv curve) solveYD(xp []math.Int, i int, d math.Int) (math.Int, Diagnostics, error) {
	xx := make([]math.Int, 0, len(xp)-1)
	for k, v := range xp {
		if k != i {
			xx = append(xx, v)
		}
	}

	var c checked
	cc, err := cv.foldC(&c, xx, d)
	if err != nil {
		return math.ZeroInt(), Diagnostics{}, err
	}
	wd := d.BigInt()
	b := c.wadd(c.sum(xx).BigInt(), c.wquo(wd, cv.ann.BigInt()))
	if c.err != nil {
		return math.ZeroInt(), Diagnostics{}, fmt.Errorf("solve y_D: %w", c.err)
	}
	// 2y + b - d is the same update as solveY with the linear term shifted.
	return cv.iterate(cc, c.wsub(b, wd), wd)
}

// foldC computes d^(n+1) / (n^(2n)·Πxx·Ann) one factor at a time.
func (cv curve) foldC(c *checked, xx []math.Int, d math.Int) (*big.Int, error) {
	n := cv.n.BigInt()
	wd := d.BigInt()
	cc := wd
	for _, y := range xx {
		if !y.IsPositive() {
			return nil, fmt.Errorf("%w: solver needs every other balance above zero", ErrInsufficientBalance)
		}
		cc = c.wquo(c.wmul(cc, wd), c.wmul(y.BigInt(), n))
	}
	cc = c.wquo(c.wmul(cc, wd), c.wmul(n, cv.ann.BigInt()))
	if c.err != nil {
		return nil, fmt.Errorf("fold c: %w", c.err)
	}
	return cc, nil
}

// iterate runs y = (y² + c) / (2y + b) from y = y0 until two estimates differ
// by at most 1.
func (cv curve) iterate(cc, b, y0 *big.Int) (math.Int, Diagnostics, error) {
	var c checked
	y := y0
	if y.CmpAbs(bigOne) <= 0 {
		return c.narrow(y), Diagnostics{Converged: true}, nil
	}

	two := big.NewInt(2)
	for iter := 1; iter <= cv.maxIter; iter++ {
		prev := y
		den := c.wadd(c.wmul(two, prev), b)
		if c.err == nil && den.Sign() == 0 {
			return c.narrow(prev), Diagnostics{Iterations: iter}, fmt.Errorf("%w: vanishing denominator", ErrNonConvergence)
		}
		y = c.wquo(c.wadd(c.wmul(prev, prev), cc), den)
		if c.err != nil {
			return math.ZeroInt(), Diagnostics{Iterations: iter}, fmt.Errorf("solve y: %w", c.err)
		}
		if wideWithin1(y, prev) {
			return cv.result(&c, y, Diagnostics{Iterations: iter, Converged: true})
		}
	}
	return cv.result(&c, y, Diagnostics{Iterations: cv.maxIter})
}

func (cv curve) result(c *checked, y *big.Int, diag Diagnostics) (math.Int, Diagnostics, error) {
	out := c.narrow(y)
	if c.err != nil {
		return math.ZeroInt(), diag, fmt.Errorf("solve y: %w", c.err)
	}
	return out, diag, nil
}
