package stableswap

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"
)

// Diagnostics describes how a solver run ended.
type Diagnostics struct {
	Iterations int
	Converged  bool
}

func (d Diagnostics) merge(o Diagnostics) Diagnostics {
	return Diagnostics{
		Iterations: d.Iterations + o.Iterations,
		Converged:  d.Converged && o.Converged,
	}
}

// curve carries the parameters shared by the solvers.
type curve struct {
	n       math.Int
	ann     math.Int
	maxIter int
}

func newCurve(amp uint64, n, maxIter int) curve {
	nn := math.NewInt(int64(n))
	return curve{
		n:       nn,
		ann:     math.NewIntFromUint64(amp).Mul(nn),
		maxIter: maxIter,
	}
}

// invariant solves A·n·Σx + D = A·n·D + D^(n+1)/(n^n·Πx) for D by fixed-point
// iteration starting at D = Σx. The operation order matters under floor
// division and is kept as is. D_P and the numerator live in the wide domain.
func (cv curve) invariant(xp []math.Int) (math.Int, Diagnostics, error) {
	var c checked
	s := c.sum(xp)
	if c.err != nil {
		return math.ZeroInt(), Diagnostics{}, c.err
	}
	if s.LTE(math.OneInt()) {
		return s, Diagnostics{Converged: true}, nil
	}

	n := cv.n.BigInt()
	ann := cv.ann.BigInt()
	nPlus1 := new(big.Int).Add(n, bigOne)
	annMinus1 := new(big.Int).Sub(ann, bigOne)
	annS := c.wmul(ann, s.BigInt())

	// +1 keeps a zero balance from dividing by zero.
	dens := wideInts(xp)
	for k, x := range dens {
		dens[k] = c.wadd(c.wmul(n, x), bigOne)
	}

	d := s.BigInt()
	for iter := 1; iter <= cv.maxIter; iter++ {
		dP := d
		for _, den := range dens {
			dP = c.wquo(c.wmul(dP, d), den)
		}
		prev := d
		num := c.wmul(c.wadd(annS, c.wmul(dP, n)), prev)
		den := c.wadd(c.wmul(annMinus1, prev), c.wmul(nPlus1, dP))
		d = c.wquo(num, den)
		if c.err != nil {
			return math.ZeroInt(), Diagnostics{Iterations: iter}, fmt.Errorf("invariant: %w", c.err)
		}
		if wideWithin1(d, prev) {
			out := c.narrow(d)
			if c.err != nil {
				return math.ZeroInt(), Diagnostics{Iterations: iter}, fmt.Errorf("invariant: %w", c.err)
			}
			return out, Diagnostics{Iterations: iter, Converged: true}, nil
		}
	}
	out := c.narrow(d)
	if c.err != nil {
		return math.ZeroInt(), Diagnostics{Iterations: cv.maxIter}, fmt.Errorf("invariant: %w", c.err)
	}
	return out, Diagnostics{Iterations: cv.maxIter}, nil
}
