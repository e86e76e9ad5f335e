package stableswap

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"
)

// wideBits bounds solver intermediates. Normalized balances and D fit the
// 256-bit math.Int domain; products of two of them, scaled by Ann, need
// twice that.
const wideBits = 2 * math.MaxBitLen

// checked records the first arithmetic failure of a formula, so a sequence of
// steps can be written inline and tested once at the end.
type checked struct {
	err error
}

func (c *checked) fail(err error) math.Int {
	if c.err == nil {
		c.err = err
	}
	return math.ZeroInt()
}

func (c *checked) add(a, b math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	r, err := a.SafeAdd(b)
	if err != nil {
		return c.fail(fmt.Errorf("%w: %s + %s", ErrOverflow, a, b))
	}
	return r
}

func (c *checked) sub(a, b math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	r, err := a.SafeSub(b)
	if err != nil {
		return c.fail(fmt.Errorf("%w: %s - %s", ErrOverflow, a, b))
	}
	return r
}

func (c *checked) mul(a, b math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	r, err := a.SafeMul(b)
	if err != nil {
		return c.fail(fmt.Errorf("%w: %s * %s", ErrOverflow, a, b))
	}
	return r
}

// quo is floor division. math.Int.Quo truncates toward zero, which differs
// for negative operands.
func (c *checked) quo(a, b math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	return c.narrow(c.wquo(a.BigInt(), b.BigInt()))
}

// mulDiv is floor(a·b/d) with the product taken in the wide domain.
func (c *checked) mulDiv(a, b, d math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	return c.narrow(c.wquo(c.wmul(a.BigInt(), b.BigInt()), d.BigInt()))
}

// mulDivCeil is ceil(a·b/d) for non-negative operands.
func (c *checked) mulDivCeil(a, b, d math.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	num := c.wmul(a.BigInt(), b.BigInt())
	q := c.wquo(num, d.BigInt())
	if c.err == nil && new(big.Int).Mul(q, d.BigInt()).Cmp(num) != 0 {
		q = c.wadd(q, bigOne)
	}
	return c.narrow(q)
}

func (c *checked) sum(xs []math.Int) math.Int {
	s := math.ZeroInt()
	for _, x := range xs {
		s = c.add(s, x)
	}
	return s
}

// narrow brings a wide value back into math.Int.
func (c *checked) narrow(v *big.Int) math.Int {
	if c.err != nil {
		return math.ZeroInt()
	}
	if v.BitLen() > math.MaxBitLen {
		return c.fail(fmt.Errorf("%w: result needs %d bits", ErrOverflow, v.BitLen()))
	}
	return math.NewIntFromBigInt(v)
}

func (c *checked) bound(r *big.Int, op string, a, b *big.Int) *big.Int {
	if r.BitLen() > wideBits {
		c.fail(fmt.Errorf("%w: %s %s %s", ErrOverflow, a, op, b))
		return new(big.Int)
	}
	return r
}

func (c *checked) wadd(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	return c.bound(new(big.Int).Add(a, b), "+", a, b)
}

func (c *checked) wsub(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	return c.bound(new(big.Int).Sub(a, b), "-", a, b)
}

func (c *checked) wmul(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	return c.bound(new(big.Int).Mul(a, b), "*", a, b)
}

// wquo is floor division in the wide domain.
func (c *checked) wquo(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	if b.Sign() == 0 {
		c.fail(errDivisionByZero)
		return new(big.Int)
	}
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && r.Sign() != b.Sign() {
		q.Sub(q, bigOne)
	}
	return q
}

var bigOne = big.NewInt(1)

func wideWithin1(a, b *big.Int) bool {
	return new(big.Int).Sub(a, b).CmpAbs(bigOne) <= 0
}

func wideInts(xs []math.Int) []*big.Int {
	out := make([]*big.Int, len(xs))
	for k, x := range xs {
		out[k] = x.BigInt()
	}
	return out
}

func cloneInts(xs []math.Int) []math.Int {
	out := make([]math.Int, len(xs))
	copy(out, xs)
	return out
}
