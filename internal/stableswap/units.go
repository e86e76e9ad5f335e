package stableswap

import (
	"fmt"

	"cosmossdk.io/math"
	"lukechampine.com/uint128"
)

const (
	// DefaultMaxIterations bounds every embedded solver loop.
	DefaultMaxIterations = 1000

	// FeeDenominator is the implicit denominator of FeeRate.
	FeeDenominator = 10_000_000_000

	// withdrawOneFeeOffset widens the single-coin withdrawal fee.
	withdrawOneFeeOffset = 500_000

	maxPriceDecimals = 36
)

var (
	pricePrecision = math.NewIntWithDecimal(1, 18)
	feeDenominator = math.NewInt(FeeDenominator)
)

// Amount is a raw token quantity in the token's own decimals. LP supply and
// burn amounts are Amounts too.
type Amount math.Int

// Scaled is a quantity normalized to the common 18-decimal unit. D is Scaled.
type Scaled math.Int

// Price is a fixed-point rate with denominator 10^18.
type Price math.Int

// FeeRate is a fraction with denominator FeeDenominator.
type FeeRate uint64

// NewAmount wraps a raw token quantity.
func NewAmount(v math.Int) Amount { return Amount(v) }

// AmountFromUint64 wraps a small raw quantity, mostly for tests and flags.
func AmountFromUint64(v uint64) Amount { return Amount(math.NewIntFromUint64(v)) }

// ParseAmount parses a base-10 raw token quantity. Raw quantities are bounded
// to 128 bits, so normalized balances and D stay within 256 bits even for a
// zero-decimal token. Solver products of two such values are taken in the
// 512-bit wide domain.
func ParseAmount(s string) (Amount, error) {
	u, err := uint128.FromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: parse amount %q: %v", ErrInvalidAmount, s, err)
	}
	return Amount(math.NewIntFromBigInt(u.Big())), nil
}

// Int returns the underlying integer. The zero Amount reads as 0.
func (a Amount) Int() math.Int { return orZero(math.Int(a)) }

func (a Amount) String() string { return a.Int().String() }

// IsZero reports whether the amount is 0.
func (a Amount) IsZero() bool { return a.Int().IsZero() }

// NewScaled wraps a normalized quantity.
func NewScaled(v math.Int) Scaled { return Scaled(v) }

// Int returns the underlying integer. The zero Scaled reads as 0.
func (s Scaled) Int() math.Int { return orZero(math.Int(s)) }

func (s Scaled) String() string { return s.Int().String() }

// NewPrice wraps a 10^18 fixed-point rate.
func NewPrice(v math.Int) Price { return Price(v) }

// ParityPrice is the default rate for a token that already has 18 decimals.
func ParityPrice() Price { return Price(pricePrecision) }

// PriceForDecimals returns the rate 10^(36-decimals) that lifts a token with
// the given decimals to the 18-decimal unit.
func PriceForDecimals(decimals uint8) (Price, error) {
	if decimals > maxPriceDecimals {
		return Price{}, fmt.Errorf("%w: token decimals %d exceed %d", ErrConfiguration, decimals, maxPriceDecimals)
	}
	return Price(math.NewIntWithDecimal(1, maxPriceDecimals-int(decimals))), nil
}

// ParsePrice parses a base-10 rate.
func ParsePrice(s string) (Price, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return Price{}, fmt.Errorf("%w: parse price %q", ErrConfiguration, s)
	}
	return Price(v), nil
}

// Int returns the underlying integer. The zero Price reads as 0.
func (p Price) Int() math.Int { return orZero(math.Int(p)) }

func (p Price) String() string { return p.Int().String() }

func (f FeeRate) Int() math.Int { return math.NewIntFromUint64(uint64(f)) }

func orZero(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v
}
