package stableswap

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"
)

// Config fixes the parameters of a pool for its lifetime.
type Config struct {
	// Amplification uses the A·n^(n-1) convention.
	Amplification uint64
	FeeRate       FeeRate
	// Prices defaults to ParityPrice for every token when empty.
	Prices []Price
	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int
	// StrictConvergence turns a solver that hits MaxIterations into
	// ErrNonConvergence instead of a logged warning.
	StrictConvergence bool
	Logger            *zap.Logger
}

// Pool is a basket of n tokens priced by the StableSwap invariant. A Pool is
// not safe for concurrent mutation; Clone it to quote from other goroutines.
type Pool struct {
	amp      uint64
	fee      FeeRate
	prices   []math.Int
	balances []math.Int
	supply   math.Int
	curve    curve
	strict   bool
	logger   *zap.Logger
}

// New builds a pool holding the given raw balances.
func New(cfg Config, balances []Amount, totalSupply Amount) (*Pool, error) {
	n := len(balances)
	prices, err := cfg.prices(n)
	if err != nil {
		return nil, err
	}

	raw := make([]math.Int, n)
	for k, b := range balances {
		raw[k] = b.Int()
	}
	return newPool(cfg, prices, raw, totalSupply.Int())
}

// NewFromDeposit builds a pool of n tokens from a total deposit in normalized
// units, split evenly: balance[k] = deposit/n · 10^18 / price[k].
func NewFromDeposit(cfg Config, n int, deposit Scaled, totalSupply Amount) (*Pool, error) {
	prices, err := cfg.prices(n)
	if err != nil {
		return nil, err
	}
	if deposit.Int().IsNegative() {
		return nil, fmt.Errorf("%w: negative deposit %s", ErrConfiguration, deposit)
	}

	var c checked
	share := c.quo(deposit.Int(), math.NewInt(int64(n)))
	raw := make([]math.Int, n)
	for k, p := range prices {
		raw[k] = c.mulDiv(share, pricePrecision, p)
	}
	if c.err != nil {
		return nil, fmt.Errorf("split deposit: %w", c.err)
	}
	return newPool(cfg, prices, raw, totalSupply.Int())
}

func (cfg Config) prices(n int) ([]math.Int, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 tokens, got %d", ErrConfiguration, n)
	}
	if cfg.Amplification == 0 {
		return nil, fmt.Errorf("%w: amplification must be positive", ErrConfiguration)
	}
	if cfg.FeeRate >= FeeDenominator {
		return nil, fmt.Errorf("%w: fee rate %d must be below %d", ErrConfiguration, cfg.FeeRate, uint64(FeeDenominator))
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("%w: negative iteration cap", ErrConfiguration)
	}

	out := make([]math.Int, n)
	if len(cfg.Prices) == 0 {
		for k := range out {
			out[k] = pricePrecision
		}
		return out, nil
	}
	if len(cfg.Prices) != n {
		return nil, fmt.Errorf("%w: %d prices for %d tokens", ErrConfiguration, len(cfg.Prices), n)
	}
	for k, p := range cfg.Prices {
		if !p.Int().IsPositive() {
			return nil, fmt.Errorf("%w: price %d must be positive", ErrConfiguration, k)
		}
		out[k] = p.Int()
	}
	return out, nil
}

func newPool(cfg Config, prices, balances []math.Int, supply math.Int) (*Pool, error) {
	if err := checkBalances(balances, supply); err != nil {
		return nil, err
	}

	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		amp:      cfg.Amplification,
		fee:      cfg.FeeRate,
		prices:   prices,
		balances: balances,
		supply:   supply,
		curve:    newCurve(cfg.Amplification, len(balances), maxIter),
		strict:   cfg.StrictConvergence,
		logger:   logger,
	}, nil
}

func checkBalances(balances []math.Int, supply math.Int) error {
	for k, b := range balances {
		if b.IsNegative() {
			return fmt.Errorf("%w: negative balance %s at %d", ErrConfiguration, b, k)
		}
	}
	if supply.IsNegative() {
		return fmt.Errorf("%w: negative total supply %s", ErrConfiguration, supply)
	}
	return nil
}

// N returns the number of tokens.
func (p *Pool) N() int { return len(p.balances) }

func (p *Pool) Amplification() uint64 { return p.amp }

func (p *Pool) FeeRate() FeeRate { return p.fee }

func (p *Pool) MaxIterations() int { return p.curve.maxIter }

func (p *Pool) Prices() []Price {
	out := make([]Price, len(p.prices))
	for k, v := range p.prices {
		out[k] = Price(v)
	}
	return out
}

// Balances returns a copy of the raw balances.
func (p *Pool) Balances() []Amount {
	out := make([]Amount, len(p.balances))
	for k, v := range p.balances {
		out[k] = Amount(v)
	}
	return out
}

func (p *Pool) TotalSupply() Amount { return Amount(p.supply) }

// SetTotalSupply records a mint or burn settled by the caller.
func (p *Pool) SetTotalSupply(supply Amount) error {
	if supply.Int().IsNegative() {
		return fmt.Errorf("%w: negative total supply %s", ErrInvalidAmount, supply)
	}
	p.supply = supply.Int()
	return nil
}

// Clone returns an independent copy of the pool.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.prices = cloneInts(p.prices)
	cp.balances = cloneInts(p.balances)
	return &cp
}

// WithState returns a copy of the pool holding new balances and supply, as
// loaded from the ledger that backs it.
func (p *Pool) WithState(balances []Amount, totalSupply Amount) (*Pool, error) {
	if len(balances) != p.N() {
		return nil, fmt.Errorf("%w: %d balances for %d tokens", ErrConfiguration, len(balances), p.N())
	}
	raw := make([]math.Int, len(balances))
	for k, b := range balances {
		raw[k] = b.Int()
	}
	if err := checkBalances(raw, totalSupply.Int()); err != nil {
		return nil, err
	}
	cp := p.Clone()
	cp.balances = raw
	cp.supply = totalSupply.Int()
	return cp, nil
}

// Xp returns the balances normalized to the 18-decimal unit.
func (p *Pool) Xp() ([]Scaled, error) {
	xp, err := p.xp(p.balances)
	if err != nil {
		return nil, err
	}
	out := make([]Scaled, len(xp))
	for k, v := range xp {
		out[k] = Scaled(v)
	}
	return out, nil
}

func (p *Pool) xp(balances []math.Int) ([]math.Int, error) {
	var c checked
	out := make([]math.Int, len(balances))
	for k, b := range balances {
		out[k] = c.mulDiv(b, p.prices[k], pricePrecision)
	}
	if c.err != nil {
		return nil, fmt.Errorf("normalize balances: %w", c.err)
	}
	return out, nil
}

// Invariant returns D for the current balances.
func (p *Pool) Invariant() (Scaled, error) {
	d, _, err := p.InvariantDiagnostics()
	return d, err
}

// InvariantDiagnostics returns D together with how the solver ended.
func (p *Pool) InvariantDiagnostics() (Scaled, Diagnostics, error) {
	d, diag, err := p.invariantAt(p.balances)
	if err != nil {
		return Scaled{}, diag, err
	}
	if err := p.checkConvergence("invariant", diag); err != nil {
		return Scaled{}, diag, err
	}
	return Scaled(d), diag, nil
}

func (p *Pool) invariantAt(balances []math.Int) (math.Int, Diagnostics, error) {
	xp, err := p.xp(balances)
	if err != nil {
		return math.ZeroInt(), Diagnostics{}, err
	}
	return p.curve.invariant(xp)
}

// VirtualPrice returns D·10^18/total_supply, the value of one LP token in
// normalized units.
func (p *Pool) VirtualPrice() (Price, error) {
	if !p.supply.IsPositive() {
		return Price{}, fmt.Errorf("%w: no liquidity tokens outstanding", ErrEmptyPool)
	}
	d, err := p.Invariant()
	if err != nil {
		return Price{}, err
	}
	var c checked
	v := c.mulDiv(d.Int(), pricePrecision, p.supply)
	if c.err != nil {
		return Price{}, fmt.Errorf("virtual price: %w", c.err)
	}
	return Price(v), nil
}

func (p *Pool) checkIndex(i int) error {
	if i < 0 || i >= p.N() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidIndex, i, p.N())
	}
	return nil
}

func (p *Pool) checkConvergence(op string, diag Diagnostics) error {
	if diag.Converged {
		return nil
	}
	p.logger.Warn("solver hit iteration cap",
		zap.String("op", op),
		zap.Int("iterations", diag.Iterations),
		zap.Int("max_iterations", p.curve.maxIter),
	)
	if p.strict {
		return fmt.Errorf("%w: %s after %d iterations", ErrNonConvergence, op, diag.Iterations)
	}
	return nil
}

// toRaw converts a normalized quantity of token k back to raw units.
func (p *Pool) toRaw(c *checked, k int, v math.Int) math.Int {
	return c.mulDiv(v, pricePrecision, p.prices[k])
}

func (p *Pool) toScaled(c *checked, k int, v math.Int) math.Int {
	return c.mulDiv(v, p.prices[k], pricePrecision)
}
