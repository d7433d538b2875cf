// Package fee evaluates the protocol fee charged on top of a transfer.
//
// A Policy is built once from a Schedule and is read-only afterwards, so a
// single Policy may be shared by concurrent builders. Amounts are computed
// with exact decimal arithmetic and always rounded down.
package fee

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Mode selects how the protocol fee is derived for a transfer kind.
type Mode int

const (
	// ModePercentage charges floor(value * Percentage / 100).
	ModePercentage Mode = iota
	// ModeFlat charges the configured flat amount regardless of value.
	ModeFlat
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePercentage:
		return "percentage"
	case ModeFlat:
		return "flat"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Schedule is the configured protocol fee.
type Schedule struct {
	Percentage float64  // in [0,100]
	Flat       *big.Int // smallest chain unit (satoshi or wei); nil means zero
	Collector  string   // destination receiving the fee

	// MinEnforceable is the smallest fee that is attached as an output or
	// paired transfer. Below it the fee is waived. Nil means 1.
	MinEnforceable *big.Int
}

// Decision is the evaluated fee for one transfer.
type Decision struct {
	Amount   *big.Int
	Required bool // Amount >= MinEnforceable
}

// Sats returns the amount as satoshis. Amounts that do not fit in a uint64
// are reported as zero; NewPolicy callers on the UTXO chain bound Flat.
func (d Decision) Sats() uint64 {
	if d.Amount == nil || !d.Amount.IsUint64() {
		return 0
	}
	return d.Amount.Uint64()
}

// Charged returns the amount actually collected: Amount when Required,
// zero otherwise.
func (d Decision) Charged() *big.Int {
	if !d.Required || d.Amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.Amount)
}

// Policy evaluates a validated Schedule.
type Policy struct {
	rate      decimal.Decimal
	flat      *big.Int
	collector string
	minimum   *big.Int
	schedule  Schedule
}

// NewPolicy validates the schedule and returns an immutable Policy. The
// validator checks the collector address for the chain the policy serves.
func NewPolicy(s Schedule, validDestination func(string) bool) (*Policy, error) {
	if validDestination == nil {
		return nil, ErrNilValidator
	}
	if math.IsNaN(s.Percentage) || math.IsInf(s.Percentage, 0) || s.Percentage < 0 || s.Percentage > 100 {
		return nil, fmt.Errorf("%w: percentage %v outside [0,100]", ErrInvalidFeeConfig, s.Percentage)
	}
	flat := new(big.Int)
	if s.Flat != nil {
		if s.Flat.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative flat fee %s", ErrInvalidFeeConfig, s.Flat)
		}
		flat.Set(s.Flat)
	}
	if !validDestination(s.Collector) {
		return nil, fmt.Errorf("%w: collector address %q", ErrInvalidFeeConfig, s.Collector)
	}
	minimum := big.NewInt(1)
	if s.MinEnforceable != nil {
		if s.MinEnforceable.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative minimum %s", ErrInvalidFeeConfig, s.MinEnforceable)
		}
		minimum = new(big.Int).Set(s.MinEnforceable)
	}

	stored := s
	stored.Flat = new(big.Int).Set(flat)
	stored.MinEnforceable = new(big.Int).Set(minimum)

	return &Policy{
		// NewFromFloat keeps the shortest decimal form, so 0.5 is exactly 0.5.
		rate:      decimal.NewFromFloat(s.Percentage),
		flat:      flat,
		collector: s.Collector,
		minimum:   minimum,
		schedule:  stored,
	}, nil
}

// Collector returns the fee destination.
func (p *Policy) Collector() string { return p.collector }

// Schedule returns a copy of the validated schedule.
func (p *Policy) Schedule() Schedule {
	s := p.schedule
	s.Flat = new(big.Int).Set(p.flat)
	s.MinEnforceable = new(big.Int).Set(p.minimum)
	return s
}

// Percentage returns floor(value * rate / 100). Negative or nil values
// evaluate to a zero fee.
func (p *Policy) Percentage(value *big.Int) Decision {
	if value == nil || value.Sign() <= 0 {
		return p.decide(new(big.Int))
	}
	amount := decimal.NewFromBigInt(value, 0).Mul(p.rate).Shift(-2).Floor().BigInt()
	return p.decide(amount)
}

// Flat returns the configured flat fee.
func (p *Policy) Flat() Decision {
	return p.decide(new(big.Int).Set(p.flat))
}

// Evaluate dispatches on mode.
func (p *Policy) Evaluate(mode Mode, value *big.Int) Decision {
	if mode == ModeFlat {
		return p.Flat()
	}
	return p.Percentage(value)
}

// EvaluateSats is Evaluate for satoshi denominated values.
func (p *Policy) EvaluateSats(mode Mode, value uint64) Decision {
	return p.Evaluate(mode, new(big.Int).SetUint64(value))
}

func (p *Policy) decide(amount *big.Int) Decision {
	return Decision{
		Amount:   amount,
		Required: amount.Sign() > 0 && amount.Cmp(p.minimum) >= 0,
	}
}
