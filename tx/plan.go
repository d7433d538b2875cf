package tx

import (
	"fmt"

	"github.com/bitfsorg/libtxbuild-go/utxo"
)

// State is a Plan's position in the build pipeline.
type State int

const (
	StateValidating State = iota
	StateFunding
	StateComposing
	StateBalanced
	StateSigned
	StateSubmitted
	StateRejected
)

var stateNames = [...]string{"validating", "funding", "composing", "balanced", "signed", "submitted", "rejected"}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// next lists the single forward transition out of each state.
var next = map[State]State{
	StateValidating: StateFunding,
	StateFunding:    StateComposing,
	StateComposing:  StateBalanced,
	StateBalanced:   StateSigned,
	StateSigned:     StateSubmitted,
}

// Plan is a UTXO transaction moving through
//
//	Validating -> Funding -> Composing -> Balanced -> Signed -> Submitted
//
// Any non-terminal state may move to Rejected. Once Balanced the plan
// satisfies sum(inputs) == sum(outputs) + Fee.
type Plan struct {
	Inputs  []utxo.Unit
	Outputs []Output
	Fee     uint64 // miner fee, including any folded remainder
	Change  uint64 // zero or >= DustLimit
	FeeRate uint64 // sat/byte

	// Populated once signed.
	RawTx string
	TxID  string

	state  State
	reason error
}

// NewPlan starts a plan in the Validating state.
func NewPlan(feeRate uint64) *Plan {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	return &Plan{FeeRate: feeRate, state: StateValidating}
}

// State returns the current state.
func (p *Plan) State() State { return p.state }

// Err returns the rejection reason, or nil if the plan was not rejected.
func (p *Plan) Err() error { return p.reason }

func (p *Plan) expect(s State) error {
	if p.state != s {
		return fmt.Errorf("%w: expected %s, plan is %s", ErrInvalidTransition, s, p.state)
	}
	return nil
}

func (p *Plan) advance(from State) error {
	if err := p.expect(from); err != nil {
		return err
	}
	p.state = next[from]
	return nil
}

// Reject moves the plan to Rejected and returns reason. The first reason
// is kept; terminal plans are left untouched.
func (p *Plan) Reject(reason error) error {
	if p.state == StateRejected || p.state == StateSubmitted {
		return reason
	}
	p.state = StateRejected
	p.reason = reason
	return reason
}

// Validated marks request validation complete.
func (p *Plan) Validated() error { return p.advance(StateValidating) }

// Fund records the selected inputs in order.
func (p *Plan) Fund(inputs []utxo.Unit) error {
	if err := p.expect(StateFunding); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return p.Reject(fmt.Errorf("%w: no inputs", utxo.ErrNoSpendableUnits))
	}
	p.Inputs = append([]utxo.Unit(nil), inputs...)
	return p.advance(StateFunding)
}

// Composition is the fixed part of a plan's outputs. Change is derived.
type Composition struct {
	Primary     Output         // payment or data output
	ProtocolFee *PaymentOutput // nil when the fee is waived
	Auxiliary   []Output       // asset markers, in order
	ChangeTo    string         // change address; empty disables change
	MinFee      uint64         // floor on the miner fee
}

// Fixed returns the non-change outputs in canonical order.
func (c Composition) Fixed() []Output {
	outs := []Output{c.Primary}
	if c.ProtocolFee != nil {
		outs = append(outs, *c.ProtocolFee)
	}
	return append(outs, c.Auxiliary...)
}

// MinerFee estimates the miner fee for inputs inputs and the fixed
// outputs, plus extra plain outputs, floored at MinFee.
func (c Composition) MinerFee(inputs, extra int, feeRate uint64) uint64 {
	size := EstimateOutputsSize(inputs, c.Fixed()) + extra*OutputSize
	fee := EstimateFee(size, feeRate)
	if fee < c.MinFee {
		return c.MinFee
	}
	return fee
}

// Compose lays out outputs, settles the fee and balances the plan.
//
// The fee is first estimated for the fixed outputs. If the remainder could
// reach the dust limit, it is estimated once more with a change output
// included; change is added only if it still reaches the dust limit.
// Otherwise the remainder is added to the fee.
func (p *Plan) Compose(c Composition) error {
	if err := p.expect(StateComposing); err != nil {
		return err
	}
	if c.Primary == nil {
		return p.Reject(fmt.Errorf("%w: missing primary output", ErrNilParam))
	}

	fixed := c.Fixed()
	in := utxo.Total(p.Inputs)
	spent := SumOutputs(fixed)

	fee := c.MinerFee(len(p.Inputs), 0, p.FeeRate)
	if in < spent+fee {
		return p.Reject(fmt.Errorf("%w: inputs %d sat, outputs %d sat, fee %d sat",
			utxo.ErrInsufficientFunds, in, spent, fee))
	}

	var change uint64
	if c.ChangeTo != "" && in-spent-fee >= DustLimit {
		withChange := c.MinerFee(len(p.Inputs), 1, p.FeeRate)
		if in-spent >= withChange && in-spent-withChange >= DustLimit {
			change = in - spent - withChange
		}
	}

	outputs := fixed
	if change > 0 {
		outputs = append(outputs, ChangeOutput{Address: c.ChangeTo, Amount: change})
	}
	if err := checkDust(outputs); err != nil {
		return p.Reject(err)
	}

	p.Outputs = outputs
	p.Change = change
	p.Fee = in - spent - change

	if err := p.Balance(); err != nil {
		return p.Reject(err)
	}
	return p.advance(StateComposing)
}

// Balance verifies sum(inputs) == sum(outputs) + Fee.
func (p *Plan) Balance() error {
	in := utxo.Total(p.Inputs)
	out := SumOutputs(p.Outputs)
	if in != out+p.Fee {
		return fmt.Errorf("%w: inputs %d != outputs %d + fee %d", ErrUnbalanced, in, out, p.Fee)
	}
	return nil
}

// Signed records the signed encoding.
func (p *Plan) Signed(rawHex, txid string) error {
	if err := p.advance(StateBalanced); err != nil {
		return err
	}
	p.RawTx = rawHex
	p.TxID = txid
	return nil
}

// Submitted records a successful broadcast.
func (p *Plan) Submitted() error { return p.advance(StateSigned) }
