package tx

import "fmt"

// Purpose labels why a payment output exists.
type Purpose int

const (
	// PurposePayment is the primary transfer to the recipient.
	PurposePayment Purpose = iota
	// PurposeProtocolFee pays the protocol fee collector.
	PurposeProtocolFee
	// PurposeAssetMarker is a dust output that receives a token or overlay balance.
	PurposeAssetMarker
	// PurposeAssetChange is a dust output returning unspent token balance to the sender.
	PurposeAssetChange
)

// String returns the purpose name.
func (p Purpose) String() string {
	switch p {
	case PurposePayment:
		return "payment"
	case PurposeProtocolFee:
		return "protocol_fee"
	case PurposeAssetMarker:
		return "asset_marker"
	case PurposeAssetChange:
		return "asset_change"
	default:
		return fmt.Sprintf("Purpose(%d)", int(p))
	}
}

// Output is one of PaymentOutput, DataOutput or ChangeOutput.
type Output interface {
	Value() uint64
	isOutput()
}

// PaymentOutput pays Amount to a P2PKH address.
type PaymentOutput struct {
	Address string
	Amount  uint64
	Purpose Purpose
}

// DataOutput carries a protocol envelope. Amount is zero for OP_RETURN
// carriers and the dust limit for spendable envelopes.
type DataOutput struct {
	Script      []byte
	Amount      uint64
	PayloadSize int // envelope data bytes, used for size estimation
}

// ChangeOutput returns the remainder to the sender. It is always last.
type ChangeOutput struct {
	Address string
	Amount  uint64
}

func (o PaymentOutput) Value() uint64 { return o.Amount }
func (o DataOutput) Value() uint64    { return o.Amount }
func (o ChangeOutput) Value() uint64  { return o.Amount }

func (PaymentOutput) isOutput() {}
func (DataOutput) isOutput()    {}
func (ChangeOutput) isOutput()  {}

// SumOutputs returns the total value of outputs.
func SumOutputs(outputs []Output) uint64 {
	var sum uint64
	for _, o := range outputs {
		sum += o.Value()
	}
	return sum
}

// checkDust rejects value-bearing outputs under the dust limit.
func checkDust(outputs []Output) error {
	for i, o := range outputs {
		v := o.Value()
		if v > 0 && v < DustLimit {
			return fmt.Errorf("%w: output %d carries %d sat", ErrDustOutput, i, v)
		}
		if v == 0 {
			if _, ok := o.(DataOutput); !ok {
				return fmt.Errorf("%w: output %d carries no value", ErrDustOutput, i)
			}
		}
	}
	return nil
}
