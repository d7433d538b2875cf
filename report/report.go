// Package report packages signed transactions and their fee accounting for
// callers and the command line.
package report

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/bitfsorg/libtxbuild-go/tx"
)

// Input describes one spent unit.
type Input struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Value    uint64 `json:"value"`
	Category string `json:"category"`
}

// Output describes one created output in transaction order.
type Output struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"` // payment, data or change
	Purpose string `json:"purpose,omitempty"`
	Address string `json:"address,omitempty"`
	Value   uint64 `json:"value"`
	Script  string `json:"script,omitempty"` // hex, data outputs only
}

// Metadata is protocol specific detail attached to a Result.
type Metadata interface {
	Protocol() string
}

// InscriptionMeta identifies an inscribed artifact.
type InscriptionMeta struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// OverlayMeta records an overlay transfer or issuance.
type OverlayMeta struct {
	Op          string `json:"op"`
	Asset       string `json:"asset"`
	Quantity    uint64 `json:"quantity"`
	Memo        string `json:"memo,omitempty"`
	Description string `json:"description,omitempty"`
	Sender      string `json:"sender"`
	Destination string `json:"destination,omitempty"`
}

// TokenMeta records a fungible token transfer.
type TokenMeta struct {
	Symbol      string `json:"symbol"`
	AssetID     string `json:"asset_id"`
	Amount      uint64 `json:"amount"`
	Remaining   uint64 `json:"remaining,omitempty"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient,omitempty"`
	Destination string `json:"destination"`
}

func (InscriptionMeta) Protocol() string { return "inscription" }
func (OverlayMeta) Protocol() string     { return "overlay" }
func (TokenMeta) Protocol() string       { return "token" }

// InscriptionID returns the identifier of the artifact inscribed in output
// vout of txid.
func InscriptionID(txid string, vout int) string {
	return fmt.Sprintf("%si%d", txid, vout)
}

// Result is a signed UTXO transaction ready to broadcast.
type Result struct {
	RawTx       string   `json:"raw_tx"`
	TxID        string   `json:"txid"`
	MinerFee    uint64   `json:"miner_fee"`
	ProtocolFee uint64   `json:"protocol_fee"`
	TotalFee    uint64   `json:"total_fee"`
	FeeRate     uint64   `json:"fee_rate"`
	Inputs      []Input  `json:"inputs"`
	Outputs     []Output `json:"outputs"`
	Protocol    string   `json:"protocol"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// FromPlan builds a Result from a signed plan. The protocol fee is the sum
// of the protocol fee outputs actually present; a waived fee reports zero.
func FromPlan(p *tx.Plan, meta Metadata) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: plan", ErrNilParam)
	}
	if p.State() != tx.StateSigned && p.State() != tx.StateSubmitted {
		return nil, fmt.Errorf("%w: plan is %s", ErrNotSigned, p.State())
	}
	if err := p.Balance(); err != nil {
		return nil, err
	}

	r := &Result{
		RawTx:    p.RawTx,
		TxID:     p.TxID,
		MinerFee: p.Fee,
		FeeRate:  p.FeeRate,
		Protocol: "native",
		Metadata: meta,
		Inputs:   make([]Input, len(p.Inputs)),
		Outputs:  make([]Output, len(p.Outputs)),
	}
	if meta != nil {
		r.Protocol = meta.Protocol()
	}

	for i, in := range p.Inputs {
		r.Inputs[i] = Input{TxID: in.TxID, Vout: in.Vout, Value: in.Value, Category: in.Category.String()}
	}
	for i, o := range p.Outputs {
		out := Output{Index: i, Value: o.Value()}
		switch v := o.(type) {
		case tx.PaymentOutput:
			out.Kind = "payment"
			out.Purpose = v.Purpose.String()
			out.Address = v.Address
			if v.Purpose == tx.PurposeProtocolFee {
				r.ProtocolFee += v.Amount
			}
		case tx.DataOutput:
			out.Kind = "data"
			out.Script = hex.EncodeToString(v.Script)
		case tx.ChangeOutput:
			out.Kind = "change"
			out.Address = v.Address
		}
		r.Outputs[i] = out
	}
	r.TotalFee = r.MinerFee + r.ProtocolFee
	return r, nil
}

// SignedTx is one signed account-model transaction.
type SignedTx struct {
	RawTx                string   `json:"raw_tx"`
	Hash                 string   `json:"hash"`
	From                 string   `json:"from"`
	To                   string   `json:"to"`
	Nonce                uint64   `json:"nonce"`
	Value                *big.Int `json:"value"`
	Gas                  uint64   `json:"gas"`
	MaxFeePerGas         *big.Int `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *big.Int `json:"max_priority_fee_per_gas"`
}

// GasCost returns Gas * MaxFeePerGas, the most the transaction can burn.
func (s *SignedTx) GasCost() *big.Int {
	if s == nil || s.MaxFeePerGas == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(s.Gas), s.MaxFeePerGas)
}

// PairResult is a primary account-model transaction and its optional
// protocol fee transaction. Fee is nil when the fee was waived.
type PairResult struct {
	Kind        string    `json:"kind"`
	Primary     *SignedTx `json:"primary"`
	Fee         *SignedTx `json:"fee,omitempty"`
	GasCost     *big.Int  `json:"gas_cost"`
	ProtocolFee *big.Int  `json:"protocol_fee"`
	TotalFee    *big.Int  `json:"total_fee"`
}

// NewPairResult totals the worst case gas cost of both legs and the
// protocol fee carried by the fee leg.
func NewPairResult(kind string, primary, feeLeg *SignedTx) (*PairResult, error) {
	if primary == nil {
		return nil, fmt.Errorf("%w: primary transaction", ErrNilParam)
	}
	gas := primary.GasCost()
	protocolFee := new(big.Int)
	if feeLeg != nil {
		if feeLeg.Nonce != primary.Nonce+1 {
			return nil, fmt.Errorf("%w: fee nonce %d does not follow primary nonce %d",
				ErrNonceGap, feeLeg.Nonce, primary.Nonce)
		}
		gas.Add(gas, feeLeg.GasCost())
		if feeLeg.Value != nil {
			protocolFee.Set(feeLeg.Value)
		}
	}
	return &PairResult{
		Kind:        kind,
		Primary:     primary,
		Fee:         feeLeg,
		GasCost:     gas,
		ProtocolFee: protocolFee,
		TotalFee:    new(big.Int).Add(gas, protocolFee),
	}, nil
}
