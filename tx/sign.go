package tx

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Signer signs every input of an unsigned transaction whose inputs carry
// their source outputs.
type Signer interface {
	Sign(sdkTx *transaction.Transaction, key string) error
}

// WIFSigner signs P2PKH inputs with a single WIF encoded key.
type WIFSigner struct{}

// Sign attaches a P2PKH unlocker for key to each input and signs. Every
// input must be locked to the key's P2PKH script.
func (WIFSigner) Sign(sdkTx *transaction.Transaction, key string) error {
	if sdkTx == nil {
		return fmt.Errorf("%w: transaction", ErrNilParam)
	}
	priv, err := ec.PrivateKeyFromWif(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	own, err := BuildP2PKHScript(priv.PubKey())
	if err != nil {
		return err
	}
	for i, in := range sdkTx.Inputs {
		src := in.SourceTxOutput()
		if src == nil || src.LockingScript == nil {
			return fmt.Errorf("%w: input %d has no source output", ErrNilParam, i)
		}
		if !bytes.Equal(*src.LockingScript, own) {
			return fmt.Errorf("%w: input %d is not locked to the signing key", ErrKeyMismatch, i)
		}
	}
	unlocker, err := p2pkh.Unlock(priv, nil)
	if err != nil {
		return fmt.Errorf("create unlocker: %w", err)
	}
	for _, in := range sdkTx.Inputs {
		in.UnlockingScriptTemplate = unlocker
	}
	return sdkTx.Sign()
}

// Transaction encodes a balanced plan as an unsigned go-sdk transaction.
// Inputs carry their source outputs so the result can be signed directly.
func (p *Plan) Transaction() (*transaction.Transaction, error) {
	if p.state != StateBalanced {
		return nil, fmt.Errorf("%w: encode requires %s, plan is %s", ErrInvalidTransition, StateBalanced, p.state)
	}

	sdkTx := transaction.NewTransaction()
	for i, in := range p.Inputs {
		hash, err := chainhash.NewHashFromHex(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d txid: %w", ErrScriptBuild, i, err)
		}
		input := &transaction.TransactionInput{
			SourceTXID:       hash,
			SourceTxOutIndex: in.Vout,
			SequenceNumber:   transaction.DefaultSequenceNumber,
		}
		input.SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      in.Value,
			LockingScript: script.NewFromBytes(in.Script),
		})
		sdkTx.AddInput(input)
	}

	for i, o := range p.Outputs {
		lock, err := outputScript(o)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		sdkTx.AddOutput(&transaction.TransactionOutput{
			Satoshis:      o.Value(),
			LockingScript: lock,
		})
	}
	return sdkTx, nil
}

func outputScript(o Output) (*script.Script, error) {
	switch v := o.(type) {
	case PaymentOutput:
		return LockingScript(v.Address)
	case ChangeOutput:
		return LockingScript(v.Address)
	case DataOutput:
		if len(v.Script) == 0 {
			return nil, fmt.Errorf("%w: empty data script", ErrScriptBuild)
		}
		return script.NewFromBytes(v.Script), nil
	default:
		return nil, fmt.Errorf("%w: unknown output %T", ErrInvalidParams, o)
	}
}

// Sign encodes the balanced plan, signs it with key and records the signed
// hex and txid. Any failure rejects the plan; signing is never retried.
func (p *Plan) Sign(signer Signer, key string) error {
	if signer == nil {
		return fmt.Errorf("%w: signer", ErrNilParam)
	}
	sdkTx, err := p.Transaction()
	if err != nil {
		return p.Reject(err)
	}
	if err := signer.Sign(sdkTx, key); err != nil {
		return p.Reject(fmt.Errorf("%w: %w", ErrSigningFailed, err))
	}
	return p.Signed(sdkTx.Hex(), sdkTx.TxID().String())
}
