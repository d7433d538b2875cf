package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitfsorg/libtxbuild-go/report"
)

// TransferGas is the gas used by a plain value transfer.
const TransferGas = uint64(21000)

// Options override the fetched gas limit and fee caps. Zero values use
// the snapshot or the estimate.
type Options struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// NFTOptions extends Options for ERC-721 and ERC-1155 transfers.
type NFTOptions struct {
	Options
	Safe bool   // ERC-721: use safeTransferFrom
	Data []byte // ERC-1155: data argument
}

// Fields is one unsigned dynamic fee transaction.
type Fields struct {
	From      common.Address
	To        common.Address
	Value     *big.Int
	Data      []byte
	Nonce     uint64
	Gas       uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// Cost returns Gas * GasFeeCap.
func (f Fields) Cost() *big.Int { return GasCost(f.Gas, f.GasFeeCap) }

// Tx returns the unsigned transaction for chainID.
func (f Fields) Tx(chainID *big.Int) *types.Transaction {
	to := f.To
	value := f.Value
	if value == nil {
		value = new(big.Int)
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     f.Nonce,
		GasTipCap: f.GasTipCap,
		GasFeeCap: f.GasFeeCap,
		Gas:       f.Gas,
		To:        &to,
		Value:     value,
		Data:      f.Data,
	})
}

// Pair is a primary transaction and its protocol fee transaction. Fee is
// nil when the fee is waived; otherwise it follows Primary by one nonce and
// shares its fee caps.
type Pair struct {
	Primary Fields
	Fee     *Fields
}

// price resolves the fee caps from opts and the snapshot.
func price(snap *Snapshot, opts Options) (tip, feeCap *big.Int, err error) {
	tip = snap.TipCap
	if opts.MaxPriorityFeePerGas != nil {
		tip = opts.MaxPriorityFeePerGas
	}
	feeCap = snap.MaxFeePerGas
	if opts.MaxFeePerGas != nil {
		feeCap = opts.MaxFeePerGas
	}
	if tip.Sign() < 0 || feeCap.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: negative fee cap", ErrValidation)
	}
	if tip.Cmp(feeCap) > 0 {
		return nil, nil, fmt.Errorf("%w: priority fee %s exceeds max fee %s", ErrValidation, tip, feeCap)
	}
	return new(big.Int).Set(tip), new(big.Int).Set(feeCap), nil
}

// NewPair prices primary from snap and attaches a fee leg paying feeAmount
// to collector when feeAmount is non-nil. Primary's To, Value, Data and Gas
// must already be set.
func NewPair(snap *Snapshot, primary Fields, opts Options, collector common.Address, feeAmount *big.Int) (Pair, error) {
	if snap == nil {
		return Pair{}, fmt.Errorf("%w: snapshot", ErrNilParam)
	}
	tip, feeCap, err := price(snap, opts)
	if err != nil {
		return Pair{}, err
	}
	primary.Nonce = snap.Nonce
	primary.GasTipCap = tip
	primary.GasFeeCap = feeCap

	p := Pair{Primary: primary}
	if feeAmount != nil {
		p.Fee = &Fields{
			From:      primary.From,
			To:        collector,
			Value:     new(big.Int).Set(feeAmount),
			Nonce:     snap.Nonce + 1,
			Gas:       TransferGas,
			GasTipCap: new(big.Int).Set(tip),
			GasFeeCap: new(big.Int).Set(feeCap),
		}
	}
	return p, nil
}

// GasCost returns the combined worst case gas cost of both legs.
func (p Pair) GasCost() *big.Int {
	cost := p.Primary.Cost()
	if p.Fee != nil {
		cost.Add(cost, p.Fee.Cost())
	}
	return cost
}

// Signer signs an unsigned transaction with key.
type Signer interface {
	SignTx(tx *types.Transaction, chainID *big.Int, key string) (*types.Transaction, error)
}

// KeySigner signs with a hex encoded secp256k1 private key.
type KeySigner struct{}

// SignTx signs tx with the latest signer for chainID.
func (KeySigner) SignTx(tx *types.Transaction, chainID *big.Int, key string) (*types.Transaction, error) {
	priv, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), priv)
}

func parseKey(key string) (*ecdsa.PrivateKey, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %w", ErrValidation, err)
	}
	return priv, nil
}

// ValidKey reports whether key is a hex encoded private key.
func ValidKey(key string) bool {
	_, err := parseKey(key)
	return err == nil
}

// ValidAddress reports whether s is a hex account address.
func ValidAddress(s string) bool { return common.IsHexAddress(s) }

// sign signs f and checks that the signature recovers to f.From.
func sign(s Signer, f Fields, chainID *big.Int, key string) (*report.SignedTx, error) {
	signed, err := s.SignTx(f.Tx(chainID), chainID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("%w: recover sender: %w", ErrSigningFailed, err)
	}
	if sender != f.From {
		return nil, fmt.Errorf("%w: key controls %s, not %s", ErrSigningFailed, sender.Hex(), f.From.Hex())
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrSigningFailed, err)
	}
	return &report.SignedTx{
		RawTx:                hexutil.Encode(raw),
		Hash:                 signed.Hash().Hex(),
		From:                 f.From.Hex(),
		To:                   f.To.Hex(),
		Nonce:                signed.Nonce(),
		Value:                signed.Value(),
		Gas:                  signed.Gas(),
		MaxFeePerGas:         signed.GasFeeCap(),
		MaxPriorityFeePerGas: signed.GasTipCap(),
	}, nil
}

// decodeSigned parses a raw signed transaction.
func decodeSigned(raw string) (*types.Transaction, error) {
	data, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: raw transaction: %w", ErrValidation, err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: raw transaction: %w", ErrValidation, err)
	}
	return tx, nil
}
