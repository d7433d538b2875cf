// Package evm builds fee-paired transactions for account-model chains.
//
// Each transfer produces a primary transaction and, when a protocol fee is
// due, a second plain transfer to the fee collector at the next nonce. Both
// are priced from one Snapshot and signed before anything is sent.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/libtxbuild-go/fee"
	"github.com/bitfsorg/libtxbuild-go/report"
)

// Transfer kinds reported in PairResult.Kind.
const (
	KindNative  = "native"
	KindERC20   = "erc20"
	KindERC721  = "erc721"
	KindERC1155 = "erc1155"
)

// Config wires a Builder. Client, ChainID and Fees are required.
type Config struct {
	Client  Client
	ChainID *big.Int
	Fees    *fee.Policy
	Signer  Signer
	Logger  *logrus.Logger
}

// Builder builds and submits fee-paired transactions. It is safe for
// concurrent use.
type Builder struct {
	client    Client
	chainID   *big.Int
	fees      *fee.Policy
	collector common.Address
	signer    Signer
	log       *logrus.Entry
}

// New returns a Builder for cfg.
func New(cfg Config) (*Builder, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: client", ErrNilParam)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id", ErrValidation)
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("%w: fee policy", ErrNilParam)
	}
	if !ValidAddress(cfg.Fees.Collector()) {
		return nil, fmt.Errorf("%w: collector %q", ErrValidation, cfg.Fees.Collector())
	}
	if cfg.Signer == nil {
		cfg.Signer = KeySigner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Builder{
		client:    cfg.Client,
		chainID:   new(big.Int).Set(cfg.ChainID),
		fees:      cfg.Fees,
		collector: common.HexToAddress(cfg.Fees.Collector()),
		signer:    cfg.Signer,
		log:       cfg.Logger.WithFields(logrus.Fields{"pkg": "evm", "chainID": cfg.ChainID.String()}),
	}, nil
}

// NewFeePolicy returns a protocol fee policy denominated in wei.
func NewFeePolicy(percentage float64, flatWei *big.Int, collector string) (*fee.Policy, error) {
	return fee.NewPolicy(fee.Schedule{
		Percentage: percentage,
		Flat:       flatWei,
		Collector:  collector,
	}, ValidAddress)
}

// request is one validated transfer ready to be priced.
type request struct {
	kind     string
	from     common.Address
	to       common.Address // contract for token kinds
	value    *big.Int
	data     []byte
	decision fee.Decision
	opts     Options
}

func parseParties(from, to string) (common.Address, common.Address, error) {
	if !ValidAddress(from) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: sender %q", ErrValidation, from)
	}
	if !ValidAddress(to) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: recipient %q", ErrValidation, to)
	}
	return common.HexToAddress(from), common.HexToAddress(to), nil
}

func positive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrValidation, name)
	}
	return nil
}

// NativeTransfer sends value wei to to. The percentage fee is deducted from
// value: the recipient gets value - fee and the collector gets fee.
func (b *Builder) NativeTransfer(ctx context.Context, from, to string, value *big.Int, key string, opts Options) (*report.PairResult, error) {
	sender, recipient, err := parseParties(from, to)
	if err != nil {
		return nil, err
	}
	if err := positive("value", value); err != nil {
		return nil, err
	}
	decision := b.fees.Percentage(value)
	return b.run(ctx, key, request{
		kind:     KindNative,
		from:     sender,
		to:       recipient,
		value:    new(big.Int).Sub(value, decision.Charged()),
		decision: decision,
		opts:     opts,
	})
}

// ERC20Transfer sends amount of token to to. The flat fee applies.
func (b *Builder) ERC20Transfer(ctx context.Context, from, to, token string, amount *big.Int, key string, opts Options) (*report.PairResult, error) {
	sender, recipient, err := parseParties(from, to)
	if err != nil {
		return nil, err
	}
	if !ValidAddress(token) {
		return nil, fmt.Errorf("%w: token %q", ErrValidation, token)
	}
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	data, err := ERC20TransferData(recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: calldata: %w", ErrValidation, err)
	}
	return b.run(ctx, key, request{
		kind:     KindERC20,
		from:     sender,
		to:       common.HexToAddress(token),
		data:     data,
		decision: b.fees.Flat(),
		opts:     opts,
	})
}

// ERC721Transfer moves tokenID of contract to to. The flat fee applies.
func (b *Builder) ERC721Transfer(ctx context.Context, from, to, contract string, tokenID *big.Int, key string, opts NFTOptions) (*report.PairResult, error) {
	sender, recipient, err := parseParties(from, to)
	if err != nil {
		return nil, err
	}
	if !ValidAddress(contract) {
		return nil, fmt.Errorf("%w: contract %q", ErrValidation, contract)
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id", ErrValidation)
	}
	data, err := ERC721TransferData(sender, recipient, tokenID, opts.Safe)
	if err != nil {
		return nil, fmt.Errorf("%w: calldata: %w", ErrValidation, err)
	}
	return b.run(ctx, key, request{
		kind:     KindERC721,
		from:     sender,
		to:       common.HexToAddress(contract),
		data:     data,
		decision: b.fees.Flat(),
		opts:     opts.Options,
	})
}

// ERC1155Transfer moves amount of token id of contract to to. The flat fee
// applies.
func (b *Builder) ERC1155Transfer(ctx context.Context, from, to, contract string, id, amount *big.Int, key string, opts NFTOptions) (*report.PairResult, error) {
	sender, recipient, err := parseParties(from, to)
	if err != nil {
		return nil, err
	}
	if !ValidAddress(contract) {
		return nil, fmt.Errorf("%w: contract %q", ErrValidation, contract)
	}
	if id == nil || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id", ErrValidation)
	}
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	data, err := ERC1155TransferData(sender, recipient, id, amount, opts.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: calldata: %w", ErrValidation, err)
	}
	return b.run(ctx, key, request{
		kind:     KindERC1155,
		from:     sender,
		to:       common.HexToAddress(contract),
		data:     data,
		decision: b.fees.Flat(),
		opts:     opts.Options,
	})
}

// run fetches one snapshot, builds the pair and signs both legs.
func (b *Builder) run(ctx context.Context, key string, r request) (*report.PairResult, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: signing key", ErrValidation)
	}
	log := b.log.WithFields(logrus.Fields{"kind": r.kind, "from": r.from.Hex()})

	snap, err := FetchSnapshot(ctx, b.client, r.from)
	if err != nil {
		return nil, err
	}

	gas := r.opts.GasLimit
	if gas == 0 {
		gas = TransferGas
		if len(r.data) > 0 {
			to := r.to
			gas, err = b.client.EstimateGas(ctx, ethereum.CallMsg{From: r.from, To: &to, Data: r.data})
			if err != nil {
				return nil, fmt.Errorf("%w: estimate gas: %w", ErrNetwork, err)
			}
		}
	}

	var feeAmount *big.Int
	if r.decision.Required {
		feeAmount = r.decision.Amount
	}
	value := r.value
	if value == nil {
		value = new(big.Int)
	}
	pair, err := NewPair(snap, Fields{From: r.from, To: r.to, Value: value, Data: r.data, Gas: gas}, r.opts, b.collector, feeAmount)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"nonce":   snap.Nonce,
		"gas":     gas,
		"maxFee":  pair.Primary.GasFeeCap.String(),
		"feeLeg":  pair.Fee != nil,
		"gasCost": pair.GasCost().String(),
	}).Debug("pair priced")

	primary, err := sign(b.signer, pair.Primary, b.chainID, key)
	if err != nil {
		return nil, err
	}
	var feeLeg *report.SignedTx
	if pair.Fee != nil {
		if feeLeg, err = sign(b.signer, *pair.Fee, b.chainID, key); err != nil {
			return nil, err
		}
	}

	res, err := report.NewPairResult(r.kind, primary, feeLeg)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"hash":        primary.Hash,
		"protocolFee": res.ProtocolFee.String(),
	}).Info("transaction pair built")
	return res, nil
}

// Submission holds the hashes returned by SubmitPair. Fee is empty when
// the pair had no fee leg.
type Submission struct {
	Primary string `json:"primary"`
	Fee     string `json:"fee,omitempty"`
}

// SubmitPair sends the primary transaction and then the fee leg. The fee
// leg is never sent if the primary fails.
func (b *Builder) SubmitPair(ctx context.Context, res *report.PairResult) (*Submission, error) {
	if res == nil || res.Primary == nil {
		return nil, fmt.Errorf("%w: pair result", ErrNilParam)
	}
	primary, err := decodeSigned(res.Primary.RawTx)
	if err != nil {
		return nil, err
	}
	var feeTx *types.Transaction
	if res.Fee != nil {
		if feeTx, err = decodeSigned(res.Fee.RawTx); err != nil {
			return nil, err
		}
	}

	if err := b.client.SendTransaction(ctx, primary); err != nil {
		return nil, fmt.Errorf("%w: primary: %w", ErrBroadcast, err)
	}
	sub := &Submission{Primary: primary.Hash().Hex()}
	log := b.log.WithFields(logrus.Fields{"kind": res.Kind, "hash": sub.Primary})
	log.Info("primary transaction submitted")

	if feeTx == nil {
		return sub, nil
	}
	if err := b.client.SendTransaction(ctx, feeTx); err != nil {
		log.WithError(err).Error("fee transaction rejected after primary was sent")
		return sub, fmt.Errorf("%w: fee leg: %w", ErrBroadcast, err)
	}
	sub.Fee = feeTx.Hash().Hex()
	log.WithField("feeHash", sub.Fee).Info("fee transaction submitted")
	return sub, nil
}
