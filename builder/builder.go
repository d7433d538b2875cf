// Package builder assembles, signs and submits UTXO transactions for plain
// transfers, fungible tokens, inscriptions and the asset overlay.
//
// Every entry point runs the same pipeline over a tx.Plan:
//
//	validate -> fee decision -> fee rate -> fetch units -> select -> compose -> sign -> report
//
// Variants differ only in their fee mode, reserved inputs, outputs and
// result metadata. A Builder holds no per-request state and may be shared.
package builder

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/libtxbuild-go/fee"
	"github.com/bitfsorg/libtxbuild-go/network"
	"github.com/bitfsorg/libtxbuild-go/report"
	"github.com/bitfsorg/libtxbuild-go/tx"
	"github.com/bitfsorg/libtxbuild-go/utxo"
)

// Validator checks destinations and keys at the syntax level.
type Validator interface {
	ValidDestination(addr string) bool
	ValidKey(key string) bool
}

// AssetIndexer classifies fetched units, marking inscription, overlay and
// token outputs. utxo.Index satisfies it.
type AssetIndexer interface {
	Annotate(ctx context.Context, address string, units []utxo.Unit) ([]utxo.Unit, error)
}

// DestinationResolver maps a destination such as a paymail handle to an
// address and returns plain addresses unchanged. *paymail.Resolver
// satisfies it.
type DestinationResolver interface {
	Resolve(ctx context.Context, dest string) (string, error)
}

// Config wires a Builder to its collaborators. Service and Fees are
// required; the rest default to go-sdk P2PKH implementations and the
// standard logger. Indexer and Resolver are optional.
type Config struct {
	Service   network.Service
	Fees      *fee.Policy
	Indexer   AssetIndexer
	Resolver  DestinationResolver
	Signer    tx.Signer
	Validator Validator
	Logger    *logrus.Logger
}

// Builder builds UTXO transactions.
type Builder struct {
	service   network.Service
	fees      *fee.Policy
	indexer   AssetIndexer
	resolver  DestinationResolver
	signer    tx.Signer
	validator Validator
	log       *logrus.Entry
}

// New returns a Builder for cfg.
func New(cfg Config) (*Builder, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("%w: service", ErrNilParam)
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("%w: fee policy", ErrNilParam)
	}
	if cfg.Signer == nil {
		cfg.Signer = tx.WIFSigner{}
	}
	if cfg.Validator == nil {
		cfg.Validator = tx.AddressValidator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Builder{
		service:   cfg.Service,
		fees:      cfg.Fees,
		indexer:   cfg.Indexer,
		resolver:  cfg.Resolver,
		signer:    cfg.Signer,
		validator: cfg.Validator,
		log:       cfg.Logger.WithField("pkg", "builder"),
	}, nil
}

// NewFeePolicy returns a protocol fee policy for the UTXO chain. Fees below
// the dust limit are waived.
func NewFeePolicy(percentage float64, flat uint64, collector string) (*fee.Policy, error) {
	return fee.NewPolicy(fee.Schedule{
		Percentage:     percentage,
		Flat:           new(big.Int).SetUint64(flat),
		Collector:      collector,
		MinEnforceable: new(big.Int).SetUint64(tx.DustLimit),
	}, tx.ValidDestination)
}

// fuelExcluded are the categories never spent to fund a transaction.
var fuelExcluded = []utxo.Category{utxo.Inscription, utxo.Overlay, utxo.Token}

// draft is the per-request context handed to variant hooks.
type draft struct {
	sender   string
	rate     uint64
	fee      *tx.PaymentOutput // nil when waived
	reserved []utxo.Unit
}

// job describes one transfer variant.
type job struct {
	kind  Kind
	mode  fee.Mode
	value uint64 // percentage basis

	// reserve picks inputs that must be spent ahead of fuel, or checks a
	// protocol balance. Optional.
	reserve func(units []utxo.Unit) ([]utxo.Unit, error)
	// compose returns the fixed outputs. ChangeTo is set by the pipeline.
	compose func(d draft) (tx.Composition, error)
	// metadata describes the signed transaction. Optional.
	metadata func(d draft, txid string) report.Metadata
}

// validateCaller checks the inputs that do not depend on destination
// resolution.
func (b *Builder) validateCaller(sender, key string, hint FeeHint) error {
	if !b.validator.ValidDestination(sender) {
		return fmt.Errorf("%w: sender %q", ErrValidation, sender)
	}
	if !b.validator.ValidKey(key) {
		return fmt.Errorf("%w: signing key", ErrValidation)
	}
	if hint.Rate != 0 && !tx.ValidFeeRate(hint.Rate) {
		return fmt.Errorf("%w: fee rate %d outside [%d,%d]", ErrValidation, hint.Rate, tx.MinFeeRate, tx.MaxFeeRate)
	}
	return nil
}

// feeRate resolves the hint to a sat/byte rate.
func (b *Builder) feeRate(ctx context.Context, hint FeeHint) (uint64, error) {
	if hint.Rate != 0 {
		return hint.Rate, nil
	}
	rates, err := b.service.FeeRates(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: fee rates: %w", ErrNetwork, err)
	}
	rate := rates.Rate(hint.Priority)
	if rate < tx.MinFeeRate {
		rate = tx.MinFeeRate
	}
	if rate > tx.MaxFeeRate {
		rate = tx.MaxFeeRate
	}
	return rate, nil
}

// units fetches the sender's unspent outputs and classifies them.
// Sources that omit locking scripts get the sender's P2PKH script.
func (b *Builder) units(ctx context.Context, sender string) ([]utxo.Unit, error) {
	raw, err := b.service.ListUnspent(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("%w: list unspent: %w", ErrNetwork, err)
	}
	lock, err := tx.LockingScript(sender)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	units := make([]utxo.Unit, 0, len(raw))
	for _, u := range raw {
		if u == nil {
			continue
		}
		script := []byte(*lock)
		if u.ScriptPubKey != "" {
			script, err = hex.DecodeString(u.ScriptPubKey)
			if err != nil {
				return nil, fmt.Errorf("%w: unit %s:%d script: %w", ErrNetwork, u.TxID, u.Vout, err)
			}
		}
		units = append(units, utxo.Unit{
			Outpoint: utxo.Outpoint{TxID: u.TxID, Vout: u.Vout},
			Value:    u.Amount,
			Script:   script,
		})
	}

	if b.indexer != nil {
		units, err = b.indexer.Annotate(ctx, sender, units)
		if err != nil {
			return nil, fmt.Errorf("%w: annotate units: %w", ErrNetwork, err)
		}
	}
	return units, nil
}

// fund selects fuel covering the fixed outputs and the miner fee of every
// input, reserved ones included. Reserved inputs come first.
func fund(units, reserved []utxo.Unit, c tx.Composition, rate uint64) ([]utxo.Unit, error) {
	need := tx.SumOutputs(c.Fixed())
	have := utxo.Total(reserved)
	var base uint64
	if need > have {
		base = need - have
	}
	cost := func(n int) uint64 { return c.MinerFee(n+len(reserved), 0, rate) }

	chosen, _, err := utxo.SelectCovering(units, base, cost, fuelExcluded...)
	if err != nil {
		return nil, err
	}
	inputs := make([]utxo.Unit, 0, len(reserved)+len(chosen))
	return append(append(inputs, reserved...), chosen...), nil
}

// build runs the pipeline up to a signed plan.
func (b *Builder) build(ctx context.Context, sender, key string, hint FeeHint, j job) (*tx.Plan, report.Metadata, error) {
	log := b.log.WithFields(logrus.Fields{"kind": j.kind.String(), "sender": sender})

	decision := b.fees.EvaluateSats(j.mode, j.value)
	var feeOut *tx.PaymentOutput
	if decision.Required && decision.Sats() >= tx.DustLimit {
		feeOut = &tx.PaymentOutput{Address: b.fees.Collector(), Amount: decision.Sats(), Purpose: tx.PurposeProtocolFee}
	}

	rate, err := b.feeRate(ctx, hint)
	if err != nil {
		return nil, nil, err
	}

	plan := tx.NewPlan(rate)
	if err := plan.Validated(); err != nil {
		return nil, nil, err
	}

	units, err := b.units(ctx, sender)
	if err != nil {
		return nil, nil, plan.Reject(err)
	}
	d := draft{sender: sender, rate: rate, fee: feeOut}
	if j.reserve != nil {
		if d.reserved, err = j.reserve(units); err != nil {
			return nil, nil, plan.Reject(err)
		}
	}
	comp, err := j.compose(d)
	if err != nil {
		return nil, nil, plan.Reject(err)
	}
	comp.ChangeTo = sender

	inputs, err := fund(units, d.reserved, comp, rate)
	if err != nil {
		return nil, nil, plan.Reject(err)
	}
	if err := plan.Fund(inputs); err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"inputs":  len(inputs),
		"total":   utxo.Total(inputs),
		"feeRate": rate,
	}).Debug("plan funded")

	if err := plan.Compose(comp); err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"outputs":  len(plan.Outputs),
		"minerFee": plan.Fee,
		"change":   plan.Change,
	}).Debug("plan balanced")

	if err := plan.Sign(b.signer, key); err != nil {
		return nil, nil, err
	}

	var meta report.Metadata
	if j.metadata != nil {
		meta = j.metadata(d, plan.TxID)
	}
	return plan, meta, nil
}

func (b *Builder) run(ctx context.Context, sender, key string, hint FeeHint, j job) (*report.Result, error) {
	plan, meta, err := b.build(ctx, sender, key, hint, j)
	if err != nil {
		return nil, err
	}
	res, err := report.FromPlan(plan, meta)
	if err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{
		"kind":        j.kind.String(),
		"txid":        res.TxID,
		"minerFee":    res.MinerFee,
		"protocolFee": res.ProtocolFee,
	}).Info("transaction built")
	return res, nil
}

// Submit broadcasts a built result and returns the network txid.
func (b *Builder) Submit(ctx context.Context, res *report.Result) (string, error) {
	if res == nil || res.RawTx == "" {
		return "", fmt.Errorf("%w: result", ErrNilParam)
	}
	txid, err := b.service.BroadcastTx(ctx, res.RawTx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcast, err)
	}
	log := b.log.WithField("txid", txid)
	if txid != res.TxID {
		log.WithField("expected", res.TxID).Warn("broadcast returned a different txid")
	}
	log.Info("transaction submitted")
	return txid, nil
}
