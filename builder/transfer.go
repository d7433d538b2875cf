package builder

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/libtxbuild-go/envelope"
	"github.com/bitfsorg/libtxbuild-go/fee"
	"github.com/bitfsorg/libtxbuild-go/report"
	"github.com/bitfsorg/libtxbuild-go/tx"
	"github.com/bitfsorg/libtxbuild-go/utxo"
)

// Transfer pays req.Amount to req.To. The protocol fee is a percentage of
// the amount.
func (b *Builder) Transfer(ctx context.Context, sender string, req TransferRequest, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// TokenTransfer moves a fungible token balance. It spends one token unit
// holding at least req.Amount and returns a dust marker to the sender when
// the unit holds more.
func (b *Builder) TokenTransfer(ctx context.Context, sender string, req TokenTransferRequest, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// Inscribe embeds req.Content in a dust output. The result metadata carries
// the inscription id.
func (b *Builder) Inscribe(ctx context.Context, sender string, req InscriptionRequest, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// OverlayTransfer sends an overlay asset balance to req.Destination.
func (b *Builder) OverlayTransfer(ctx context.Context, sender string, req OverlayTransferRequest, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// OverlayIssue issues a new overlay asset to the sender.
func (b *Builder) OverlayIssue(ctx context.Context, sender string, req OverlayIssueRequest, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// Build dispatches req to the matching entry point.
func (b *Builder) Build(ctx context.Context, sender string, req Request, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sender, key, hint, j)
}

// Send builds req, broadcasts it and returns the submitted result.
func (b *Builder) Send(ctx context.Context, sender string, req Request, key string, hint FeeHint) (*report.Result, error) {
	j, err := b.prepare(ctx, sender, key, hint, req)
	if err != nil {
		return nil, err
	}
	plan, meta, err := b.build(ctx, sender, key, hint, j)
	if err != nil {
		return nil, err
	}
	if _, err := b.service.BroadcastTx(ctx, plan.RawTx); err != nil {
		return nil, plan.Reject(fmt.Errorf("%w: %w", ErrBroadcast, err))
	}
	if err := plan.Submitted(); err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{"kind": j.kind.String(), "txid": plan.TxID}).Info("transaction submitted")
	return report.FromPlan(plan, meta)
}

// prepare checks the caller inputs, resolves destinations, validates req
// and returns its job. No lookup runs for a request that fails the caller
// checks.
func (b *Builder) prepare(ctx context.Context, sender, key string, hint FeeHint, req Request) (job, error) {
	if err := b.validateCaller(sender, key, hint); err != nil {
		return job{}, err
	}
	req, err := b.resolve(ctx, req)
	if err != nil {
		return job{}, err
	}
	switch r := req.(type) {
	case TransferRequest:
		return transferJob(r), r.validate(b.validator)
	case TokenTransferRequest:
		return tokenJob(r), r.validate(b.validator)
	case InscriptionRequest:
		return inscriptionJob(r), r.validate(b.validator)
	case OverlayTransferRequest:
		return b.overlayTransferJob(r), r.validate(b.validator)
	case OverlayIssueRequest:
		return overlayIssueJob(r), r.validate(b.validator)
	default:
		return job{}, fmt.Errorf("%w: unsupported request %T", ErrValidation, req)
	}
}

// resolve rewrites handle destinations to addresses when a resolver is
// configured.
func (b *Builder) resolve(ctx context.Context, req Request) (Request, error) {
	if b.resolver == nil {
		return req, nil
	}
	var err error
	switch r := req.(type) {
	case TransferRequest:
		r.To, err = b.resolveOne(ctx, r.To)
		req = r
	case TokenTransferRequest:
		r.Destination, err = b.resolveOne(ctx, r.Destination)
		req = r
	case OverlayTransferRequest:
		r.Destination, err = b.resolveOne(ctx, r.Destination)
		req = r
	}
	return req, err
}

func (b *Builder) resolveOne(ctx context.Context, dest string) (string, error) {
	addr, err := b.resolver.Resolve(ctx, dest)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %q: %w", ErrNetwork, dest, err)
	}
	if addr != dest {
		b.log.WithFields(logrus.Fields{"destination": dest, "address": addr}).Debug("destination resolved")
	}
	return addr, nil
}

func transferJob(r TransferRequest) job {
	return job{
		kind:  KindTransfer,
		mode:  fee.ModePercentage,
		value: r.Amount,
		compose: func(d draft) (tx.Composition, error) {
			return tx.Composition{
				Primary:     tx.PaymentOutput{Address: r.To, Amount: r.Amount},
				ProtocolFee: d.fee,
			}, nil
		},
	}
}

func tokenJob(r TokenTransferRequest) job {
	return job{
		kind: KindTokenTransfer,
		mode: fee.ModeFlat,
		reserve: func(units []utxo.Unit) ([]utxo.Unit, error) {
			u, err := utxo.FindAsset(units, utxo.Token, r.AssetID, r.Amount)
			if err != nil {
				return nil, err
			}
			return []utxo.Unit{u}, nil
		},
		compose: func(d draft) (tx.Composition, error) {
			c := tx.Composition{
				Primary:     tx.PaymentOutput{Address: r.Destination, Amount: tx.DustLimit, Purpose: tx.PurposeAssetMarker},
				ProtocolFee: d.fee,
			}
			if d.reserved[0].AssetAmount > r.Amount {
				c.Auxiliary = []tx.Output{
					tx.PaymentOutput{Address: d.sender, Amount: tx.DustLimit, Purpose: tx.PurposeAssetChange},
				}
			}
			return c, nil
		},
		metadata: func(d draft, _ string) report.Metadata {
			return report.TokenMeta{
				Symbol:      r.Symbol,
				AssetID:     r.AssetID,
				Amount:      r.Amount,
				Remaining:   d.reserved[0].AssetAmount - r.Amount,
				Sender:      d.sender,
				Recipient:   r.Recipient,
				Destination: r.Destination,
			}
		},
	}
}

func inscriptionJob(r InscriptionRequest) job {
	ins := r.inscription()
	return job{
		kind: KindInscription,
		mode: fee.ModeFlat,
		compose: func(d draft) (tx.Composition, error) {
			s, err := ins.Script()
			if err != nil {
				return tx.Composition{}, err
			}
			return tx.Composition{
				Primary:     tx.DataOutput{Script: []byte(*s), Amount: tx.DustLimit, PayloadSize: ins.PayloadSize()},
				ProtocolFee: d.fee,
				MinFee:      ins.Cost(d.rate),
			}, nil
		},
		metadata: func(_ draft, txid string) report.Metadata {
			return report.InscriptionMeta{
				ID:          report.InscriptionID(txid, 0),
				ContentType: ins.ContentType,
				Size:        ins.Size(),
			}
		},
	}
}

// overlayTransferJob checks the overlay balance when an indexer is
// configured. Overlay balances follow the address, so no overlay unit is
// spent.
func (b *Builder) overlayTransferJob(r OverlayTransferRequest) job {
	ov := r.overlay()
	j := job{
		kind: KindOverlayTransfer,
		mode: fee.ModeFlat,
		compose: func(d draft) (tx.Composition, error) {
			out, err := overlayOutput(ov)
			if err != nil {
				return tx.Composition{}, err
			}
			return tx.Composition{
				Primary:     out,
				ProtocolFee: d.fee,
				Auxiliary: []tx.Output{
					tx.PaymentOutput{Address: r.Destination, Amount: tx.DustLimit, Purpose: tx.PurposeAssetMarker},
				},
			}, nil
		},
		metadata: func(d draft, _ string) report.Metadata {
			return report.OverlayMeta{
				Op:          string(ov.Op),
				Asset:       ov.Asset,
				Quantity:    ov.Quantity,
				Memo:        ov.Memo,
				Sender:      d.sender,
				Destination: r.Destination,
			}
		},
	}
	if b.indexer != nil {
		j.reserve = func(units []utxo.Unit) ([]utxo.Unit, error) {
			if held := utxo.AssetBalance(units, utxo.Overlay, r.Asset); held < r.Quantity {
				return nil, fmt.Errorf("%w: %s: need %d, hold %d",
					utxo.ErrInsufficientProtocolBalance, r.Asset, r.Quantity, held)
			}
			return nil, nil
		}
	}
	return j
}

func overlayIssueJob(r OverlayIssueRequest) job {
	ov := r.overlay()
	return job{
		kind: KindOverlayIssue,
		mode: fee.ModeFlat,
		compose: func(d draft) (tx.Composition, error) {
			out, err := overlayOutput(ov)
			if err != nil {
				return tx.Composition{}, err
			}
			return tx.Composition{Primary: out, ProtocolFee: d.fee}, nil
		},
		metadata: func(d draft, _ string) report.Metadata {
			return report.OverlayMeta{
				Op:          string(ov.Op),
				Asset:       ov.Asset,
				Quantity:    ov.Quantity,
				Description: ov.Description,
				Sender:      d.sender,
			}
		},
	}
}

// overlayOutput encodes ov as a zero value OP_RETURN output.
func overlayOutput(ov envelope.Overlay) (tx.DataOutput, error) {
	payload, err := ov.Payload()
	if err != nil {
		return tx.DataOutput{}, err
	}
	s, err := ov.Script()
	if err != nil {
		return tx.DataOutput{}, err
	}
	return tx.DataOutput{Script: []byte(*s), PayloadSize: len(payload)}, nil
}

// AssetChangeTags returns the classification of the asset change output of a
// token transfer result, carrying the balance left with the sender. It is
// empty for other results and for transfers that spent the whole balance.
func AssetChangeTags(res *report.Result) []utxo.Tag {
	if res == nil {
		return nil
	}
	meta, ok := res.Metadata.(report.TokenMeta)
	if !ok || meta.Remaining == 0 {
		return nil
	}
	var tags []utxo.Tag
	for _, o := range res.Outputs {
		if o.Purpose != tx.PurposeAssetChange.String() {
			continue
		}
		tags = append(tags, utxo.Tag{
			Outpoint:    utxo.Outpoint{TxID: res.TxID, Vout: uint32(o.Index)},
			Category:    utxo.Token,
			AssetID:     meta.AssetID,
			AssetAmount: meta.Remaining,
		})
	}
	return tags
}
