package builder

import (
	"fmt"

	"github.com/bitfsorg/libtxbuild-go/envelope"
	"github.com/bitfsorg/libtxbuild-go/network"
	"github.com/bitfsorg/libtxbuild-go/tx"
)

// MaxSymbolLength bounds the display symbol of a token transfer.
const MaxSymbolLength = 32

// Kind identifies a UTXO transfer variant.
type Kind int

const (
	KindTransfer Kind = iota
	KindTokenTransfer
	KindInscription
	KindOverlayTransfer
	KindOverlayIssue
)

var kindNames = [...]string{"transfer", "token_transfer", "inscription", "overlay_transfer", "overlay_issue"}

// String returns the kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Request is one of TransferRequest, TokenTransferRequest,
// InscriptionRequest, OverlayTransferRequest or OverlayIssueRequest.
type Request interface {
	Kind() Kind
}

// TransferRequest pays Amount satoshis to To.
type TransferRequest struct {
	To     string
	Amount uint64
}

// TokenTransferRequest moves Amount of a fungible token to Destination.
// Recipient is a free-form label carried into the result.
type TokenTransferRequest struct {
	Symbol      string
	AssetID     string
	Amount      uint64
	Recipient   string
	Destination string
}

// InscriptionRequest inscribes Content under ContentType.
type InscriptionRequest struct {
	ContentType string
	Content     []byte
}

// OverlayTransferRequest sends Quantity of an overlay asset to Destination.
type OverlayTransferRequest struct {
	Asset       string
	Quantity    uint64
	Memo        string
	Destination string
}

// OverlayIssueRequest issues Quantity of a new overlay asset.
type OverlayIssueRequest struct {
	Asset       string
	Quantity    uint64
	Description string
}

func (TransferRequest) Kind() Kind        { return KindTransfer }
func (TokenTransferRequest) Kind() Kind   { return KindTokenTransfer }
func (InscriptionRequest) Kind() Kind     { return KindInscription }
func (OverlayTransferRequest) Kind() Kind { return KindOverlayTransfer }
func (OverlayIssueRequest) Kind() Kind    { return KindOverlayIssue }

// FeeHint selects the miner fee rate. A non-zero Rate is used as is and
// must lie in [tx.MinFeeRate, tx.MaxFeeRate]; otherwise the fee market is
// queried at Priority.
type FeeHint struct {
	Rate     uint64
	Priority network.Priority
}

func (r TransferRequest) validate(v Validator) error {
	if !v.ValidDestination(r.To) {
		return fmt.Errorf("%w: destination %q", ErrValidation, r.To)
	}
	if r.Amount < tx.DustLimit {
		return fmt.Errorf("%w: amount %d below dust limit %d", ErrValidation, r.Amount, tx.DustLimit)
	}
	return nil
}

func (r TokenTransferRequest) validate(v Validator) error {
	if !v.ValidDestination(r.Destination) {
		return fmt.Errorf("%w: destination %q", ErrValidation, r.Destination)
	}
	if r.AssetID == "" {
		return fmt.Errorf("%w: empty token id", ErrValidation)
	}
	if r.Amount == 0 {
		return fmt.Errorf("%w: zero token amount", ErrValidation)
	}
	if len(r.Symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol longer than %d", ErrValidation, MaxSymbolLength)
	}
	return nil
}

func (r InscriptionRequest) inscription() envelope.Inscription {
	return envelope.Inscription{ContentType: r.ContentType, Content: r.Content}
}

func (r InscriptionRequest) validate(Validator) error {
	if err := r.inscription().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (r OverlayTransferRequest) overlay() envelope.Overlay {
	return envelope.Overlay{Op: envelope.OpSend, Asset: r.Asset, Quantity: r.Quantity, Memo: r.Memo}
}

func (r OverlayTransferRequest) validate(v Validator) error {
	if !v.ValidDestination(r.Destination) {
		return fmt.Errorf("%w: destination %q", ErrValidation, r.Destination)
	}
	if _, err := r.overlay().Payload(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (r OverlayIssueRequest) overlay() envelope.Overlay {
	return envelope.Overlay{Op: envelope.OpIssuance, Asset: r.Asset, Quantity: r.Quantity, Description: r.Description}
}

func (r OverlayIssueRequest) validate(Validator) error {
	if _, err := r.overlay().Payload(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
