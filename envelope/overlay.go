package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bsv-blockchain/go-sdk/script"
)

const (
	// OverlayProtocolID is the "p" field of every overlay payload.
	OverlayProtocolID = "COUNTERPARTY"

	// MaxDataCarrierSize is the largest OP_RETURN payload relayed by default.
	MaxDataCarrierSize = 80
)

// OverlayOp is an asset-overlay operation.
type OverlayOp string

const (
	// OpSend moves an existing overlay asset balance.
	OpSend OverlayOp = "send"
	// OpIssuance creates an overlay asset.
	OpIssuance OverlayOp = "issuance"
)

// Overlay is an asset-overlay operation carried in an OP_FALSE OP_RETURN
// output as compact JSON. Memo is used by sends, Description by issuances.
type Overlay struct {
	Op          OverlayOp
	Asset       string
	Quantity    uint64
	Memo        string
	Description string
}

// Field order is part of the wire format.
type sendPayload struct {
	P     string `json:"p"`
	Op    string `json:"op"`
	Asset string `json:"asset"`
	Qty   string `json:"qty"`
	Memo  string `json:"memo"`
}

type issuancePayload struct {
	P           string `json:"p"`
	Op          string `json:"op"`
	Asset       string `json:"asset"`
	Qty         string `json:"qty"`
	Description string `json:"description"`
}

type anyPayload struct {
	P           string  `json:"p"`
	Op          string  `json:"op"`
	Asset       string  `json:"asset"`
	Qty         string  `json:"qty"`
	Memo        *string `json:"memo"`
	Description *string `json:"description"`
}

// Validate checks the operation fields without encoding.
func (o Overlay) Validate() error {
	if o.Op != OpSend && o.Op != OpIssuance {
		return fmt.Errorf("%w: unknown overlay op %q", ErrInvalidPayload, o.Op)
	}
	if o.Asset == "" {
		return fmt.Errorf("%w: empty asset", ErrInvalidPayload)
	}
	if o.Quantity == 0 {
		return fmt.Errorf("%w: zero quantity", ErrInvalidPayload)
	}
	return nil
}

// Payload returns the JSON payload, rejecting anything over the data
// carrier limit.
func (o Overlay) Payload() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	qty := strconv.FormatUint(o.Quantity, 10)

	var v any
	if o.Op == OpSend {
		v = sendPayload{P: OverlayProtocolID, Op: string(o.Op), Asset: o.Asset, Qty: qty, Memo: o.Memo}
	} else {
		v = issuancePayload{P: OverlayProtocolID, Op: string(o.Op), Asset: o.Asset, Qty: qty, Description: o.Description}
	}
	// Memo and description text are carried unescaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if len(data) > MaxDataCarrierSize {
		return nil, fmt.Errorf("%w: overlay payload is %d bytes, max %d", ErrPayloadTooLarge, len(data), MaxDataCarrierSize)
	}
	return data, nil
}

// Script returns OP_FALSE OP_RETURN <payload>.
func (o Overlay) Script() (*script.Script, error) {
	data, err := o.Payload()
	if err != nil {
		return nil, err
	}
	s := &script.Script{}
	*s = append(*s, script.OpFALSE, script.OpRETURN)
	if err := s.AppendPushData(data); err != nil {
		return nil, fmt.Errorf("%w: OP_RETURN push data: %w", ErrScriptBuild, err)
	}
	return s, nil
}

// ParseOverlay decodes an overlay operation from an OP_RETURN script.
// A bare OP_RETURN prefix is accepted as well as OP_FALSE OP_RETURN.
func ParseOverlay(s *script.Script) (*Overlay, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil script", ErrNotEnvelope)
	}
	chunks, err := s.Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnvelope, err)
	}
	if len(chunks) > 0 && chunks[0].Op == script.OpFALSE {
		chunks = chunks[1:]
	}
	if len(chunks) != 2 || chunks[0].Op != script.OpRETURN {
		return nil, fmt.Errorf("%w: expected OP_RETURN with one push", ErrNotEnvelope)
	}
	return DecodeOverlay(pushData(chunks[1]))
}

// DecodeOverlay parses a JSON overlay payload.
func DecodeOverlay(data []byte) (*Overlay, error) {
	if len(data) > MaxDataCarrierSize {
		return nil, fmt.Errorf("%w: overlay payload is %d bytes, max %d", ErrPayloadTooLarge, len(data), MaxDataCarrierSize)
	}
	var p anyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnvelope, err)
	}
	if p.P != OverlayProtocolID {
		return nil, fmt.Errorf("%w: protocol %q", ErrNotEnvelope, p.P)
	}
	qty, err := strconv.ParseUint(p.Qty, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q: %w", ErrInvalidPayload, p.Qty, err)
	}
	o := &Overlay{Op: OverlayOp(p.Op), Asset: p.Asset, Quantity: qty}
	if p.Memo != nil {
		o.Memo = *p.Memo
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}
