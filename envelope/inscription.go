// Package envelope builds and parses the data-carrying scripts used by the
// inscription and asset-overlay sub-protocols.
package envelope

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

const (
	// InscriptionMarker tags an inscription envelope.
	InscriptionMarker = "stamp"

	// MaxInscriptionSize is the largest accepted inscription content.
	MaxInscriptionSize = 400 * 1024

	// inscriptionOverhead is the fixed byte allowance charged on top of the
	// content type and content when pricing an inscription.
	inscriptionOverhead = 100
)

// Inscription is raw content embedded in an OP_FALSE OP_IF envelope.
//
// Layout:
//
//	OP_FALSE OP_IF
//	  push "stamp"
//	  push <content type>
//	  push <content>
//	OP_ENDIF
type Inscription struct {
	ContentType string
	Content     []byte
}

// Validate checks the content type is set and the content size is in range.
func (i Inscription) Validate() error {
	if i.ContentType == "" {
		return fmt.Errorf("%w: empty content type", ErrInvalidPayload)
	}
	if len(i.Content) == 0 {
		return fmt.Errorf("%w: empty content", ErrInvalidPayload)
	}
	if len(i.Content) > MaxInscriptionSize {
		return fmt.Errorf("%w: content is %d bytes, max %d", ErrPayloadTooLarge, len(i.Content), MaxInscriptionSize)
	}
	return nil
}

// Size is the byte weight used to price the inscription:
// 100 + len(content type) + len(content).
func (i Inscription) Size() int {
	return inscriptionOverhead + len(i.ContentType) + len(i.Content)
}

// PayloadSize is the number of data bytes pushed into the script.
func (i Inscription) PayloadSize() int {
	return len(InscriptionMarker) + len(i.ContentType) + len(i.Content)
}

// Cost returns ceil(Size * feeRate) for an integer sat/byte rate.
func (i Inscription) Cost(feeRate uint64) uint64 {
	return uint64(i.Size()) * feeRate
}

// Script assembles the envelope script.
func (i Inscription) Script() (*script.Script, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	s := &script.Script{}
	*s = append(*s, script.OpFALSE, script.OpIF)
	for _, push := range [][]byte{[]byte(InscriptionMarker), []byte(i.ContentType), i.Content} {
		if err := s.AppendPushData(push); err != nil {
			return nil, fmt.Errorf("%w: inscription push data: %w", ErrScriptBuild, err)
		}
	}
	*s = append(*s, script.OpENDIF)
	return s, nil
}

// ParseInscription extracts the inscription from an envelope script.
func ParseInscription(s *script.Script) (*Inscription, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil script", ErrNotEnvelope)
	}
	chunks, err := s.Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnvelope, err)
	}
	if len(chunks) != 6 {
		return nil, fmt.Errorf("%w: expected 6 chunks, got %d", ErrNotEnvelope, len(chunks))
	}
	if chunks[0].Op != script.OpFALSE || chunks[1].Op != script.OpIF || chunks[5].Op != script.OpENDIF {
		return nil, fmt.Errorf("%w: missing OP_FALSE OP_IF ... OP_ENDIF frame", ErrNotEnvelope)
	}
	if !bytes.Equal(pushData(chunks[2]), []byte(InscriptionMarker)) {
		return nil, fmt.Errorf("%w: missing %q marker", ErrNotEnvelope, InscriptionMarker)
	}
	ins := &Inscription{
		ContentType: string(pushData(chunks[3])),
		Content:     pushData(chunks[4]),
	}
	if err := ins.Validate(); err != nil {
		return nil, err
	}
	return ins, nil
}

// pushData returns the bytes a chunk pushes, expanding the small-integer
// opcodes a minimal encoder may have used for single bytes.
func pushData(c *script.ScriptChunk) []byte {
	switch {
	case c.Data != nil:
		return c.Data
	case c.Op >= script.Op1 && c.Op <= script.Op16:
		return []byte{c.Op - script.Op1 + 1}
	case c.Op == script.Op1NEGATE:
		return []byte{0x81}
	default:
		return nil
	}
}
