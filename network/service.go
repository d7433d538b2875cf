package network

import (
	"context"
	"fmt"
	"strings"
)

// Service is the chain access needed to fund, price and publish a UTXO
// transaction. RPCClient talks to a node; MempoolClient talks to an
// Esplora-style REST API.
type Service interface {
	// ListUnspent returns all unspent transaction outputs for the given address.
	ListUnspent(ctx context.Context, address string) ([]*UTXO, error)

	// FeeRates returns the current fee market in sat/byte.
	FeeRates(ctx context.Context) (*FeeRates, error)

	// BroadcastTx submits a raw transaction hex to the network and returns the txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)
}

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"`
	ScriptPubKey  string `json:"script_pubkey"` // hex; may be empty for REST sources
	Address       string `json:"address"`
	Confirmations int64  `json:"confirmations"`
}

// FeeRates is a fee market quote in sat/byte.
type FeeRates struct {
	Low    uint64 `json:"low"`
	Medium uint64 `json:"medium"`
	High   uint64 `json:"high"`
}

// Priority selects a level of a FeeRates quote.
type Priority int

const (
	PriorityMedium Priority = iota
	PriorityLow
	PriorityHigh
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority parses "low", "medium" or "high". Empty means medium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "", "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("network: unknown priority %q", s)
	}
}

// Rate returns the quote for priority p.
func (f *FeeRates) Rate(p Priority) uint64 {
	switch p {
	case PriorityLow:
		return f.Low
	case PriorityHigh:
		return f.High
	default:
		return f.Medium
	}
}
