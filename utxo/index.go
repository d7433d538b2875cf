package utxo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Tag is the protocol classification of a single outpoint.
type Tag struct {
	Outpoint
	Category    Category `json:"category"`
	AssetID     string   `json:"asset_id,omitempty"`
	AssetAmount uint64   `json:"asset_amount,omitempty"`
}

// Index is a static outpoint classification, typically exported from an
// indexer. Outpoints missing from the index stay Plain.
type Index map[Outpoint]Tag

// NewIndex builds an Index from tags. Later tags win on duplicates.
func NewIndex(tags ...Tag) Index {
	idx := make(Index, len(tags))
	for _, t := range tags {
		idx[t.Outpoint] = t
	}
	return idx
}

// LoadIndex decodes a JSON array of tags.
func LoadIndex(r io.Reader) (Index, error) {
	var tags []Tag
	if err := json.NewDecoder(r).Decode(&tags); err != nil {
		return nil, fmt.Errorf("utxo: decode index: %w", err)
	}
	return NewIndex(tags...), nil
}

// Apply returns a copy of units with categories and asset balances taken
// from the index.
func (idx Index) Apply(units []Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		if t, ok := idx[u.Outpoint]; ok {
			u.Category = t.Category
			u.AssetID = t.AssetID
			u.AssetAmount = t.AssetAmount
		}
		out[i] = u
	}
	return out
}

// Annotate implements the builder's asset indexer contract.
func (idx Index) Annotate(_ context.Context, _ string, units []Unit) ([]Unit, error) {
	return idx.Apply(units), nil
}
