package utxo

import (
	"fmt"
	"strings"
)

// Category classifies what a unit carries besides its satoshi value.
type Category int

const (
	// Plain units carry only value and are the only ones used for funding.
	Plain Category = iota
	// Inscription units hold an inscribed artifact and are never spent as fuel.
	Inscription
	// Overlay units carry an asset-overlay balance.
	Overlay
	// Token units carry a fungible-token balance.
	Token
)

var categoryNames = map[Category]string{
	Plain:       "plain",
	Inscription: "inscription",
	Overlay:     "overlay",
	Token:       "token",
}

// String returns the category name.
func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory is the inverse of String. Matching is case-insensitive.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("utxo: unknown category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Outpoint identifies a previous output.
type Outpoint struct {
	TxID string `json:"txid"` // hex, display byte order
	Vout uint32 `json:"vout"`
}

// String returns "txid:vout".
func (o Outpoint) String() string { return fmt.Sprintf("%s:%d", o.TxID, o.Vout) }

// Unit is a spendable output. Units are values and are never mutated after
// they are fetched.
type Unit struct {
	Outpoint
	Value    uint64   `json:"value"`  // satoshis
	Script   []byte   `json:"script"` // locking script of the output
	Category Category `json:"category"`

	// AssetID and AssetAmount describe the protocol balance held by Token
	// and Overlay units. Plain units leave them empty.
	AssetID     string `json:"asset_id,omitempty"`
	AssetAmount uint64 `json:"asset_amount,omitempty"`
}

// Total sums the satoshi value of units.
func Total(units []Unit) uint64 {
	var sum uint64
	for _, u := range units {
		sum += u.Value
	}
	return sum
}
