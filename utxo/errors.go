package utxo

import "errors"

var (
	// ErrNoSpendableUnits indicates no candidate survived the category filter.
	ErrNoSpendableUnits = errors.New("utxo: no spendable units")

	// ErrInsufficientFunds indicates the candidates cannot reach the target.
	ErrInsufficientFunds = errors.New("utxo: insufficient funds")

	// ErrInsufficientProtocolBalance indicates no asset-bearing unit holds
	// the requested quantity.
	ErrInsufficientProtocolBalance = errors.New("utxo: insufficient protocol balance")
)
