package network

import (
	"context"
	"fmt"
	"math"
)

// Compile-time interface check.
var _ Service = (*RPCClient)(nil)

// Confirmation targets, in blocks, for each fee level.
const (
	TargetHigh   = 2
	TargetMedium = 3
	TargetLow    = 6
)

// btcToSat converts a BTC float64 amount (as returned by the RPC node) to satoshis.
// It uses math.Round to avoid floating-point truncation issues.
func btcToSat(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

// listUnspentResult maps the JSON fields returned by the Bitcoin RPC listunspent call.
type listUnspentResult struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Address       string  `json:"address"`
	Confirmations int64   `json:"confirmations"`
}

// ListUnspent returns all unspent transaction outputs for the given address.
// It calls `listunspent 0 9999999 ["address"]` and converts BTC amounts to satoshis.
func (c *RPCClient) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	params := []interface{}{0, 9999999, []string{address}}
	var results []listUnspentResult
	if err := c.Call(ctx, "listunspent", params, &results); err != nil {
		return nil, err
	}

	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		utxos[i] = &UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Amount:        btcToSat(r.Amount),
			ScriptPubKey:  r.ScriptPubKey,
			Address:       r.Address,
			Confirmations: r.Confirmations,
		}
	}
	return utxos, nil
}

// estimateSmartFeeResult maps the JSON fields returned by estimatesmartfee.
// Feerate is BTC/kvB and is absent when the node has too little data.
type estimateSmartFeeResult struct {
	FeeRate *float64 `json:"feerate"`
	Errors  []string `json:"errors"`
	Blocks  int      `json:"blocks"`
}

// estimateRate returns the sat/byte estimate for a confirmation target,
// never less than 1 sat/byte.
func (c *RPCClient) estimateRate(ctx context.Context, target int) (uint64, error) {
	var result estimateSmartFeeResult
	if err := c.Call(ctx, "estimatesmartfee", []interface{}{target}, &result); err != nil {
		return 0, err
	}
	if result.FeeRate == nil {
		return 1, nil
	}
	if *result.FeeRate < 0 {
		return 0, fmt.Errorf("%w: negative feerate %v", ErrInvalidResponse, *result.FeeRate)
	}
	satPerByte := uint64(math.Ceil(*result.FeeRate * 1e8 / 1000))
	if satPerByte == 0 {
		satPerByte = 1
	}
	return satPerByte, nil
}

// FeeRates queries estimatesmartfee for the high, medium and low targets.
func (c *RPCClient) FeeRates(ctx context.Context) (*FeeRates, error) {
	var rates FeeRates
	for _, level := range []struct {
		target int
		dst    *uint64
	}{
		{TargetHigh, &rates.High},
		{TargetMedium, &rates.Medium},
		{TargetLow, &rates.Low},
	} {
		rate, err := c.estimateRate(ctx, level.target)
		if err != nil {
			return nil, err
		}
		*level.dst = rate
	}
	return &rates, nil
}

// BroadcastTx submits a raw transaction hex to the network and returns the txid.
// It calls `sendrawtransaction "hex"`. RPC errors are wrapped with ErrBroadcastRejected.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	params := []interface{}{rawTxHex}
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", params, &txid); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	return txid, nil
}
