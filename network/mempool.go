package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Service = (*MempoolClient)(nil)

// MempoolClient is a client for Esplora-compatible REST APIs. The endpoint
// must index the BSV chain the signer targets.
type MempoolClient struct {
	baseURL string
	client  *http.Client
}

// NewMempoolClient creates a client rooted at baseURL, the API root that
// serves /address/{address}/utxo.
func NewMempoolClient(baseURL string) *MempoolClient {
	return &MempoolClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// esploraUTXO maps one entry of GET /address/{address}/utxo.
type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  uint64 `json:"value"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
}

// recommendedFees maps GET /v1/fees/recommended.
type recommendedFees struct {
	FastestFee  uint64 `json:"fastestFee"`
	HalfHourFee uint64 `json:"halfHourFee"`
	HourFee     uint64 `json:"hourFee"`
	EconomyFee  uint64 `json:"economyFee"`
	MinimumFee  uint64 `json:"minimumFee"`
}

func (c *MempoolClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("network: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrConnectionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := data
		if len(msg) > 1024 {
			msg = msg[:1024]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return data, nil
}

// HTTPError is a non-2xx REST response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("network: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match rejected credentials with ErrAuthFailed and
// other HTTP failures with ErrConnectionFailed.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	return ErrConnectionFailed
}

// ListUnspent calls GET /address/{address}/utxo. The API does not return
// locking scripts, so ScriptPubKey is left empty.
func (c *MempoolClient) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	data, err := c.do(ctx, http.MethodGet, "/address/"+address+"/utxo", nil)
	if err != nil {
		return nil, err
	}
	var results []esploraUTXO
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%w: decode utxos: %w", ErrInvalidResponse, err)
	}

	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		var conf int64
		if r.Status.Confirmed {
			conf = 1
		}
		utxos[i] = &UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Amount:        r.Value,
			Address:       address,
			Confirmations: conf,
		}
	}
	return utxos, nil
}

// FeeRates calls GET /v1/fees/recommended and maps fastest, half-hour and
// hour fees to High, Medium and Low.
func (c *MempoolClient) FeeRates(ctx context.Context) (*FeeRates, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/fees/recommended", nil)
	if err != nil {
		return nil, err
	}
	var fees recommendedFees
	if err := json.Unmarshal(data, &fees); err != nil {
		return nil, fmt.Errorf("%w: decode fees: %w", ErrInvalidResponse, err)
	}
	if fees.FastestFee == 0 || fees.HalfHourFee == 0 || fees.HourFee == 0 {
		return nil, fmt.Errorf("%w: incomplete fee quote", ErrInvalidResponse)
	}
	return &FeeRates{Low: fees.HourFee, Medium: fees.HalfHourFee, High: fees.FastestFee}, nil
}

// BroadcastTx calls POST /tx with the raw hex body and returns the txid.
func (c *MempoolClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/tx", bytes.NewReader([]byte(rawTxHex)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	txid := strings.TrimSpace(string(data))
	if len(txid) != 64 {
		return "", fmt.Errorf("%w: unexpected broadcast reply %q", ErrInvalidResponse, txid)
	}
	return txid, nil
}
