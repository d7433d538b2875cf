package network

import (
	"fmt"
	"strings"
)

// Backend names a Service implementation.
const (
	BackendRPC     = "rpc"
	BackendMempool = "mempool"
)

// RPCConfig holds the connection parameters for chain access. URL is the
// node JSON-RPC endpoint for the rpc backend and the REST API root for the
// mempool backend.
type RPCConfig struct {
	Backend  string `json:"backend"`
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets contains default configurations for known networks. The
// UTXO chain is BSV, so every preset targets a local BSV node over JSON-RPC.
// The mempool backend has no preset endpoint.
var NetworkPresets = map[string]RPCConfig{
	"mainnet": {Backend: BackendRPC, URL: "http://localhost:8332"},
	"testnet": {Backend: BackendRPC, URL: "http://localhost:18332"},
	"regtest": {Backend: BackendRPC, URL: "http://localhost:18443", User: "txbuild", Password: "txbuild"},
}

// ResolveConfig merges configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (TXB_BACKEND, TXB_RPC_URL, TXB_RPC_USER, TXB_RPC_PASS)
//  3. Network presets (lowest priority)
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	// Layer 1: start with preset defaults if available.
	preset, hasPreset := NetworkPresets[network]
	if hasPreset {
		result = preset
		result.Network = network
	}

	// Layer 2: environment variables override preset defaults.
	if env != nil {
		if v, ok := env["TXB_BACKEND"]; ok && v != "" {
			result.Backend = v
		}
		if v, ok := env["TXB_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["TXB_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["TXB_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
	}

	// Layer 3: CLI flags have highest priority.
	if flags != nil {
		if flags.Backend != "" {
			result.Backend = flags.Backend
		}
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
	}

	if result.Backend == "" {
		result.Backend = BackendRPC
	}
	result.Backend = strings.ToLower(result.Backend)
	if result.Backend != BackendRPC && result.Backend != BackendMempool {
		return nil, fmt.Errorf("network: unknown backend %q", result.Backend)
	}
	// A preset endpoint only serves the preset backend.
	if hasPreset && result.URL == preset.URL && result.Backend != preset.Backend {
		result.URL = ""
	}
	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires an explicit endpoint (set --rpc-url, TXB_RPC_URL, or config file)", network)
	}

	return &result, nil
}

// NewService returns the Service selected by cfg.Backend.
func NewService(cfg RPCConfig) Service {
	if strings.EqualFold(cfg.Backend, BackendMempool) {
		return NewMempoolClient(cfg.URL)
	}
	return NewRPCClient(cfg)
}
