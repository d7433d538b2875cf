// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/bitfsorg/libtxbuild-go/network"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Collector
// addresses are checked by the fee policies that use them.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	switch strings.ToLower(cfg.Backend) {
	case "", network.BackendRPC, network.BackendMempool:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Backend)
	}

	if err := validatePercent("feepercent", cfg.FeePercent); err != nil {
		return err
	}
	if err := validatePercent("evmfeepercent", cfg.EVMFeePercent); err != nil {
		return err
	}
	if _, err := cfg.EVMFlatWei(); err != nil {
		return err
	}
	if cfg.EVMChainID <= 0 {
		return fmt.Errorf("%w: evmchainid %d", ErrInvalidConfigValue, cfg.EVMChainID)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}

func validatePercent(key string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("%w: %s %v outside [0,100]", ErrInvalidFee, key, v)
	}
	return nil
}
