// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads the txbuild configuration file and applies the
// TXB_ environment overlay.
//
// The file is a flat list of "key = value" lines. Blank lines and lines
// starting with '#' are ignored, as are unknown keys.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/libtxbuild-go/network"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "TXB"

// Config holds the settings shared by all txbuild commands.
type Config struct {
	DataDir string
	Network string // mainnet, testnet or regtest

	// UTXO chain access and protocol fee.
	Backend      string // rpc or mempool; empty uses the network preset
	RPCURL       string
	RPCUser      string
	RPCPass      string
	IndexFile    string // asset index JSON; empty disables token lookups
	FeePercent   float64
	FeeFlat      uint64 // satoshis
	FeeCollector string

	// EVM chain access and protocol fee.
	EVMURL          string
	EVMChainID      int64
	EVMFeePercent   float64
	EVMFeeFlat      string // wei, base 10
	EVMFeeCollector string

	LogLevel string
	LogFile  string
}

// DefaultDataDir returns ~/.txbuild, or .txbuild when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".txbuild"
	}
	return filepath.Join(home, ".txbuild")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		Network:    "mainnet",
		FeePercent: 0.5,
		FeeFlat:    1000,
		EVMChainID: 1,
		EVMFeeFlat: "0",
		LogLevel:   "info",
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads path on top of DefaultConfig. Keys absent from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := parse(f, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(r io.Reader, cfg *Config) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read: %w", err)
	}
	return nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// set assigns one key. Unknown keys are ignored.
func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "backend":
		c.Backend = value
	case "rpcurl":
		c.RPCURL = value
	case "rpcuser":
		c.RPCUser = value
	case "rpcpass":
		c.RPCPass = value
	case "indexfile":
		c.IndexFile = value
	case "feepercent":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfigValue, key, err)
		}
		c.FeePercent = v
	case "feeflat":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfigValue, key, err)
		}
		c.FeeFlat = v
	case "feecollector":
		c.FeeCollector = value
	case "evmurl":
		c.EVMURL = value
	case "evmchainid":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfigValue, key, err)
		}
		c.EVMChainID = v
	case "evmfeepercent":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfigValue, key, err)
		}
		c.EVMFeePercent = v
	case "evmfeeflat":
		c.EVMFeeFlat = value
	case "evmfeecollector":
		c.EVMFeeCollector = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# txbuild configuration\n\n")
	for _, kv := range cfg.pairs() {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c Config) pairs() [][2]string {
	return [][2]string{
		{"datadir", c.DataDir},
		{"network", c.Network},
		{"backend", c.Backend},
		{"rpcurl", c.RPCURL},
		{"rpcuser", c.RPCUser},
		{"rpcpass", c.RPCPass},
		{"indexfile", c.IndexFile},
		{"feepercent", strconv.FormatFloat(c.FeePercent, 'f', -1, 64)},
		{"feeflat", strconv.FormatUint(c.FeeFlat, 10)},
		{"feecollector", c.FeeCollector},
		{"evmurl", c.EVMURL},
		{"evmchainid", strconv.FormatInt(c.EVMChainID, 10)},
		{"evmfeepercent", strconv.FormatFloat(c.EVMFeePercent, 'f', -1, 64)},
		{"evmfeeflat", c.EVMFeeFlat},
		{"evmfeecollector", c.EVMFeeCollector},
		{"loglevel", c.LogLevel},
		{"logfile", c.LogFile},
	}
}

// envOverlay mirrors the file keys as TXB_ environment variables. Values
// are kept as strings so they go through the same parsing as the file.
type envOverlay struct {
	DataDir         string `envconfig:"DATADIR"`
	Network         string `envconfig:"NETWORK"`
	Backend         string `envconfig:"BACKEND"`
	RPCURL          string `envconfig:"RPC_URL"`
	RPCUser         string `envconfig:"RPC_USER"`
	RPCPass         string `envconfig:"RPC_PASS"`
	IndexFile       string `envconfig:"INDEX_FILE"`
	FeePercent      string `envconfig:"FEE_PERCENT"`
	FeeFlat         string `envconfig:"FEE_FLAT"`
	FeeCollector    string `envconfig:"FEE_COLLECTOR"`
	EVMURL          string `envconfig:"EVM_URL"`
	EVMChainID      string `envconfig:"EVM_CHAIN_ID"`
	EVMFeePercent   string `envconfig:"EVM_FEE_PERCENT"`
	EVMFeeFlat      string `envconfig:"EVM_FEE_FLAT"`
	EVMFeeCollector string `envconfig:"EVM_FEE_COLLECTOR"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
	LogFile         string `envconfig:"LOG_FILE"`
}

// ApplyEnv overrides cfg with every non-empty TXB_ variable.
func ApplyEnv(cfg *Config) error {
	var env envOverlay
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	for _, kv := range [][2]string{
		{"datadir", env.DataDir},
		{"network", env.Network},
		{"backend", env.Backend},
		{"rpcurl", env.RPCURL},
		{"rpcuser", env.RPCUser},
		{"rpcpass", env.RPCPass},
		{"indexfile", env.IndexFile},
		{"feepercent", env.FeePercent},
		{"feeflat", env.FeeFlat},
		{"feecollector", env.FeeCollector},
		{"evmurl", env.EVMURL},
		{"evmchainid", env.EVMChainID},
		{"evmfeepercent", env.EVMFeePercent},
		{"evmfeeflat", env.EVMFeeFlat},
		{"evmfeecollector", env.EVMFeeCollector},
		{"loglevel", env.LogLevel},
		{"logfile", env.LogFile},
	} {
		if kv[1] == "" {
			continue
		}
		if err := cfg.set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("config: environment: %w", err)
		}
	}
	return nil
}

// Load reads the configuration file in dataDir, falling back to defaults
// when it does not exist, applies the environment and validates the result.
func Load(dataDir string) (Config, error) {
	cfg, err := LoadConfig(ConfigPath(dataDir))
	switch {
	case errors.Is(err, ErrConfigNotFound):
		cfg = DefaultConfig()
		cfg.DataDir = dataDir
	case err != nil:
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RPC returns the UTXO chain connection settings for network.ResolveConfig.
func (c Config) RPC() *network.RPCConfig {
	return &network.RPCConfig{
		Backend:  c.Backend,
		URL:      c.RPCURL,
		User:     c.RPCUser,
		Password: c.RPCPass,
		Network:  c.Network,
	}
}

// EVMFlatWei parses EVMFeeFlat. Empty means zero.
func (c Config) EVMFlatWei() (*big.Int, error) {
	if c.EVMFeeFlat == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(c.EVMFeeFlat, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: evmfeeflat %q", ErrInvalidFee, c.EVMFeeFlat)
	}
	return v, nil
}

// NewLogger returns a logrus logger at the configured level, writing to
// LogFile when set and stderr otherwise. The returned closer releases the
// log file.
func (c Config) NewLogger() (*logrus.Logger, func() error, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	closer := func() error { return nil }
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("config: open log file: %w", err)
		}
		logger.SetOutput(f)
		logger.SetFormatter(&logrus.JSONFormatter{})
		closer = f.Close
	}
	return logger, closer, nil
}
