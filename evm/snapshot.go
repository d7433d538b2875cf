package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of *ethclient.Client used to price, estimate and
// send transactions.
type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Snapshot is one consistent view of the sender's nonce and the fee market.
// Both legs of a pair are priced from the same Snapshot.
type Snapshot struct {
	Nonce        uint64
	BaseFee      *big.Int
	TipCap       *big.Int
	MaxFeePerGas *big.Int // 2*BaseFee + TipCap
}

// FetchSnapshot queries the pending nonce, latest base fee and suggested
// tip concurrently. It fails unless all three succeed.
func FetchSnapshot(ctx context.Context, c Client, from common.Address) (*Snapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: client", ErrNilParam)
	}

	var (
		nonce  uint64
		header *types.Header
		tip    *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.PendingNonceAt(gctx, from)
		if err != nil {
			return fmt.Errorf("pending nonce: %w", err)
		}
		nonce = n
		return nil
	})
	g.Go(func() error {
		h, err := c.HeaderByNumber(gctx, nil)
		if err != nil {
			return fmt.Errorf("latest header: %w", err)
		}
		header = h
		return nil
	})
	g.Go(func() error {
		t, err := c.SuggestGasTipCap(gctx)
		if err != nil {
			return fmt.Errorf("gas tip: %w", err)
		}
		tip = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if header == nil || tip == nil {
		return nil, fmt.Errorf("%w: incomplete fee market", ErrNetwork)
	}

	base := new(big.Int)
	if header.BaseFee != nil {
		base.Set(header.BaseFee)
	}
	maxFee := new(big.Int).Mul(base, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	return &Snapshot{
		Nonce:        nonce,
		BaseFee:      base,
		TipCap:       new(big.Int).Set(tip),
		MaxFeePerGas: maxFee,
	}, nil
}

// GasCost returns gasLimit * maxFeePerGas.
func GasCost(gasLimit uint64, maxFeePerGas *big.Int) *big.Int {
	if maxFeePerGas == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), maxFeePerGas)
}
