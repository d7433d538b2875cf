package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/libtxbuild-go/evm"
	"github.com/bitfsorg/libtxbuild-go/report"
)

func evmFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "sender address", Required: true},
		&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
		&cli.StringFlag{Name: "key", Usage: "sender private key (hex)", EnvVars: []string{"TXB_EVM_KEY"}, Required: true},
		&cli.StringFlag{Name: "rpc-url", Usage: "EVM JSON-RPC endpoint"},
		&cli.Uint64Flag{Name: "gas-limit", Usage: "gas limit; 0 estimates"},
		&cli.StringFlag{Name: "max-fee", Usage: "max fee per gas in wei"},
		&cli.StringFlag{Name: "tip", Usage: "max priority fee per gas in wei"},
		&cli.BoolFlag{Name: "broadcast", Usage: "submit the primary and fee transactions"},
	}, extra...)
}

func parseBig(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q", name, s)
	}
	return v, nil
}

func optionalBig(c *cli.Context, name string) (*big.Int, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	return parseBig(name, c.String(name))
}

func evmOptions(c *cli.Context) (evm.Options, error) {
	maxFee, err := optionalBig(c, "max-fee")
	if err != nil {
		return evm.Options{}, err
	}
	tip, err := optionalBig(c, "tip")
	if err != nil {
		return evm.Options{}, err
	}
	return evm.Options{GasLimit: c.Uint64("gas-limit"), MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

// runEVM dials the node, builds the pair with fn and, with --broadcast,
// submits it.
func (a *cliApp) runEVM(c *cli.Context, fn func(b *evm.Builder, key string, opts evm.Options) (*report.PairResult, error)) error {
	key := c.String("key")
	url := a.cfg.EVMURL
	if c.IsSet("rpc-url") {
		url = c.String("rpc-url")
	}
	if url == "" {
		return fmt.Errorf("an EVM endpoint is required (--rpc-url or evmurl)")
	}
	client, err := ethclient.DialContext(c.Context, url)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer client.Close()

	flat, err := a.cfg.EVMFlatWei()
	if err != nil {
		return err
	}
	fees, err := evm.NewFeePolicy(a.cfg.EVMFeePercent, flat, a.cfg.EVMFeeCollector)
	if err != nil {
		return err
	}
	b, err := evm.New(evm.Config{
		Client:  client,
		ChainID: big.NewInt(a.cfg.EVMChainID),
		Fees:    fees,
		Logger:  a.log,
	})
	if err != nil {
		return err
	}
	opts, err := evmOptions(c)
	if err != nil {
		return err
	}

	res, err := fn(b, key, opts)
	if err != nil {
		return err
	}
	if !c.Bool("broadcast") {
		return printJSON(res)
	}
	sub, err := b.SubmitPair(c.Context, res)
	if err != nil {
		if sub != nil {
			// The primary is on the network; report it alongside the error.
			_ = printJSON(sub)
		}
		return err
	}
	return printJSON(struct {
		*report.PairResult
		Submitted *evm.Submission `json:"submitted"`
	}{res, sub})
}

func (a *cliApp) evmCommand() *cli.Command {
	return &cli.Command{
		Name:  "evm",
		Usage: "EVM transfers with a paired protocol fee transaction",
		Subcommands: []*cli.Command{
			{
				Name:  "native",
				Usage: "send wei",
				Flags: evmFlags(&cli.StringFlag{Name: "value", Usage: "wei", Required: true}),
				Action: func(c *cli.Context) error {
					value, err := parseBig("value", c.String("value"))
					if err != nil {
						return err
					}
					return a.runEVM(c, func(b *evm.Builder, key string, opts evm.Options) (*report.PairResult, error) {
						return b.NativeTransfer(c.Context, c.String("from"), c.String("to"), value, key, opts)
					})
				},
			},
			{
				Name:  "erc20",
				Usage: "transfer an ERC-20 token",
				Flags: evmFlags(
					&cli.StringFlag{Name: "token", Required: true},
					&cli.StringFlag{Name: "amount", Usage: "base units", Required: true},
				),
				Action: func(c *cli.Context) error {
					amount, err := parseBig("amount", c.String("amount"))
					if err != nil {
						return err
					}
					return a.runEVM(c, func(b *evm.Builder, key string, opts evm.Options) (*report.PairResult, error) {
						return b.ERC20Transfer(c.Context, c.String("from"), c.String("to"), c.String("token"), amount, key, opts)
					})
				},
			},
			{
				Name:  "erc721",
				Usage: "transfer an ERC-721 token",
				Flags: evmFlags(
					&cli.StringFlag{Name: "contract", Required: true},
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "safe", Usage: "use safeTransferFrom"},
				),
				Action: func(c *cli.Context) error {
					id, err := parseBig("id", c.String("id"))
					if err != nil {
						return err
					}
					return a.runEVM(c, func(b *evm.Builder, key string, opts evm.Options) (*report.PairResult, error) {
						return b.ERC721Transfer(c.Context, c.String("from"), c.String("to"), c.String("contract"), id, key,
							evm.NFTOptions{Options: opts, Safe: c.Bool("safe")})
					})
				},
			},
			{
				Name:  "erc1155",
				Usage: "transfer an ERC-1155 token",
				Flags: evmFlags(
					&cli.StringFlag{Name: "contract", Required: true},
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "data", Usage: "hex data argument", Value: "0x"},
				),
				Action: func(c *cli.Context) error {
					id, err := parseBig("id", c.String("id"))
					if err != nil {
						return err
					}
					amount, err := parseBig("amount", c.String("amount"))
					if err != nil {
						return err
					}
					data, err := hexutil.Decode(c.String("data"))
					if err != nil {
						return fmt.Errorf("invalid --data: %w", err)
					}
					return a.runEVM(c, func(b *evm.Builder, key string, opts evm.Options) (*report.PairResult, error) {
						return b.ERC1155Transfer(c.Context, c.String("from"), c.String("to"), c.String("contract"), id, amount, key,
							evm.NFTOptions{Options: opts, Data: data})
					})
				},
			},
		},
	}
}
