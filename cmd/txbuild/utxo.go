package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/libtxbuild-go/builder"
	"github.com/bitfsorg/libtxbuild-go/network"
	"github.com/bitfsorg/libtxbuild-go/paymail"
	"github.com/bitfsorg/libtxbuild-go/tagstore"
	"github.com/bitfsorg/libtxbuild-go/tx"
	"github.com/bitfsorg/libtxbuild-go/utxo"
)

// utxoFlags are shared by every UTXO chain command.
func utxoFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "sender address; defaults to the key's address"},
		&cli.StringFlag{Name: "key", Usage: "sender WIF key", EnvVars: []string{"TXB_KEY"}, Required: true},
		&cli.StringFlag{Name: "dnssec", Usage: "resolve paymail SRV records through this DNSSEC validating server", EnvVars: []string{"TXB_DNSSEC"}},
		&cli.Uint64Flag{Name: "fee-rate", Usage: "miner fee rate in sat/byte; 0 queries the fee market"},
		&cli.StringFlag{Name: "priority", Usage: "fee market level: low, medium or high", Value: "medium"},
		&cli.StringFlag{Name: "backend", Usage: "rpc or mempool"},
		&cli.StringFlag{Name: "rpc-url", Usage: "node or REST endpoint"},
		&cli.StringFlag{Name: "rpc-user", Usage: "node RPC user"},
		&cli.StringFlag{Name: "rpc-pass", Usage: "node RPC password"},
		&cli.BoolFlag{Name: "broadcast", Usage: "submit the signed transaction"},
	}, extra...)
}

// utxoBuilder wires a builder from the configuration and command flags.
// Without an index file the tag store classifies units.
func (a *cliApp) utxoBuilder(c *cli.Context, tags *tagstore.Store) (*builder.Builder, error) {
	flags := a.cfg.RPC()
	if c.IsSet("backend") {
		flags.Backend = c.String("backend")
	}
	if c.IsSet("rpc-url") {
		flags.URL = c.String("rpc-url")
	}
	if c.IsSet("rpc-user") {
		flags.User = c.String("rpc-user")
	}
	if c.IsSet("rpc-pass") {
		flags.Password = c.String("rpc-pass")
	}
	// The environment was already folded into the configuration.
	rpc, err := network.ResolveConfig(flags, nil, a.cfg.Network)
	if err != nil {
		return nil, err
	}

	fees, err := builder.NewFeePolicy(a.cfg.FeePercent, a.cfg.FeeFlat, a.cfg.FeeCollector)
	if err != nil {
		return nil, err
	}
	var dnsr paymail.DNSResolver
	if addr := c.String("dnssec"); addr != "" {
		dnsr = paymail.NewDNSSECResolver(addr)
	}
	bc := builder.Config{
		Service:  network.NewService(*rpc),
		Fees:     fees,
		Resolver: paymail.NewResolver(dnsr, a.cfg.Network == "mainnet"),
		Indexer:  tags,
		Logger:   a.log,
	}
	if a.cfg.IndexFile != "" {
		f, err := os.Open(a.cfg.IndexFile)
		if err != nil {
			return nil, fmt.Errorf("open asset index: %w", err)
		}
		defer f.Close()
		idx, err := utxo.LoadIndex(f)
		if err != nil {
			return nil, err
		}
		bc.Indexer = idx
	}
	return builder.New(bc)
}

func feeHint(c *cli.Context) (builder.FeeHint, error) {
	p, err := network.ParsePriority(c.String("priority"))
	if err != nil {
		return builder.FeeHint{}, err
	}
	return builder.FeeHint{Rate: c.Uint64("fee-rate"), Priority: p}, nil
}

// sender returns --from or the compressed P2PKH address of --key.
func (a *cliApp) sender(c *cli.Context) (string, error) {
	if from := c.String("from"); from != "" {
		return from, nil
	}
	return tx.AddressFromKey(c.String("key"), a.cfg.Network == "mainnet")
}

// runUTXO builds req and, with --broadcast, submits it, drops the tags of
// the spent units and tags any returned token balance.
func (a *cliApp) runUTXO(c *cli.Context, req builder.Request) error {
	from, err := a.sender(c)
	if err != nil {
		return err
	}
	tags, err := a.openTags()
	if err != nil {
		return err
	}
	defer tags.Close()

	b, err := a.utxoBuilder(c, tags)
	if err != nil {
		return err
	}
	hint, err := feeHint(c)
	if err != nil {
		return err
	}
	if !c.Bool("broadcast") {
		res, err := b.Build(c.Context, from, req, c.String("key"), hint)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	res, err := b.Send(c.Context, from, req, c.String("key"), hint)
	if err != nil {
		return err
	}
	spent := make([]utxo.Outpoint, len(res.Inputs))
	for i, in := range res.Inputs {
		spent[i] = utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}
	}
	if err := tags.Delete(spent...); err != nil {
		a.log.WithError(err).Warn("tag store update failed")
	}
	if change := builder.AssetChangeTags(res); len(change) > 0 {
		if err := tags.Put(change...); err != nil {
			a.log.WithError(err).WithField("txid", res.TxID).Warn("asset change not tagged")
		}
	}
	return printJSON(res)
}

func (a *cliApp) sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "pay satoshis to an address",
		Flags: utxoFlags(
			&cli.StringFlag{Name: "to", Required: true},
			&cli.Uint64Flag{Name: "amount", Usage: "satoshis", Required: true},
		),
		Action: func(c *cli.Context) error {
			return a.runUTXO(c, builder.TransferRequest{To: c.String("to"), Amount: c.Uint64("amount")})
		},
	}
}

func (a *cliApp) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "transfer a fungible token held in an indexed unit",
		Flags: utxoFlags(
			&cli.StringFlag{Name: "symbol", Required: true},
			&cli.StringFlag{Name: "asset", Usage: "asset id", Required: true},
			&cli.Uint64Flag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "to", Usage: "destination address", Required: true},
			&cli.StringFlag{Name: "recipient", Usage: "recipient label"},
		),
		Action: func(c *cli.Context) error {
			return a.runUTXO(c, builder.TokenTransferRequest{
				Symbol:      c.String("symbol"),
				AssetID:     c.String("asset"),
				Amount:      c.Uint64("amount"),
				Recipient:   c.String("recipient"),
				Destination: c.String("to"),
			})
		},
	}
}

func (a *cliApp) inscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "inscribe",
		Usage: "inscribe content from a file or inline text",
		Flags: utxoFlags(
			&cli.StringFlag{Name: "content-type", Value: "text/plain;charset=utf-8"},
			&cli.StringFlag{Name: "file", Usage: "content file"},
			&cli.StringFlag{Name: "text", Usage: "inline content"},
		),
		Action: func(c *cli.Context) error {
			var content []byte
			switch {
			case c.IsSet("file"):
				data, err := os.ReadFile(c.String("file"))
				if err != nil {
					return err
				}
				content = data
			case c.IsSet("text"):
				content = []byte(c.String("text"))
			default:
				return fmt.Errorf("one of --file or --text is required")
			}
			return a.runUTXO(c, builder.InscriptionRequest{ContentType: c.String("content-type"), Content: content})
		},
	}
}

func (a *cliApp) overlayCommand() *cli.Command {
	return &cli.Command{
		Name:  "overlay",
		Usage: "overlay asset operations",
		Subcommands: []*cli.Command{
			{
				Name:  "send",
				Usage: "transfer an overlay asset",
				Flags: utxoFlags(
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.Uint64Flag{Name: "quantity", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "memo"},
				),
				Action: func(c *cli.Context) error {
					return a.runUTXO(c, builder.OverlayTransferRequest{
						Asset:       c.String("asset"),
						Quantity:    c.Uint64("quantity"),
						Memo:        c.String("memo"),
						Destination: c.String("to"),
					})
				},
			},
			{
				Name:  "issue",
				Usage: "issue a new overlay asset",
				Flags: utxoFlags(
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.Uint64Flag{Name: "quantity", Required: true},
					&cli.StringFlag{Name: "description"},
				),
				Action: func(c *cli.Context) error {
					return a.runUTXO(c, builder.OverlayIssueRequest{
						Asset:       c.String("asset"),
						Quantity:    c.Uint64("quantity"),
						Description: c.String("description"),
					})
				},
			},
		},
	}
}
