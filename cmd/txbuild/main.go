// Command txbuild builds, signs and optionally broadcasts transactions on a
// UTXO chain and on EVM chains.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/libtxbuild-go/config"
)

type cliApp struct {
	cfg      config.Config
	log      *logrus.Logger
	closeLog func() error
}

func main() {
	a := &cliApp{}
	app := &cli.App{
		Name:  "txbuild",
		Usage: "build and sign fee-aware transactions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Usage: "configuration directory", Value: config.DefaultDataDir(), EnvVars: []string{"TXB_DATADIR"}},
			&cli.StringFlag{Name: "network", Usage: "mainnet, testnet or regtest"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Before: a.setup,
		After:  a.teardown,
		Commands: []*cli.Command{
			a.initCommand(),
			a.sendCommand(),
			a.tokenCommand(),
			a.inscribeCommand(),
			a.overlayCommand(),
			a.evmCommand(),
			a.indexCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "txbuild:", err)
		os.Exit(1)
	}
}

func (a *cliApp) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("datadir"))
	if err != nil {
		return err
	}
	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	logger, closeLog, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closeLog = cfg, logger, closeLog
	return nil
}

func (a *cliApp) teardown(*cli.Context) error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

func (a *cliApp) initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write the effective configuration to the data directory",
		Action: func(c *cli.Context) error {
			path := config.ConfigPath(a.cfg.DataDir)
			if err := config.SaveConfig(path, a.cfg); err != nil {
				return err
			}
			a.log.WithField("path", path).Info("configuration written")
			return nil
		},
	}
}

// printJSON writes v to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
