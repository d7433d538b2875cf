package main

import (
	"errors"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/libtxbuild-go/tagstore"
	"github.com/bitfsorg/libtxbuild-go/utxo"
)

func (a *cliApp) openTags() (*tagstore.Store, error) {
	return tagstore.OpenDir(a.cfg.DataDir)
}

func (a *cliApp) indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "manage stored asset classifications",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "load a JSON tag list into the tag store",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected one index file")
					}
					f, err := os.Open(c.Args().First())
					if err != nil {
						return err
					}
					defer f.Close()
					idx, err := utxo.LoadIndex(f)
					if err != nil {
						return err
					}
					tags := make([]utxo.Tag, 0, len(idx))
					for _, t := range idx {
						tags = append(tags, t)
					}

					store, err := a.openTags()
					if err != nil {
						return err
					}
					defer store.Close()
					if err := store.Put(tags...); err != nil {
						return err
					}
					a.log.WithField("tags", len(tags)).Info("index imported")
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "print stored classifications",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "asset", Usage: "only tags holding this asset"},
				},
				Action: func(c *cli.Context) error {
					store, err := a.openTags()
					if err != nil {
						return err
					}
					defer store.Close()
					var tags []utxo.Tag
					if asset := c.String("asset"); asset != "" {
						tags, err = store.ListByAsset(asset)
					} else {
						tags, err = store.List()
					}
					if err != nil {
						return err
					}
					return printJSON(tags)
				},
			},
		},
	}
}
