package main

import (
	"fmt"
	"os"

	"github.com/cenkalti/log"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"

	"github.com/selbt/sel"
	"github.com/selbt/sel/internal/diskio"
	"github.com/selbt/sel/internal/logger"
	"github.com/selbt/sel/internal/metainfo"
	"github.com/selbt/sel/internal/piece"
)

func main() {
	app := cli.NewApp()
	app.Name = "sel-check"
	app.Usage = "verify downloaded data against a torrent file"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:     "torrent,t",
			Usage:    "torrent file",
			Required: true,
		},
		cli.StringFlag{
			Name:     "data,d",
			Usage:    "downloaded data file",
			Required: true,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug log",
		},
	}
	app.Action = check
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func check(c *cli.Context) error {
	if c.Bool("debug") {
		logger.SetDebug()
	}
	torrentPath, err := homedir.Expand(c.String("torrent"))
	if err != nil {
		return err
	}
	dataPath, err := homedir.Expand(c.String("data"))
	if err != nil {
		return err
	}
	f, err := os.Open(torrentPath)
	if err != nil {
		return err
	}
	defer f.Close()
	mi, err := metainfo.New(f)
	if err != nil {
		return err
	}
	pieces := piece.NewPieces(&mi.Info)
	df, err := os.Open(dataPath)
	if err != nil {
		return err
	}
	defer df.Close()
	have := diskio.New(df, pieces, sel.DefaultConfig.ParallelWrites).Scan()
	fmt.Printf("%s: %d/%d pieces ok\n", mi.Info.Name, have.Count(), len(pieces))
	if !have.All() {
		return cli.NewExitError("data is incomplete", 1)
	}
	return nil
}
