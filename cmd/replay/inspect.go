package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/journal"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "decode a run journal",
	ArgsUsage: "<journal>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "timezone", Value: "Asia/Shanghai", Usage: "location of decoded timestamps"},
		&cli.BoolFlag{Name: "summary", Usage: "only count the records"},
	},
	Action: inspect,
}

func inspect(c *cli.Context) error {
	logger := loggerFrom(c)

	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	loc, err := time.LoadLocation(c.String("timezone"))
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("unable to open journal: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var fills, rejections, snapshots int
	r := journal.NewReader(f, loc)
	for {
		entry, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		summary := c.Bool("summary")
		switch {
		case entry.RunID != nil:
			logger.Info("run", zap.String("run_id", entry.RunID.String()))
		case entry.Fill != nil:
			fills++
			if !summary {
				logger.Info("fill", entry.Fill.Fields()...)
			}
		case entry.Rejection != nil:
			rejections++
			if !summary {
				logger.Info("rejection", entry.Rejection.Fields()...)
			}
		case entry.Snapshot != nil:
			snapshots++
			if !summary {
				logger.Info("snapshot", entry.Snapshot.Fields()...)
			}
		}
	}

	logger.Info("journal",
		zap.Int("fills", fills),
		zap.Int("rejections", rejections),
		zap.Int("snapshots", snapshots))
	return nil
}
