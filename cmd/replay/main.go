package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/internal/dbg"
)

const Version = "0.3.0"

type loggerKey struct{}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "replay",
		Version: Version,
		Usage:   "deterministic bar replay backtester",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "dev", Usage: "human readable console logs"},
		},
		Before: func(c *cli.Context) error {
			logger, err := dbg.NewLogger(c.Bool("dev"), c.String("log-level"))
			if err != nil {
				return err
			}
			c.Context = context.WithValue(c.Context, loggerKey{}, logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if logger, ok := c.Context.Value(loggerKey{}).(*zap.Logger); ok {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			inspectCommand,
		},
	}
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if logger, ok := c.Context.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}
