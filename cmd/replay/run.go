package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/examples/strategy"
	"github.com/peter-kozarec/replay/pkg/config"
	"github.com/peter-kozarec/replay/pkg/datasource/duckdb"
	"github.com/peter-kozarec/replay/pkg/datasource/historical"
	"github.com/peter-kozarec/replay/pkg/datasource/synthetic"
	"github.com/peter-kozarec/replay/pkg/engine"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/journal"
	"github.com/peter-kozarec/replay/pkg/middleware"
	"github.com/peter-kozarec/replay/pkg/tools/bar"
	"github.com/peter-kozarec/replay/pkg/tools/metrics"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "replay a strategy over historical or synthetic bars",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "yaml, toml or json run config"},
		&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Value: "buyhold", Usage: "one of " + strings.Join(strategy.Names(), ", ")},
		&cli.StringFlag{Name: "duckdb", Usage: "duckdb database with bars, corporate_actions and securities tables"},
		&cli.StringFlag{Name: "bars", Usage: "directory of binary bar files"},
		&cli.Int64Flag{Name: "synthetic-seed", Value: 1, Usage: "seed of generated bars when no data is given"},
		&cli.IntFlag{Name: "synthetic-days", Value: 250, Usage: "trading days of generated bars"},
		&cli.BoolFlag{Name: "resample", Usage: "build daily bars from the minute bars of the data source"},
		&cli.StringFlag{Name: "journal", Usage: "write the binary run journal to this file"},
		&cli.StringFlag{Name: "report", Usage: "write the json report to this file"},
		&cli.StringSliceFlag{Name: "monitor", Usage: "bus events to log: bars, orders, rejections, fills, expiries, cancels, corporate_actions, snapshots, all"},
		&cli.BoolFlag{Name: "telemetry", Usage: "print handler timings after the run"},
	},
	Action: run,
}

func run(c *cli.Context) (err error) {
	logger := loggerFrom(c)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	market, closeMarket, err := openMarket(c, engineCfg, exchange.NewCatalog(rules))
	if err != nil {
		return err
	}
	defer closeMarket()
	if c.Bool("resample") {
		market.Source = bar.NewDailySource(market.Source)
	}

	options := cfg.EngineOptions()
	if names := c.StringSlice("monitor"); len(names) > 0 {
		options = append(options, engine.WithMonitor(middleware.NewMonitor(logger, middleware.ParseMonitorFlags(names))))
	}
	if c.Bool("telemetry") {
		telemetry := middleware.NewTelemetry(logger)
		options = append(options, engine.WithTelemetry(telemetry))
		defer telemetry.PrintStatistics()
	}

	if path := c.String("journal"); path != "" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return fmt.Errorf("unable to create journal: %w", createErr)
		}
		buf := bufio.NewWriter(f)
		defer func() {
			if flushErr := buf.Flush(); err == nil {
				err = flushErr
			}
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()
		options = append(options, engine.WithJournal(journal.NewWriter(buf)))
	}

	s, err := strategy.New(c.String("strategy"), engineCfg.Securities)
	if err != nil {
		return err
	}

	e, err := engine.NewEngine(logger, engineCfg, market, options...)
	if err != nil {
		return err
	}

	audit := metrics.NewAudit()
	router := e.Router()
	router.OnSnapshot = audit.WithSnapshot(router.OnSnapshot)
	router.OnOrderFill = audit.WithOrderFill(router.OnOrderFill)

	result, err := e.Run(c.Context, s)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted")
		}
		return err
	}
	audit.AddRealizations(result.Realizations...)

	report, err := audit.GenerateReport(engineCfg.Cash)
	if err != nil {
		return err
	}
	report.Print(logger)

	if path := c.String("report"); path != "" {
		if err := writeReport(path, metrics.Export{
			RunID:      result.RunID,
			Report:     report,
			History:    result.History,
			Fills:      result.Fills,
			Rejections: result.Rejections,
		}); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", path))
	}
	return nil
}

func openMarket(c *cli.Context, cfg engine.Config, catalog *exchange.Catalog) (engine.Market, func(), error) {
	switch {
	case c.String("duckdb") != "":
		return openDuckDB(c.Context, c.String("duckdb"), cfg, catalog)

	case c.String("bars") != "":
		dir := historical.NewDirectory(c.String("bars"), cfg.Start, cfg.End)
		return engine.Market{Source: dir, Catalog: catalog}, dir.Close, nil
	}

	start := cfg.Start
	if start.IsZero() {
		start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	}
	gen := synthetic.NewGenerator(c.Int64("synthetic-seed"), start, c.Int("synthetic-days"))
	for _, security := range cfg.Securities {
		info, err := catalog.Lookup(security)
		if err != nil {
			info = exchange.SymbolFromCode(security)
		}
		switch info.Board {
		case exchange.BoardStar, exchange.BoardGem:
			gen.Add(security, synthetic.Growth(40))
		default:
			gen.Add(security, synthetic.BlueChip(10))
		}
	}
	return engine.Market{Source: gen, Catalog: catalog}, func() {}, nil
}

func openDuckDB(ctx context.Context, path string, cfg engine.Config, catalog *exchange.Catalog) (engine.Market, func(), error) {
	r := duckdb.NewReader(path)
	if err := r.Connect(); err != nil {
		return engine.Market{}, nil, err
	}

	securities, err := r.LoadSecurities(ctx)
	if err != nil {
		r.Close()
		return engine.Market{}, nil, err
	}
	for _, info := range securities {
		catalog.Add(info)
	}

	src, err := r.LoadBars(ctx, cfg.Securities, cfg.Frequency, cfg.Start, cfg.End)
	if err != nil {
		r.Close()
		return engine.Market{}, nil, err
	}
	actions, err := r.LoadCorporateActions(ctx, cfg.Start, cfg.End)
	if err != nil {
		r.Close()
		return engine.Market{}, nil, err
	}
	return engine.Market{Source: src, Catalog: catalog, Actions: actions}, r.Close, nil
}

func writeReport(path string, export metrics.Export) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return metrics.WriteJSON(f, export)
}
