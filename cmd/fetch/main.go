package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/term"

	"kalshi-explorer/internal/cli"
	"kalshi-explorer/internal/config"
	"kalshi-explorer/internal/runner"
	"kalshi-explorer/internal/svc"
	"kalshi-explorer/pkg/kalshi"
)

func main() {
	var (
		configPath = flag.String("f", "etc/kalshi-explorer.yaml", "path to application configuration")
		resource   = flag.String("resource", "markets", "trades|markets|series|categories|tag|enriched")
		ticker     = flag.String("ticker", "", "market ticker (trades)")
		event      = flag.String("event", "", "event ticker (markets)")
		series     = flag.String("series", "", "series ticker (markets)")
		status     = flag.String("status", "", "market status filter (markets)")
		category   = flag.String("category", "", "series category (series, enriched)")
		tag        = flag.String("tag", "", "series tag (tag)")
		minTS      = flag.Int64("min-ts", 0, "minimum trade timestamp, unix seconds")
		maxTS      = flag.Int64("max-ts", 0, "maximum trade timestamp, unix seconds")
		fetchAll   = flag.Bool("all", false, "fetch all trades with the largest page size")
		maxPages   = flag.Int("max-pages", 0, "page ceiling, 0 uses the configured default")
		doArchive  = flag.Bool("archive", false, "store fetched records in postgres")
		output     = flag.String("o", "", "write records as JSON to this file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kalshi.Loaded() {
		// No Kalshi section: use etc/kalshi.yaml from the project root.
		cfg.Kalshi.Value = kalshi.MustLoad()
	}
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	cli.LogConfigSummary(cfg)

	svcCtx, err := svc.NewServiceContext(*cfg, svc.WithPassphrase(promptPassphrase))
	if err != nil {
		logx.Errorf("fetch: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *doArchive {
		if svcCtx.Archive == nil {
			logx.Error("fetch: -archive requires Postgres.DSN")
			os.Exit(1)
		}
		if err := svcCtx.Archive.EnsureSchema(ctx); err != nil {
			logx.Errorf("fetch: %v", err)
			os.Exit(1)
		}
	}

	client := svcCtx.Kalshi
	var records []kalshi.Record
	switch *resource {
	case "trades", "markets", "series":
		var job runner.Job
		switch *resource {
		case "trades":
			job = runner.TradesJob(kalshi.TradesFilter{Ticker: *ticker, MinTS: *minTS, MaxTS: *maxTS, FetchAll: *fetchAll, MaxPages: *maxPages})
		case "markets":
			job = runner.MarketsJob(kalshi.MarketsFilter{EventTicker: *event, SeriesTicker: *series, Status: *status, MaxPages: *maxPages})
		default:
			job = runner.SeriesJob(kalshi.SeriesFilter{Category: *category, MaxPages: *maxPages})
		}
		job.Archive = *doArchive
		out, err := runner.New(client, svcCtx.Archive, svcCtx.Journal).Run(ctx, job)
		if out != nil {
			records = out.Result.Records
			logx.Infof("fetch: %s state=%s pages=%d records=%d", *resource, out.Result.State, out.Result.Pages, len(records))
		}
		if err != nil {
			exitOnPartial(records, *output, err)
		}
		summarise(*resource, records)
	case "categories":
		categories, err := client.FetchSeriesCategories(ctx)
		if err != nil {
			logx.Errorf("fetch: categories: %v", err)
			os.Exit(1)
		}
		logx.Infof("fetch: %d categories: %s", len(categories), strings.Join(categories, ", "))
		return
	case "tag":
		if *tag == "" {
			logx.Error("fetch: -tag is required")
			os.Exit(2)
		}
		res, err := client.FetchSeriesByTag(ctx, *tag)
		records = res.Records
		if err != nil {
			exitOnPartial(records, *output, err)
		}
		logx.Infof("fetch: %d series tagged %q", len(records), *tag)
	case "enriched":
		records, err = client.FetchSeriesWithMarketData(ctx, *category)
		if err != nil {
			logx.Errorf("fetch: enriched series: %v", err)
			os.Exit(1)
		}
		logx.Infof("fetch: %d series enriched with market data", len(records))
	default:
		fmt.Fprintf(os.Stderr, "unknown resource %q\n", *resource)
		os.Exit(2)
	}

	if err := writeRecords(*output, records); err != nil {
		logx.Errorf("fetch: %v", err)
		os.Exit(1)
	}
}

func summarise(resource string, records []kalshi.Record) {
	switch resource {
	case "markets":
		groups := kalshi.GroupByEventTicker(records)
		logx.Infof("fetch: %d markets across %d events", len(records), groups.Len())
		for _, key := range groups.Keys() {
			logx.Infof("  %s: %d markets", key, len(groups.Get(key)))
		}
	case "series":
		groups := kalshi.GroupByCategory(records)
		for _, key := range groups.Keys() {
			logx.Infof("  %s: %d series", key, len(groups.Get(key)))
		}
		if tags := kalshi.UniqueTags(records); len(tags) > 0 {
			logx.Infof("fetch: tags: %s", strings.Join(tags, ", "))
		}
	}
}

// exitOnPartial keeps whatever was fetched before the failure, then exits.
func exitOnPartial(records []kalshi.Record, output string, err error) {
	logx.Errorf("fetch: aborted with %d records: %v", len(records), err)
	if werr := writeRecords(output, records); werr != nil {
		logx.Errorf("fetch: %v", werr)
	}
	os.Exit(1)
}

func writeRecords(path string, records []kalshi.Record) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logx.Infof("fetch: wrote %d records to %s", len(records), path)
	return nil
}

// promptPassphrase asks for the key passphrase on the terminal. It is only
// called for encrypted keys without a configured passphrase.
func promptPassphrase() ([]byte, error) {
	if p := os.Getenv("KALSHI_KEY_PASSPHRASE"); p != "" {
		return []byte(p), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("private key is encrypted and stdin is not a terminal; set KALSHI_KEY_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, "Private key passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return pass, err
}
