package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"kalshi-explorer/internal/cli"
	"kalshi-explorer/internal/config"
	"kalshi-explorer/internal/runner"
	"kalshi-explorer/internal/svc"
	"kalshi-explorer/pkg/kalshi"
)

const (
	defaultMarketsInterval = 5 * time.Minute
	defaultTradesInterval  = time.Minute
	runTimeout             = 2 * time.Minute  // Upper bound for one paginated fetch
	shutdownTimeout        = 10 * time.Second // Grace period for shutdown
)

func main() {
	configPath := flag.String("f", "etc/kalshi-explorer.yaml", "path to application configuration")
	flag.Parse()

	appCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logx.MustSetup(appCfg.Log)
	logx.DisableStat()
	logx.Info("[main] Starting kalshi snapshotter...")
	cli.LogConfigSummary(appCfg)

	svcCtx := svc.MustNewServiceContext(*appCfg)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if svcCtx.Archive != nil {
		if err := svcCtx.Archive.EnsureSchema(ctx); err != nil {
			logx.Errorf("[main] ensure archive schema: %v", err)
			os.Exit(1)
		}
	}

	run := runner.New(svcCtx.Kalshi, svcCtx.Archive, svcCtx.Journal)
	marketsInterval := orDefault(appCfg.Cron.MarketsInterval, defaultMarketsInterval)
	tradesInterval := orDefault(appCfg.Cron.TradesInterval, defaultTradesInterval)
	logx.Infof("[main] intervals: markets=%s trades=%s tickers=%v", marketsInterval, tradesInterval, appCfg.Cron.Tickers)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		every(ctx, "markets", marketsInterval, func(ctx context.Context) {
			snapshotMarkets(ctx, run, appCfg.Cron.MarketStatus)
		})
	}()

	if len(appCfg.Cron.Tickers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, "trades", tradesInterval, func(ctx context.Context) {
				snapshotTrades(ctx, run, appCfg.Cron.Tickers, tradesInterval)
			})
		}()
	}

	logx.Info("[main] Snapshotter started. Press Ctrl+C to stop.")

	<-ctx.Done()
	logx.Info("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		logx.Info("[main] Shutdown timeout exceeded, forcing exit")
	}
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			logx.Infof("[%s] stopping", name)
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func snapshotMarkets(parentCtx context.Context, run *runner.Runner, status string) {
	if parentCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, runTimeout)
	defer cancel()

	job := runner.MarketsJob(kalshi.MarketsFilter{Status: status})
	job.Archive = true
	out, err := run.Run(ctx, job)
	if err != nil || out == nil {
		return
	}
	groups := kalshi.GroupByEventTicker(out.Result.Records)
	logx.Infof("[markets] %d markets across %d events, %d new", out.Result.Len(), groups.Len(), out.Archived)
}

// snapshotTrades pulls trades from the last window for each ticker.
func snapshotTrades(parentCtx context.Context, run *runner.Runner, tickers []string, window time.Duration) {
	now := time.Now()
	for _, ticker := range tickers {
		if parentCtx.Err() != nil {
			return
		}
		func(ticker string) {
			ctx, cancel := context.WithTimeout(parentCtx, runTimeout)
			defer cancel()

			job := runner.TradesJob(kalshi.TradesFilter{
				Ticker: ticker,
				MinTS:  now.Add(-2 * window).Unix(),
				MaxTS:  now.Unix(),
			})
			job.Archive = true
			if out, err := run.Run(ctx, job); err == nil && out != nil {
				logx.Infof("[trades.%s] %d trades, %d new", ticker, out.Result.Len(), out.Archived)
			}
		}(ticker)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
