package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"kalshi-explorer/internal/config"
	"kalshi-explorer/pkg/confkit"
	"kalshi-explorer/pkg/kalshi"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config. Secrets are reported by presence only.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		sectionLine("Kalshi config", cfg.Kalshi),
	}
	if k := cfg.Kalshi.Value; k != nil {
		lines = append(lines, KalshiSummaryLines(k)...)
	}
	lines = append(lines,
		fmt.Sprintf("Cron intervals (markets/trades): %s / %s", cfg.Cron.MarketsInterval, cfg.Cron.TradesInterval),
		fmt.Sprintf("Cron tickers: %s", listOrNone(cfg.Cron.Tickers)),
		fmt.Sprintf("Journal dir: %s", cfg.JournalDir()),
	)
	return lines
}

// KalshiSummaryLines describes the API section without exposing key material.
func KalshiSummaryLines(k *kalshi.Config) []string {
	if k == nil {
		return nil
	}
	return []string{
		fmt.Sprintf("Kalshi base URL: %s", k.BaseURL),
		fmt.Sprintf("Kalshi key file: %s", k.KeyFile),
		fmt.Sprintf("Kalshi access key: %s", presence(k.AccessKey != "")),
		fmt.Sprintf("Kalshi passphrase: %s", presence(k.Passphrase != "")),
		fmt.Sprintf("Kalshi paging (size/max pages/markets max pages): %d / %d / %d", k.PageSize, k.MaxPages, k.MarketsMaxPages),
		fmt.Sprintf("Kalshi retries: %d", k.Retry.MaxRetries),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
