package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kalshi-explorer/internal/config"
	"kalshi-explorer/pkg/kalshi"
)

func TestConfigSummaryLinesRedactsSecrets(t *testing.T) {
	cfg := &config.Config{Env: "dev"}
	cfg.Kalshi.File = "/etc/kalshi.yaml"
	cfg.Kalshi.Value = &kalshi.Config{
		BaseURL:    kalshi.DefaultBaseURL,
		KeyFile:    "/keys/kalshi.pem",
		AccessKey:  "super-secret-access-key",
		Passphrase: "hunter2",
	}
	cfg.Cron.Tickers = []string{"KXA", "KXB"}

	joined := strings.Join(ConfigSummaryLines(cfg), "\n")
	assert.Contains(t, joined, "Environment: dev")
	assert.Contains(t, joined, "Kalshi config: /etc/kalshi.yaml")
	assert.Contains(t, joined, "Kalshi access key: configured")
	assert.Contains(t, joined, "Cron tickers: KXA, KXB")
	assert.NotContains(t, joined, "super-secret-access-key")
	assert.NotContains(t, joined, "hunter2")
}

func TestConfigSummaryLinesNil(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}
