package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "data/app.db", cfg.Store.Sqlite.Path)
	require.Equal(t, "mortgage.quote-inserted", cfg.Events.Topic)
	require.Equal(t, "log", cfg.Publish.Sink)
	require.Equal(t, "notification-email", cfg.Publish.Topic)
	require.Equal(t, 60, cfg.Notify.RateLimit.PerMinute)
	require.Equal(t, 3, cfg.Promotion.MaxAttempts)
	require.Equal(t, 900, cfg.Scraper.PollIntervalSec)
	require.Equal(t, 5, cfg.Scraper.MaxTries)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
publish:
  sink: webhook
  webhook:
    url: https://hooks.example.com/mail
scraper:
  enabled: true
  banks:
    - id: E798B0C6-5065-4804-ABD1-C8C4761CB745
      name: ING
      url: https://www.example.com/rates
`))
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "webhook", cfg.Publish.Sink)
	require.Equal(t, "https://hooks.example.com/mail", cfg.Publish.Webhook.URL)
	require.True(t, cfg.Scraper.Enabled)
	require.Len(t, cfg.Scraper.Banks, 1)
	require.Equal(t, "ING", cfg.Scraper.Banks[0].Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Events.Brokers)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Publish.Kafka.Brokers)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load(writeConfig(t, "{}"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
