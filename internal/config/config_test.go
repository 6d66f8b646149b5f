package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Upstream.RateLimit.Interval)
	assert.Equal(t, 1, cfg.Upstream.RateLimit.Burst)
	assert.Equal(t, "both", cfg.Watch.Location)
	assert.Equal(t, "https://ntfy.sh", cfg.Notifications.Ntfy.Server)
	assert.Equal(t, 587, cfg.Notifications.SMTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, "palisades", cfg.Locations[0].Key)
	assert.Equal(t, "G6HG", cfg.Locations[0].InventoryID)
	assert.Equal(t, "alpine", cfg.Locations[1].Key)
	assert.Equal(t, "eauZ", cfg.Locations[1].InventoryID)
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_PW_TOPIC", "secret-topic")

	path := writeConfig(t, `
notifications:
  ntfy:
    topic: ${TEST_PW_TOPIC}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-topic", cfg.Notifications.Ntfy.Topic)
}

func TestLoad_EnvOverlayWinsOverFile(t *testing.T) {
	t.Setenv("NTFY_TOPIC", "from-env")
	t.Setenv("SMTP_PASS", "hunter2")
	t.Setenv("SMS_PHONE", "5551234567")
	t.Setenv("SMS_CARRIER", "verizon")

	path := writeConfig(t, `
notifications:
  ntfy:
    topic: from-file
  smtp:
    host: smtp.example.com
    password: stale
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Notifications.Ntfy.Topic)
	assert.Equal(t, "hunter2", cfg.Notifications.SMTP.Password)
	assert.Equal(t, "smtp.example.com", cfg.Notifications.SMTP.Host)
	assert.Equal(t, "5551234567", cfg.Notifications.SMS.Phone)
	assert.Equal(t, "verizon", cfg.Notifications.SMS.Carrier)
}

func TestLoad_FullWatchSection(t *testing.T) {
	path := writeConfig(t, `
watch:
  dates: ["2026-02-21", "weekend"]
  notify_dates: ["2026-02-21"]
  location: alpine
  interval: 5m
  stop_on_found: true
  heartbeat: true
upstream:
  rate_limit:
    interval: 10s
    burst: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-02-21", "weekend"}, cfg.Watch.Dates)
	assert.Equal(t, []string{"2026-02-21"}, cfg.Watch.NotifyDates)
	assert.Equal(t, "alpine", cfg.Watch.Location)
	assert.Equal(t, 5*time.Minute, cfg.Watch.Interval)
	assert.True(t, cfg.Watch.StopOnFound)
	assert.True(t, cfg.Watch.Heartbeat)
	assert.Equal(t, 10*time.Second, cfg.Upstream.RateLimit.Interval)
	assert.Equal(t, 2, cfg.Upstream.RateLimit.Burst)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown watch location",
			yaml: "watch:\n  location: mammoth\n",
			want: `watch.location "mammoth"`,
		},
		{
			name: "location missing inventory id",
			yaml: "locations:\n  - key: custom\n",
			want: "locations[0].inventory_id is required",
		},
		{
			name: "duplicate location key",
			yaml: "locations:\n  - {key: a, inventory_id: x}\n  - {key: a, inventory_id: y}\n",
			want: "duplicated",
		},
		{
			name: "bad log level",
			yaml: "logging:\n  level: verbose\n",
			want: `logging.level "verbose"`,
		},
		{
			name: "bad log format",
			yaml: "logging:\n  format: xml\n",
			want: `logging.format "xml"`,
		},
		{
			name: "sms phone without carrier",
			yaml: "notifications:\n  sms:\n    phone: \"5551234567\"\n",
			want: "notifications.sms.carrier is required",
		},
		{
			name: "negative watch interval",
			yaml: "watch:\n  interval: -1m\n",
			want: "watch.interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_CustomLocationLabelDefaultsToUpperKey(t *testing.T) {
	path := writeConfig(t, `
locations:
  - key: mammoth
    inventory_id: ZZZZ
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 1)
	assert.Equal(t, "MAMMOTH", cfg.Locations[0].Label)
}

func TestWatchedLocations(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	both := cfg.WatchedLocations()
	require.Len(t, both, 2)
	assert.Equal(t, domain.Location{
		Key: "palisades", Label: "PALISADES", InventoryID: "G6HG",
	}, both[0])

	cfg.Watch.Location = "alpine"
	one := cfg.WatchedLocations()
	require.Len(t, one, 1)
	assert.Equal(t, "alpine", one[0].Key)
}
