package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.CycleTimeout.Duration)
	assert.Equal(t, "#arabic", cfg.Capture.ReadySelector)
	assert.Equal(t, 5*time.Second, cfg.Capture.SettleDelay.Duration)
	assert.Equal(t, 1920, cfg.Capture.Width)
	assert.Equal(t, 1080, cfg.Capture.Height)
	assert.True(t, cfg.Capture.Headless)
	assert.Equal(t, "all", cfg.Wallpaper.Scope)
	assert.Equal(t, RestartOnFailure, cfg.Supervisor.Restart)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err, "loading nonexistent config should return defaults")
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval.Duration)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[schedule]
interval = "15m"

[capture]
document = "/srv/page.html"
settle_delay = "2s"
headless = false

[wallpaper]
command = ["feh", "--bg-fill", "{path}"]

[supervisor]
restart = "always"
max_restarts = 0

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.CycleTimeout.Duration, "unset fields keep defaults")
	assert.Equal(t, "/srv/page.html", cfg.Capture.Document)
	assert.Equal(t, 2*time.Second, cfg.Capture.SettleDelay.Duration)
	assert.False(t, cfg.Capture.Headless)
	assert.Equal(t, "#arabic", cfg.Capture.ReadySelector)
	assert.Equal(t, []string{"feh", "--bg-fill", "{path}"}, cfg.Wallpaper.Command)
	assert.Equal(t, RestartAlways, cfg.Supervisor.Restart)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
schedule:
  cron: "*/20 * * * *"
capture:
  ready_selector: "#verse"
  ready_timeout: 90s
paths:
  data_dir: /tmp/wallmon-data
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "*/20 * * * *", cfg.Schedule.Cron)
	assert.Equal(t, "#verse", cfg.Capture.ReadySelector)
	assert.Equal(t, 90*time.Second, cfg.Capture.ReadyTimeout.Duration)
	assert.Equal(t, "/tmp/wallmon-data", cfg.Paths.DataDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[schedule\ninterval = "), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[schedule]\ninterval = \"soon\"\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero interval", func(c *Config) { c.Schedule.Interval.Duration = 0 }, "schedule.interval"},
		{"cycle timeout exceeds interval", func(c *Config) { c.Schedule.Interval.Duration = 5 * time.Minute }, "cycle_timeout"},
		{"empty selector", func(c *Config) { c.Capture.ReadySelector = "" }, "ready_selector"},
		{"negative settle", func(c *Config) { c.Capture.SettleDelay.Duration = -time.Second }, "settle_delay"},
		{"zero width", func(c *Config) { c.Capture.Width = 0 }, "capture size"},
		{"bad scope", func(c *Config) { c.Wallpaper.Scope = "left" }, "wallpaper.scope"},
		{"bad restart", func(c *Config) { c.Supervisor.Restart = "sometimes" }, "supervisor.restart"},
		{"bad backoff", func(c *Config) { c.Supervisor.BackoffMax.Duration = time.Millisecond }, "backoff"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_CronSkipsIntervalCheck(t *testing.T) {
	cfg := Default()
	cfg.Schedule.Interval.Duration = 0
	cfg.Schedule.Cron = "@hourly"

	assert.NoError(t, cfg.Validate())
}

func TestSetInterval(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration // 0 keeps the default
		interval    time.Duration
		wantTimeout time.Duration
	}{
		{"short interval shrinks default timeout", 0, 5 * time.Minute, 150 * time.Second},
		{"seconds interval", 0, 5 * time.Second, 2500 * time.Millisecond},
		{"long interval keeps default timeout", 0, time.Hour, 10 * time.Minute},
		{"explicit timeout is kept", 2 * time.Minute, 5 * time.Minute, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Schedule.Cron = "@hourly"
			if tt.timeout > 0 {
				cfg.Schedule.CycleTimeout.Duration = tt.timeout
			}

			cfg.SetInterval(tt.interval)

			assert.Equal(t, tt.interval, cfg.Schedule.Interval.Duration)
			assert.Empty(t, cfg.Schedule.Cron)
			assert.Equal(t, tt.wantTimeout, cfg.Schedule.CycleTimeout.Duration)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestSetInterval_ExplicitTimeoutTooLongStillFails(t *testing.T) {
	cfg := Default()
	cfg.Schedule.CycleTimeout.Duration = 20 * time.Minute

	cfg.SetInterval(5 * time.Minute)

	assert.Equal(t, 20*time.Minute, cfg.Schedule.CycleTimeout.Duration)
	assert.ErrorContains(t, cfg.Validate(), "cycle_timeout")
}

func TestDefaultWallpaperCommand(t *testing.T) {
	assert.Contains(t, DefaultWallpaperCommand("linux"), "{uri}")
	assert.Equal(t, "osascript", DefaultWallpaperCommand("darwin")[0])
	assert.Nil(t, DefaultWallpaperCommand("plan9"))
}
