// Package config handles TOML/YAML configuration loading with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Restart policies for the supervisor.
const (
	RestartNever     = "never"
	RestartOnFailure = "on-failure"
	RestartAlways    = "always"
)

// Config is the top-level configuration for wallmon.
type Config struct {
	Schedule   ScheduleConfig   `toml:"schedule" yaml:"schedule"`
	Capture    CaptureConfig    `toml:"capture" yaml:"capture"`
	Wallpaper  WallpaperConfig  `toml:"wallpaper" yaml:"wallpaper"`
	Supervisor SupervisorConfig `toml:"supervisor" yaml:"supervisor"`
	Paths      PathsConfig      `toml:"paths" yaml:"paths"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// ScheduleConfig controls how often the worker runs a cycle.
type ScheduleConfig struct {
	Interval     Duration `toml:"interval" yaml:"interval"`
	Cron         string   `toml:"cron" yaml:"cron"` // Standard cron spec; overrides Interval when set
	CycleTimeout Duration `toml:"cycle_timeout" yaml:"cycle_timeout"`
}

// CaptureConfig controls the headless render of the content page.
type CaptureConfig struct {
	Document      string   `toml:"document" yaml:"document"` // URL or file path; empty means <data_dir>/wallpaper.html
	ReadySelector string   `toml:"ready_selector" yaml:"ready_selector"`
	ReadyTimeout  Duration `toml:"ready_timeout" yaml:"ready_timeout"`
	SettleDelay   Duration `toml:"settle_delay" yaml:"settle_delay"`
	Width         int      `toml:"width" yaml:"width"`
	Height        int      `toml:"height" yaml:"height"`
	ChromePath    string   `toml:"chrome_path" yaml:"chrome_path"`
	Headless      bool     `toml:"headless" yaml:"headless"`
	NoSandbox     bool     `toml:"no_sandbox" yaml:"no_sandbox"`
}

// WallpaperConfig controls the wallpaper applier command.
type WallpaperConfig struct {
	Command []string `toml:"command" yaml:"command"` // argv with {path} and {uri} placeholders
	Scope   string   `toml:"scope" yaml:"scope"`
}

// SupervisorConfig controls worker restarts.
type SupervisorConfig struct {
	Restart        string   `toml:"restart" yaml:"restart"`
	MaxRestarts    int      `toml:"max_restarts" yaml:"max_restarts"` // Per RestartWindow; 0 means unlimited
	RestartWindow  Duration `toml:"restart_window" yaml:"restart_window"`
	BackoffInitial Duration `toml:"backoff_initial" yaml:"backoff_initial"`
	BackoffMax     Duration `toml:"backoff_max" yaml:"backoff_max"`
	StableAfter    Duration `toml:"stable_after" yaml:"stable_after"`
	StopTimeout    Duration `toml:"stop_timeout" yaml:"stop_timeout"`
}

// PathsConfig overrides the default file layout.
type PathsConfig struct {
	DataDir string `toml:"data_dir" yaml:"data_dir"`
	LogDir  string `toml:"log_dir" yaml:"log_dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Duration wraps time.Duration for text parsing (e.g. "5m", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Interval:     Duration{30 * time.Minute},
			CycleTimeout: Duration{10 * time.Minute},
		},
		Capture: CaptureConfig{
			ReadySelector: "#arabic",
			ReadyTimeout:  Duration{60 * time.Second},
			SettleDelay:   Duration{5 * time.Second},
			Width:         1920,
			Height:        1080,
			Headless:      true,
			NoSandbox:     true,
		},
		Wallpaper: WallpaperConfig{
			Command: DefaultWallpaperCommand(runtime.GOOS),
			Scope:   "all",
		},
		Supervisor: SupervisorConfig{
			Restart:        RestartOnFailure,
			MaxRestarts:    5,
			RestartWindow:  Duration{10 * time.Minute},
			BackoffInitial: Duration{1 * time.Second},
			BackoffMax:     Duration{5 * time.Minute},
			StableAfter:    Duration{1 * time.Minute},
			StopTimeout:    Duration{10 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultWallpaperCommand returns the wallpaper command line for an OS, or nil if unknown.
func DefaultWallpaperCommand(goos string) []string {
	switch goos {
	case "linux":
		return []string{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", "{uri}"}
	case "darwin":
		return []string{"osascript", "-e",
			`tell application "System Events" to tell every desktop to set picture to "{path}"`}
	default:
		return nil
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "wallmon", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SetInterval switches the schedule to a fixed interval. A cycle_timeout still at
// its default is cut to half the interval when it would not fit inside it.
func (c *Config) SetInterval(d time.Duration) {
	c.Schedule.Interval = Duration{d}
	c.Schedule.Cron = ""

	def := Default().Schedule.CycleTimeout
	if d > 0 && c.Schedule.CycleTimeout == def && def.Duration >= d {
		c.Schedule.CycleTimeout = Duration{d / 2}
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Schedule.Cron == "" {
		if c.Schedule.Interval.Duration <= 0 {
			errs = append(errs, errors.New("schedule.interval must be positive"))
		} else if c.Schedule.CycleTimeout.Duration >= c.Schedule.Interval.Duration {
			errs = append(errs, fmt.Errorf("schedule.cycle_timeout (%s) must be shorter than schedule.interval (%s)",
				c.Schedule.CycleTimeout.Duration, c.Schedule.Interval.Duration))
		}
	}
	if c.Schedule.CycleTimeout.Duration <= 0 {
		errs = append(errs, errors.New("schedule.cycle_timeout must be positive"))
	}

	if c.Capture.ReadySelector == "" {
		errs = append(errs, errors.New("capture.ready_selector is required"))
	}
	if c.Capture.ReadyTimeout.Duration <= 0 {
		errs = append(errs, errors.New("capture.ready_timeout must be positive"))
	}
	if c.Capture.SettleDelay.Duration < 0 {
		errs = append(errs, errors.New("capture.settle_delay must not be negative"))
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, fmt.Errorf("capture size %dx%d is invalid", c.Capture.Width, c.Capture.Height))
	}

	switch c.Wallpaper.Scope {
	case "all", "main":
	default:
		errs = append(errs, fmt.Errorf("wallpaper.scope %q must be all or main", c.Wallpaper.Scope))
	}

	switch c.Supervisor.Restart {
	case RestartNever, RestartOnFailure, RestartAlways:
	default:
		errs = append(errs, fmt.Errorf("supervisor.restart %q must be one of never, on-failure, always", c.Supervisor.Restart))
	}
	if c.Supervisor.MaxRestarts < 0 {
		errs = append(errs, errors.New("supervisor.max_restarts must not be negative"))
	}
	if c.Supervisor.MaxRestarts > 0 && c.Supervisor.RestartWindow.Duration <= 0 {
		errs = append(errs, errors.New("supervisor.restart_window must be positive when max_restarts is set"))
	}
	if c.Supervisor.BackoffInitial.Duration <= 0 || c.Supervisor.BackoffMax.Duration < c.Supervisor.BackoffInitial.Duration {
		errs = append(errs, errors.New("supervisor backoff must satisfy 0 < backoff_initial <= backoff_max"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
