// Package main is the CLI entry point for wallmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/config"
	"github.com/eliteGoblin/focusd/wallmon/internal/daemon"
	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
	"github.com/eliteGoblin/focusd/wallmon/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wallmon",
	Short: "Renders a web page and keeps it as your desktop wallpaper",
	Long: `wallmon renders a document in headless Chrome on a fixed schedule,
screenshots it, and sets the screenshot as the desktop wallpaper.

'wallmon run' starts a supervisor that keeps the capture worker alive
and writes everything the worker prints to a dated log file.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisor and capture worker in the foreground",
	Long: `Starts the supervisor, which spawns the capture worker and restarts it
according to the configured restart policy. Stop with Ctrl-C or SIGTERM.`,
	RunE: runRun,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run one capture cycle now",
	Long:  `Renders the document, writes the screenshot and applies it as wallpaper once, then exits.`,
	RunE:  runCapture,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor, worker and wallpaper status",
	RunE:  runStatus,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting wallmon at login",
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Start 'wallmon run' at login (LaunchAgent on macOS, systemd user unit on Linux)",
	RunE:  runAutostartInstall,
}

var autostartUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop starting wallmon at login",
	RunE:  runAutostartUninstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden worker command - the supervisor self-execs it
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	RunE:   runWorker,
}

var (
	configPath string
	jsonOutput bool
	overrides  flagOverrides
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&overrides.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	for _, c := range []*cobra.Command{runCmd, workerCmd, captureCmd} {
		c.Flags().DurationVar(&overrides.interval, "interval", 0, "Time between cycles (overrides config)")
		c.Flags().StringVar(&overrides.document, "document", "", "URL or file path to render (overrides config)")
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	autostartCmd.AddCommand(autostartInstallCmd)
	autostartCmd.AddCommand(autostartUninstallCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	paths := infra.ResolvePaths(cfg.Paths.DataDir, cfg.Paths.LogDir)

	// Log file setup failure is fatal: nothing could be recorded.
	logFile, err := infra.OpenDatedLog(paths, time.Now())
	if err != nil {
		return err
	}
	defer logFile.Close()

	sink := infra.NewLogSink(logFile, os.Stdout, os.Stderr)
	defer func() { _ = sink.Sync() }()
	sink.Record(domain.LogRecord{
		Time:    time.Now(),
		Stream:  domain.StreamLifecycle,
		Message: fmt.Sprintf("starting wallpaper service (wallmon %s, pid %d)", Version, os.Getpid()),
	})

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	registry := infra.NewFileRegistry(paths.RegistryPath())
	if err := registry.RegisterSupervisor(os.Getpid(), Version); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	defer func() { _ = registry.Clear() }()

	sup := daemon.NewSupervisor(
		supervisorConfig(cfg),
		daemon.WorkerCommand(executable, workerArgs(cmd), cfg.Supervisor.StopTimeout.Duration),
		sink,
		registry,
	)

	ctx, cancel := signalContext()
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return err
	}
	return sup.Wait()
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// No timestamps: the supervisor stamps every line it reads.
	logger := infra.NewConsoleLogger(os.Stdout, os.Stderr, cfg.LogLevel(), false)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	w, closeFn, err := newWorker(cfg, time.Now(), logger)
	if err != nil {
		logger.Error("worker setup failed", zap.Error(err))
		return err
	}
	defer closeFn()

	return w.Run(ctx)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := infra.NewConsoleLogger(os.Stdout, os.Stderr, cfg.LogLevel(), true)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	w, closeFn, err := newWorker(cfg, time.Now(), logger)
	if err != nil {
		return err
	}
	defer closeFn()

	cycle, err := w.RunOnce(ctx)
	if err != nil {
		return err
	}
	if cycle.Err != nil {
		return fmt.Errorf("capture failed: %w", cycle.Err)
	}
	fmt.Printf("Wallpaper updated from %s in %s\n", cycle.ArtifactPath, cycle.Duration().Round(time.Millisecond))
	return nil
}

func runAutostartInstall(cmd *cobra.Command, args []string) error {
	mgr, err := autostartManager(cmd)
	if err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}

	// Only pin the config file if there is one; otherwise run with defaults.
	cfgArg := ""
	if _, err := os.Stat(configPath); err == nil {
		if cfgArg, err = filepath.Abs(configPath); err != nil {
			return err
		}
	}

	if err := mgr.Install(executable, cfgArg); err != nil {
		return fmt.Errorf("failed to install autostart: %w", err)
	}
	fmt.Printf("Autostart installed: %s\n", mgr.Path())
	return nil
}

func runAutostartUninstall(cmd *cobra.Command, args []string) error {
	mgr, err := autostartManager(cmd)
	if err != nil {
		return err
	}
	if !mgr.IsInstalled() {
		fmt.Println("Autostart is not installed.")
		return nil
	}
	if err := mgr.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall autostart: %w", err)
	}
	fmt.Printf("Autostart removed: %s\n", mgr.Path())
	return nil
}

func autostartManager(cmd *cobra.Command) (domain.AutostartManager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	mgr := infra.NewAutostartManager(runtime.GOOS, home, infra.ResolvePaths(cfg.Paths.DataDir, cfg.Paths.LogDir))
	if mgr == nil {
		return nil, errors.New("autostart is not supported on " + runtime.GOOS)
	}
	return mgr, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s","go":"%s"}`+"\n",
			Version, Commit, BuildTime, runtime.Version())
	} else {
		fmt.Printf("wallmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
