package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
	"github.com/eliteGoblin/focusd/wallmon/internal/infra"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle    = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("245"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusRestart = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// statusReport is everything the status command shows.
type statusReport struct {
	Entry         *domain.RegistryEntry
	Supervisor    *domain.ProcessInfo // Nil when not running
	Worker        *domain.ProcessInfo // Nil when not running
	ArtifactPath  string
	ArtifactMod   time.Time // Zero when there is no artifact yet
	ErrorLogPath  string
	Autostart     bool
	AutostartPath string
	GeneratedAt   time.Time
}

func gatherStatus(
	paths infra.Paths,
	registry domain.ProcessRegistry,
	pm domain.ProcessManager,
	autostart domain.AutostartManager,
	now time.Time,
) (*statusReport, error) {
	report := &statusReport{
		ArtifactPath: paths.ArtifactPath(),
		ErrorLogPath: paths.ErrorLogPath(),
		GeneratedAt:  now,
	}

	entry, err := registry.Get()
	if err != nil {
		return nil, err
	}
	report.Entry = entry
	if entry != nil {
		if info, err := pm.Info(entry.SupervisorPID); err == nil && sameProcess(info, entry.SupervisorStartedAt) {
			report.Supervisor = info
		}
		if info, err := pm.Info(entry.WorkerPID); err == nil && sameProcess(info, entry.WorkerStartedAt) {
			report.Worker = info
		}
	}

	if fi, err := os.Stat(report.ArtifactPath); err == nil {
		report.ArtifactMod = fi.ModTime()
	}
	if autostart != nil {
		report.Autostart = autostart.IsInstalled()
		report.AutostartPath = autostart.Path()
	}
	return report, nil
}

// pidSlack covers the gap between spawning a process and recording it, plus
// the coarse process start times some platforms report.
const pidSlack = 2 * time.Second

// sameProcess reports whether info is the process recorded at recordedAt.
// A PID reused after that process exited belongs to a process created later.
func sameProcess(info *domain.ProcessInfo, recordedAt time.Time) bool {
	if recordedAt.IsZero() || info.CreatedAt.IsZero() {
		return true
	}
	return !info.CreatedAt.After(recordedAt.Add(pidSlack))
}

func (r *statusReport) state() string {
	switch {
	case r.Supervisor == nil:
		return statusStopped.Render("NOT RUNNING")
	case r.Worker == nil:
		return statusRestart.Render("DEGRADED (worker down)")
	default:
		return statusRunning.Render("RUNNING")
	}
}

func renderStatus(w io.Writer, r *statusReport) {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("wallmon status"))
	b.WriteString("\n\n")
	row("Status", r.state())

	if r.Supervisor != nil {
		row("Supervisor", processLine(r.Supervisor, r.GeneratedAt))
	}
	if r.Worker != nil {
		row("Worker", processLine(r.Worker, r.GeneratedAt))
	}
	if r.Entry != nil {
		restarts := fmt.Sprintf("%d", r.Entry.Restarts)
		if r.Entry.Restarts > 0 {
			restarts = statusRestart.Render(restarts)
		}
		row("Restarts", restarts)
		if r.Entry.LastExitCode != nil {
			code := fmt.Sprintf("%d", *r.Entry.LastExitCode)
			if *r.Entry.LastExitCode != 0 {
				code = statusFailed.Render(code)
			}
			row("Last exit", code)
		}
	}

	if r.ArtifactMod.IsZero() {
		row("Wallpaper", statusStopped.Render("not captured yet"))
	} else {
		age := r.GeneratedAt.Sub(r.ArtifactMod).Round(time.Second)
		row("Wallpaper", fmt.Sprintf("%s (updated %s ago)", r.ArtifactPath, age))
	}
	row("Error log", r.ErrorLogPath)

	if r.AutostartPath != "" {
		if r.Autostart {
			row("Autostart", statusRunning.Render("enabled")+" "+r.AutostartPath)
		} else {
			row("Autostart", statusStopped.Render("disabled"))
		}
	}

	if r.Supervisor == nil {
		b.WriteString("\nRun 'wallmon run' or 'wallmon autostart install' to start.\n")
	}
	fmt.Fprint(w, b.String())
}

func processLine(p *domain.ProcessInfo, now time.Time) string {
	line := fmt.Sprintf("pid %d", p.PID)
	if !p.CreatedAt.IsZero() {
		line += fmt.Sprintf(", up %s", now.Sub(p.CreatedAt).Round(time.Second))
	}
	if p.RSSBytes > 0 {
		line += fmt.Sprintf(", %.1f MiB", float64(p.RSSBytes)/(1024*1024))
	}
	return line
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	paths := infra.ResolvePaths(cfg.Paths.DataDir, cfg.Paths.LogDir)

	var autostart domain.AutostartManager
	if home, err := os.UserHomeDir(); err == nil {
		autostart = infra.NewAutostartManager(runtime.GOOS, home, paths)
	}

	report, err := gatherStatus(paths, infra.NewFileRegistry(paths.RegistryPath()), infra.NewProcessManager(), autostart, time.Now())
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	renderStatus(os.Stdout, report)
	return nil
}
