package infra

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// LaunchdLabel is the launchd job label used on macOS.
const LaunchdLabel = "com.focusd.wallmon"

// SystemdUnitName is the systemd user unit used on Linux.
const SystemdUnitName = "wallmon.service"

// LaunchAgent plist template (runs as user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>{{if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>{{end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.StdoutPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.StderrPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	StdoutPath     string
	StderrPath     string
}

// commandRunner runs service manager commands (launchctl, systemctl).
// Swapped out in tests.
type commandRunner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NewAutostartManager returns the login-service manager for goos, or nil when
// the platform has none.
func NewAutostartManager(goos, home string, paths Paths) domain.AutostartManager {
	switch goos {
	case "darwin":
		return &LaunchdManager{
			plistPath: filepath.Join(home, "Library/LaunchAgents", LaunchdLabel+".plist"),
			logDir:    paths.LogDir,
			run:       execRunner,
		}
	case "linux":
		return &SystemdManager{
			unitPath: filepath.Join(home, ".config/systemd/user", SystemdUnitName),
			run:      execRunner,
		}
	}
	return nil
}

// LaunchdManager installs wallmon as a macOS LaunchAgent.
// launchd only starts the supervisor at login; restarting the worker is the supervisor's job.
type LaunchdManager struct {
	plistPath string
	logDir    string
	run       commandRunner
}

func (m *LaunchdManager) generatePlistContent(execPath, configPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		ConfigPath:     configPath,
		StdoutPath:     filepath.Join(m.logDir, "launchd.out.log"),
		StderrPath:     filepath.Join(m.logDir, "launchd.err.log"),
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist and loads it.
func (m *LaunchdManager) Install(execPath, configPath string) error {
	content, err := m.generatePlistContent(execPath, configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.plistPath), 0755); err != nil {
		return err
	}
	if err := WriteFileAtomic(m.plistPath, content, 0644); err != nil {
		return err
	}

	// Reload if a previous definition is loaded
	_ = m.run("launchctl", "unload", m.plistPath)
	return m.run("launchctl", "load", m.plistPath)
}

// Uninstall unloads and removes the plist.
func (m *LaunchdManager) Uninstall() error {
	// Ignore errors if not loaded
	_ = m.run("launchctl", "unload", m.plistPath)

	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsInstalled checks if plist is installed.
func (m *LaunchdManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// Path returns the plist file path.
func (m *LaunchdManager) Path() string {
	return m.plistPath
}

// SystemdManager installs wallmon as a systemd user unit.
type SystemdManager struct {
	unitPath string
	run      commandRunner
}

func (m *SystemdManager) unitOptions(execPath, configPath string) []*unit.UnitOption {
	argv := []string{execPath, "run"}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}

	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "wallmon wallpaper capture supervisor"),
		unit.NewUnitOption("Unit", "After", "graphical-session.target"),
		unit.NewUnitOption("Service", "Type", "notify"),
		unit.NewUnitOption("Service", "ExecStart", quoteExecArgs(argv)),
		unit.NewUnitOption("Service", "Restart", "no"),
		unit.NewUnitOption("Install", "WantedBy", "default.target"),
	}
}

// Install writes the unit file and enables it for the user session.
func (m *SystemdManager) Install(execPath, configPath string) error {
	content, err := io.ReadAll(unit.Serialize(m.unitOptions(execPath, configPath)))
	if err != nil {
		return fmt.Errorf("failed to serialize unit: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.unitPath), 0755); err != nil {
		return err
	}
	if err := WriteFileAtomic(m.unitPath, content, 0644); err != nil {
		return err
	}

	if err := m.run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.run("systemctl", "--user", "enable", "--now", SystemdUnitName)
}

// Uninstall disables the unit and removes the unit file.
func (m *SystemdManager) Uninstall() error {
	_ = m.run("systemctl", "--user", "disable", "--now", SystemdUnitName)

	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return m.run("systemctl", "--user", "daemon-reload")
}

// IsInstalled checks if the unit file exists.
func (m *SystemdManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// Path returns the unit file path.
func (m *SystemdManager) Path() string {
	return m.unitPath
}

// quoteExecArgs renders argv for ExecStart, double-quoting words with spaces.
func quoteExecArgs(argv []string) string {
	words := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\"\\") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		words[i] = a
	}
	return strings.Join(words, " ")
}

// Ensure both managers implement domain.AutostartManager.
var (
	_ domain.AutostartManager = (*LaunchdManager)(nil)
	_ domain.AutostartManager = (*SystemdManager)(nil)
)
