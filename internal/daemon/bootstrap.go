package daemon

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// CommandFactory builds the worker command. The command must not be started.
type CommandFactory func(ctx context.Context) *exec.Cmd

// WorkerCommand returns a factory that self-execs the hidden worker subcommand:
// wallmon worker <args...>
func WorkerCommand(executable string, args []string, stopTimeout time.Duration) CommandFactory {
	argv := append([]string{"worker"}, args...)
	return func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, executable, argv...)
		cmd.Env = os.Environ()
		gracefulStop(cmd, stopTimeout)
		return cmd
	}
}

// gracefulStop makes context cancellation interrupt the process first and
// kill it only after timeout.
func gracefulStop(cmd *exec.Cmd, timeout time.Duration) {
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = timeout
}
