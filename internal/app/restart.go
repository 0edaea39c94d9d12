package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/systemd"
)

const defaultRestartDelay = 500 * time.Millisecond

// restarter restarts the process either through systemd or by asking the
// process to shut down and re-executing it afterwards.
type restarter struct {
	unit   string
	delay  time.Duration
	logger *slog.Logger

	// swapped in tests
	signalSelf  func() error
	restartUnit func(ctx context.Context, unit string) error

	mu      sync.Mutex
	pending bool
}

func newRestarter(unit string, delay time.Duration) *restarter {
	if delay <= 0 {
		delay = defaultRestartDelay
	}
	return &restarter{
		unit:        unit,
		delay:       delay,
		logger:      logging.GetLogger("main"),
		signalSelf:  sigtermSelf,
		restartUnit: restartSystemdUnit,
	}
}

func (r *restarter) restart(ctx context.Context) error {
	if r.unit != "" {
		r.logger.Info("Restarting systemd unit", "unit", r.unit)
		return r.restartUnit(ctx, r.unit)
	}

	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return nil
	}
	r.pending = true
	r.mu.Unlock()

	r.logger.Info("Restart requested", "delay", r.delay)
	go func() {
		time.Sleep(r.delay)
		if err := r.signalSelf(); err != nil {
			r.logger.Error("Failed to signal own process", "error", err)
		}
	}()
	return nil
}

func (r *restarter) isPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func restartSystemdUnit(ctx context.Context, unit string) error {
	m, err := systemd.NewManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.RestartUnit(ctx, unit)
}

func sigtermSelf() error {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func reexec() error {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start new process: %w", err)
	}
	return cmd.Process.Release()
}
