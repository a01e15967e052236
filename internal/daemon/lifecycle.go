package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LifecycleManager owns the PID file so the CLI can find and signal a
// running daemon.
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

// NewLifecycleManager creates a lifecycle manager for the daemon.
func NewLifecycleManager(d *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:  d,
		pidFile: PIDFilePath(d.config.DataDir),
	}
}

// PIDFilePath returns the PID file location for a data directory.
func PIDFilePath(dataDir string) string {
	return filepath.Join(dataDir, "veles.pid")
}

// Start writes the PID file.
func (l *LifecycleManager) Start() error {
	if err := os.MkdirAll(l.daemon.config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	zl := l.daemon.logger.GetZerolog()
	zl.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")
	return nil
}

// Stop removes the PID file.
func (l *LifecycleManager) Stop() error {
	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// ReadPID reads a daemon PID from the data directory's PID file.
func ReadPID(dataDir string) (int, error) {
	data, err := os.ReadFile(PIDFilePath(dataDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// ProcessRunning reports whether the PID from the data directory's PID file
// points at a live process.
func ProcessRunning(dataDir string) bool {
	pid, err := ReadPID(dataDir)
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for liveness.
	return process.Signal(syscall.Signal(0)) == nil
}
