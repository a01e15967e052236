package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/velesbot/veles/internal/config"
	"github.com/velesbot/veles/internal/daemon"
)

var stopTimeout int

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Veles daemon service",
	Long: `Stop the Veles daemon service gracefully.
Sends SIGTERM to the daemon and waits for it to shut down.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for daemon to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pid, err := daemon.ReadPID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("daemon does not appear to be running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.ProcessRunning(cfg.DataDir) {
			fmt.Println("Daemon stopped successfully")
			_ = os.Remove(daemon.PIDFilePath(cfg.DataDir))
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Timeout reached, sending SIGKILL...")
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	_ = os.Remove(daemon.PIDFilePath(cfg.DataDir))
	fmt.Println("Daemon killed")
	return nil
}
