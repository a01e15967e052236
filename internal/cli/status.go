package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/velesbot/veles/internal/config"
	"github.com/velesbot/veles/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the current status of the Veles daemon service.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !daemon.ProcessRunning(cfg.DataDir) {
		fmt.Println("Status: stopped")
		return nil
	}

	pid, err := daemon.ReadPID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)

	// PID file mtime approximates the start time.
	if info, err := os.Stat(daemon.PIDFilePath(cfg.DataDir)); err == nil {
		fmt.Printf("Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
