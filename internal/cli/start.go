package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velesbot/veles/internal/config"
	"github.com/velesbot/veles/internal/daemon"
	"github.com/velesbot/veles/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Veles daemon service",
	Long: `Start the Veles daemon service in the foreground.
The daemon processes messages from Telegram and the HTTP gateway.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if daemon.ProcessRunning(cfg.DataDir) {
		return fmt.Errorf("daemon is already running (PID file: %s)", daemon.PIDFilePath(cfg.DataDir))
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, loader, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Println("Veles daemon started")
	d.Wait()
	return nil
}
