package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/velesbot/veles/internal/config"
	"github.com/velesbot/veles/internal/logger"
	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/internal/telegram"
	"github.com/velesbot/veles/internal/tracing"
	"github.com/velesbot/veles/pkg/agentloop"
	"github.com/velesbot/veles/pkg/events"
	"github.com/velesbot/veles/pkg/gateway"
	"github.com/velesbot/veles/pkg/session"
	"github.com/velesbot/veles/pkg/turnqueue"
)

// Daemon assembles and runs the Veles service: session store, agent loop,
// run coordinator, inbound channels and the live queue policy.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store        *session.Store
	hub          *events.Hub
	eventService *events.Service
	loop         *agentloop.Loop
	coordinator  *turnqueue.Coordinator
	policy       *config.LivePolicy
	cleanup      *session.Cleanup

	gatewayServer *gateway.Server
	telegramBot   *telegram.Bot

	lifecycle *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New creates a daemon from the loaded configuration. The loader is kept so
// the queue policy can re-read the config file on change.
func New(cfg *config.Config, loader *config.Loader, log *logger.Logger) (*Daemon, error) {
	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
	}

	if err := tracing.Init(tracing.Config{
		ServiceName: "veles-daemon",
		SampleRatio: cfg.Tracing.SampleRatio,
	}); err != nil {
		zl := log.GetZerolog()
		zl.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
	} else {
		d.tracingEnabled = true
	}

	auditPath := filepath.Join(cfg.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		zl := log.GetZerolog()
		zl.Warn().Err(err).Msg("Failed to initialize audit logger, using stderr")
	}

	if err := d.initialize(loader); err != nil {
		if d.tracingEnabled {
			_ = tracing.Shutdown(context.Background())
			d.tracingEnabled = false
		}
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(d)
	return d, nil
}

func (d *Daemon) initialize(loader *config.Loader) error {
	log := d.logger.GetZerolog()

	sessionDir := d.config.Session.Dir
	if sessionDir == "" {
		sessionDir = filepath.Join(d.config.DataDir, "sessions")
	}
	store, err := session.NewStore(sessionDir)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	d.store = store
	log.Info().Str("dir", sessionDir).Msg("Session store initialized")

	d.hub = events.NewHub()
	d.eventService = events.NewService(d.hub)

	// Telegram comes up before the agent loop so its responder can carry
	// replies back to the originating chat.
	var responder agentloop.Responder = agentloop.ResponderFunc(
		func(context.Context, session.Message, string) error { return nil },
	)
	if d.config.Channels.Telegram.Enabled {
		bot, err := telegram.New(&d.config.Telegram, log)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		d.telegramBot = bot
		responder = telegram.NewResponder(bot)
	}

	profile, err := d.config.Profile()
	if err != nil {
		return err
	}
	provider, err := agentloop.NewProvider(profile)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	log.Info().Str("provider", provider.Name()).Str("model", profile.Model).Msg("AI provider initialized")

	d.loop = agentloop.New(provider, store, responder, agentloop.Config{
		Model:         profile.Model,
		SystemPrompt:  d.config.Agent.SystemPrompt,
		Temperature:   d.config.Agent.Temperature,
		MaxTokens:     d.config.Agent.MaxTokens,
		HistoryWindow: d.config.Agent.HistoryWindow,
	})

	d.policy = config.NewLivePolicy(loader, d.config)
	d.coordinator = turnqueue.New(d.loop, store, d.eventService, d.policy)
	log.Info().Msg("Run coordinator initialized")

	if d.config.Channels.Gateway.Enabled {
		server, err := gateway.NewServer(gateway.Config{
			Host:         d.config.Gateway.Host,
			Port:         d.config.Gateway.Port,
			SharedSecret: d.config.Gateway.SharedSecret,
			Dispatcher:   d.coordinator,
			Store:        store,
			Hub:          d.hub,
			Logger:       log,
		})
		if err != nil {
			return fmt.Errorf("failed to create gateway server: %w", err)
		}
		d.gatewayServer = server
		log.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server initialized")
	}

	if d.telegramBot != nil {
		d.telegramBot.SetMessageHandler(telegram.NewIngress(d.coordinator, log))
		d.telegramBot.SetCommandHandler(telegram.NewCommands(d.telegramBot, d.coordinator, log))
	}

	maxAge := time.Duration(d.config.Session.CleanupMaxAgeDays) * 24 * time.Hour
	d.cleanup = session.NewCleanup(store, maxAge)

	return nil
}

// Start brings up the channels, the policy watcher and the cleanup schedule.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.logger.GetZerolog()
	log.Info().Msg("Starting Veles daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.policy.Start(); err != nil {
		log.Warn().Err(err).Msg("Queue policy watcher failed to start, modes are fixed until restart")
	}

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
	}

	if d.telegramBot != nil {
		if err := d.telegramBot.Start(); err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
	}

	if err := d.cleanup.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start session cleanup")
	}

	log.Info().Msg("Daemon started")
	return nil
}

// Stop shuts everything down. Channels stop first so no new work arrives
// while the coordinator drains.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	log := d.logger.GetZerolog()
	log.Info().Msg("Stopping Veles daemon")

	if d.telegramBot != nil {
		if err := d.telegramBot.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop telegram bot")
		}
	}

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	if d.cleanup != nil && d.cleanup.IsRunning() {
		if err := d.cleanup.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop session cleanup")
		}
	}

	if err := d.policy.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop queue policy watcher")
	}

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	if err := observability.GetAuditLogger().Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close audit logger")
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zl := d.logger.GetZerolog()
	zl.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		zl.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status reports whether the daemon is running and for how long.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Status describes the daemon's run state.
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

// GetConfig returns the daemon configuration.
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetCoordinator returns the run coordinator.
func (d *Daemon) GetCoordinator() *turnqueue.Coordinator {
	return d.coordinator
}

// GetSessionStore returns the session store.
func (d *Daemon) GetSessionStore() *session.Store {
	return d.store
}

// GetGatewayServer returns the gateway server, nil when the channel is
// disabled.
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// GetTelegramBot returns the telegram bot, nil when the channel is disabled.
func (d *Daemon) GetTelegramBot() *telegram.Bot {
	return d.telegramBot
}
