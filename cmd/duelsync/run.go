package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/duelsync/pkg/api"
	"github.com/cbodonnell/duelsync/pkg/config"
	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/recorder"
	"github.com/cbodonnell/duelsync/pkg/repositories"
	"github.com/cbodonnell/duelsync/pkg/session"
	"github.com/cbodonnell/duelsync/pkg/version"
)

const shutdownTimeout = 5 * time.Second

type RunOptions struct {
	*RootOptions
	LocalID      int
	BrokerHost   string
	BrokerPort   int
	API          bool
	APIPort      int
	RecordPath   string
	ExitOnLogout bool
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and keep the duel state in sync",
		Long: `Connect to the broker as one of the two players and keep the local
duel state in sync with the game server until interrupted.

Examples:
  duelsync run --local-id 1 --broker-host 192.168.1.10
  duelsync run -c duelsync.yaml --api --record match.zst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.LocalID, "local-id", 1, "player slot chosen at login (1 or 2)")
	cmd.Flags().StringVar(&opts.BrokerHost, "broker-host", config.DefaultBrokerHost, "MQTT broker host")
	cmd.Flags().IntVar(&opts.BrokerPort, "broker-port", config.DefaultBrokerPort, "MQTT broker port")
	cmd.Flags().BoolVar(&opts.API, "api", false, "serve the diagnostics API")
	cmd.Flags().IntVar(&opts.APIPort, "api-port", config.DefaultAPIPort, "diagnostics API port")
	cmd.Flags().StringVar(&opts.RecordPath, "record", "", "record inbound messages to this file")
	cmd.Flags().BoolVar(&opts.ExitOnLogout, "exit-on-logout", true, "stop once the local player has logged out")

	return cmd
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, opts *RunOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("local-id") {
		cfg.Session.LocalID = opts.LocalID
	}
	if flags.Changed("broker-host") {
		cfg.Broker.Host = opts.BrokerHost
	}
	if flags.Changed("broker-port") {
		cfg.Broker.Port = opts.BrokerPort
	}
	if flags.Changed("api") {
		cfg.API.Enabled = opts.API
	}
	if flags.Changed("api-port") {
		cfg.API.Port = opts.APIPort
	}
	if opts.RecordPath != "" {
		cfg.Recorder.Enabled = true
		cfg.Recorder.Path = opts.RecordPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.Default()
	logger.Info("Starting duelsync version %s as player %d", version.Get(), cfg.Session.LocalID)

	var repository repositories.Repository
	if cfg.Repository.URL != "" {
		r, err := repositories.NewRepository(ctx, cfg.Repository.URL)
		if err != nil {
			return fmt.Errorf("failed to open match log: %v", err)
		}
		defer r.Close(context.Background())
		repository = r
	}

	sessionOpts := session.NewSessionOptions{
		Config:     cfg,
		Repository: repository,
		Logger:     logger,
	}
	if cfg.Recorder.Enabled {
		rec, err := recorder.Create(cfg.Recorder.Path)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %v", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("Failed to close recorder: %v", err)
			}
		}()
		logger.Info("Recording inbound messages to %s", cfg.Recorder.Path)
		sessionOpts.Capture = rec
	}

	s, err := session.New(sessionOpts)
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}

	logSessionEvents(s, logger)
	if opts.ExitOnLogout {
		s.Hub().Session.Subscribe(func(e events.SessionEvent) {
			if e.Type == events.SessionEventLoggedOut {
				cancel()
			}
		})
	}

	if cfg.API.Enabled {
		var tls *api.TLSConfig
		if cfg.API.CertFile != "" {
			tls = &api.TLSConfig{CertFile: cfg.API.CertFile, KeyFile: cfg.API.KeyFile}
		}
		apiServer := api.NewAPIServer(api.NewAPIServerOptions{
			Port:    cfg.API.Port,
			TLS:     tls,
			Token:   cfg.API.Token,
			Session: s,
			Logger:  logger.With("api"),
		})
		go apiServer.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				logger.Error("Failed to stop API server: %v", err)
			}
		}()
	}

	logger.Info("Starting session %s", s.ID())
	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info("Session %s stopped", s.ID())
	return nil
}

func logSessionEvents(s *session.Session, logger *log.Logger) {
	hub := s.Hub()
	hub.Connection.Subscribe(func(e events.ConnectionEvent) {
		if e.Connected {
			logger.Info("Connected to broker")
			return
		}
		logger.Warn("Disconnected from broker: %s", e.Reason)
	})
	hub.RemoteActions.SubscribeAll(func(e events.ActionEvent) {
		logger.Info("Opponent %s (hit=%t)", e.Action, e.Hit)
	})
	hub.LocalActions.SubscribeAll(func(e events.ActionEvent) {
		logger.Info("Confirmed %s (hit=%t)", e.Action, e.Hit)
	})
	hub.DevicePrompt.Subscribe(func(e events.DevicePromptEvent) {
		if e.Show {
			logger.Warn("No devices connected for player %d", s.LocalID())
		}
	})
	hub.Session.Subscribe(func(e events.SessionEvent) {
		logger.Info("Player %d %s", e.PlayerID, e.Type)
	})
}
