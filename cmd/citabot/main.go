package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citabot/internal/booking"
	"citabot/internal/bus"
	"citabot/internal/channel"
	"citabot/internal/config"
	"citabot/internal/domain"
	"citabot/internal/history"
	"citabot/internal/metrics"
	"citabot/internal/scheduler"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "citabot",
		Short: "Citabot: WhatsApp appointment booking bot for clinics",
		Long:  "Citabot answers WhatsApp messages, walks patients through booking an appointment and confirms the slot against the clinic scheduler.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.citabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(appointmentsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bot (webhook server + booking engine)",
		Long:  "Starts the WhatsApp webhook server and the booking engine. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local .env files carry the tokens in development setups.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env file")
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setLogLevel(cfg.General.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(100, logger)

	var apptStore domain.AppointmentStore
	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
		if err != nil {
			return fmt.Errorf("appointment store: %w", err)
		}
		defer store.Close()
		apptStore = store
	}

	gateway := scheduler.New(cfg.Scheduler, logger)
	sessions := booking.NewMemoryStore()
	replies := booking.LoadReplies(cfg.General.RepliesFile, logger)

	engine := booking.NewEngine(booking.EngineConfig{
		Store:   sessions,
		Gateway: gateway,
		History: apptStore,
		Replies: replies,
		Logger:  logger,
	})

	dispatcher := booking.NewDispatcher(booking.DispatcherConfig{
		Engine:      engine,
		Bus:         messageBus,
		Store:       sessions,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentMessages,
	})
	go dispatcher.Run(ctx)

	whatsapp := channel.NewWhatsApp(cfg.Channels.WhatsApp, logger)
	if err := whatsapp.Start(ctx, messageBus); err != nil {
		return fmt.Errorf("whatsapp channel: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", rootHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, "ok")
	})
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}
	webhookPath := cfg.Channels.WhatsApp.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook"
	}
	mux.Handle(webhookPath, whatsapp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("citabot listening", "addr", addr, "webhook", webhookPath, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "err", err)
	}
	whatsapp.Stop()
	messageBus.Close()

	logger.Info("shutdown complete")
	return nil
}

func rootHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, "Bot de citas OK")
	}
}

func setLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func appointmentsCmd() *cobra.Command {
	var phone string
	var limit int

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List recorded appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("appointment history is disabled in config")
			}

			store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
			if err != nil {
				return fmt.Errorf("appointment store: %w", err)
			}
			defer store.Close()

			ctx := context.Background()
			var appts []domain.Appointment
			if phone != "" {
				appts, err = store.ListByPhone(ctx, phone, limit)
			} else {
				appts, err = store.ListRecent(ctx, limit)
			}
			if err != nil {
				return err
			}

			data, _ := json.MarshalIndent(appts, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "filter by phone number")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}
