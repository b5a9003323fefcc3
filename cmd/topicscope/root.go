package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/adapters/mqtt"
	"github.com/coregx/topicscope/adapters/relica"
	"github.com/coregx/topicscope/adapters/stream"
	"github.com/coregx/topicscope/cmd/topicscope/internal/api"
	"github.com/coregx/topicscope/cmd/topicscope/internal/config"
	"github.com/coregx/topicscope/cmd/topicscope/internal/console"
	"github.com/coregx/topicscope/cmd/topicscope/internal/logging"
	"github.com/coregx/topicscope/model"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile     string
	headless    bool
	autoConnect bool

	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "topicscope",
	Short: "Watch MQTT topics and websocket streams from the terminal",
	Long: `topicscope - a console client for MQTT brokers and websocket streams.

Each topic filter you add becomes a session with its own colored log.
Inbound messages fan out to every session whose filter matches them.
Lines typed at the prompt are published (mqtt mode) or sent as frames
(stream mode); lines starting with / are commands, see /help.

Topics and the connection form survive restarts in the configured
database (SQLite in ~/.topicscope by default).

Examples:
  # Start the console
  topicscope

  # Connect right away to the broker from the config file
  topicscope --connect

  # Run without a console, controlled over HTTP
  topicscope --headless --listen 127.0.0.1:8088`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.topicscope/config.yaml)")
	flags.String("listen", "", "serve the HTTP control API on this address")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.BoolVar(&headless, "headless", false, "run without the console until interrupted")
	flags.BoolVar(&autoConnect, "connect", false, "connect once topics are restored")

	_ = v.BindPFlag("server.listen", flags.Lookup("listen"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}

func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Debugf("Config loaded: db=%s, listen=%q, mode=%s", cfg.Database.Driver, cfg.Server.Listen, cfg.Connection.Mode)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warnf("Failed to close database: %v", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := topicscope.ApplyMigrationsWithPrefix(ctx, db, cfg.Database.Prefix); err != nil {
		return err
	}
	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)

	worker, err := topicscope.NewPersistWorker(
		topicscope.WithPersistRepositories(repos.Sessions, repos.FormState),
		topicscope.WithPersistLogger(logger.WithField("component", "persist")),
	)
	if err != nil {
		return fmt.Errorf("create persist worker: %w", err)
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	defer stopWorker()
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	con := console.New(os.Stdout, logger)
	var notifications topicscope.NotificationService = con
	if headless {
		notifications = &topicscope.NoOpNotificationService{}
		if cfg.Client.Notifications {
			notifications = topicscope.NewLoggingNotificationService(logger)
		}
	}

	form := model.DefaultFormState()
	form.Connection = cfg.Connection

	client, err := topicscope.NewClient(
		topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger.WithField("transport", "mqtt"))),
		topicscope.WithTransport(model.ModeStream, stream.NewTransport(logger.WithField("transport", "stream"))),
		topicscope.WithLogger(logger),
		topicscope.WithNotifications(notifications),
		topicscope.WithPersistence(worker),
		topicscope.WithFormState(form),
		topicscope.WithIdleCheckInterval(time.Duration(cfg.Client.IdleCheckInterval)*time.Millisecond),
		topicscope.WithSessionDefaults(topicscope.SessionOptions{
			QoS:     byte(cfg.Client.QoS),
			MaxLogs: cfg.Client.MaxLogs,
		}),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer func() {
		// Run writes what is queued on its way out; Close picks up anything
		// saved after that.
		client.Disconnect()
		stopWorker()
		<-workerDone

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if closeErr := client.Close(closeCtx); closeErr != nil {
			logger.Warnf("Failed to flush state: %v", closeErr)
		}
	}()

	if err := client.Load(ctx); err != nil {
		logger.Warnf("Failed to restore state: %v", err)
	}
	logger.Infof("Restored %d topics", len(client.Sessions()))

	if cfg.Server.Listen != "" {
		server := startAPI(cfg.Server.Listen, client, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("HTTP server forced to shutdown: %v", err)
			}
		}()
	}

	if autoConnect {
		_ = client.Connect()
	}

	if headless {
		<-ctx.Done()
		logger.Info("Shutting down")
		return nil
	}

	con.Attach(client)
	return con.Run(ctx, os.Stdin)
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.GetDSN()
	if cfg.Driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func startAPI(addr string, client *topicscope.Client, logger topicscope.Logger) *http.Server {
	mux := http.NewServeMux()
	api.NewHandler(client, logger).Routes(mux)

	server := &http.Server{
		Addr:         addr,
		Handler:      api.LoggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("HTTP API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server failed: %v", err)
		}
	}()
	return server
}
