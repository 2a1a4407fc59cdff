package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/config"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/database"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/server"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/summary"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "priorities-api",
		Short: "Priorities workshop room server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Room storage driver (sqlite, redis, memory)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("redis-url", defaults.GetString("redis.url"), "Redis connection URL")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	cmd.PersistentFlags().String("session-signing-secret", "", "Participant session signing secret (overrides env)")
	cmd.PersistentFlags().String("summary-model", defaults.GetString("summary.model"), "Chat completions model used for summaries")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.driver", "storage-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.url", "redis-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "session.signing_secret", "session-signing-secret")
	bindFlag(cmd, "summary.model", "summary-model")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := openStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck

	summarizer, err := newSummarizer(appConfig, logger)
	if err != nil {
		return err
	}

	hub, err := rooms.NewHub(rooms.HubConfig{
		Store:       store,
		Summarizer:  summarizer,
		Clock:       time.Now,
		Logger:      logger,
		MailboxSize: appConfig.RoomMailboxSize,
	})
	if err != nil {
		return err
	}

	var sessionValidator server.SessionValidator
	if appConfig.SessionsEnabled() {
		validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
			SigningSecret: []byte(appConfig.SessionSigningSecret),
			Issuer:        appConfig.SessionIssuer,
			CookieName:    appConfig.SessionCookieName,
		})
		if err != nil {
			return err
		}
		sessionValidator = validator
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Hub:              hub,
		Store:            store,
		SessionValidator: sessionValidator,
		AllowedOrigins:   appConfig.AllowedOrigins,
		SendBuffer:       appConfig.ConnectionSendBuffer,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("storage_driver", appConfig.StorageDriver),
			zap.Bool("sessions_enabled", appConfig.SessionsEnabled()),
			zap.Bool("summary_enabled", appConfig.SummaryEnabled()),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serverErr := httpServer.Shutdown(shutdownCtx)
		hubErr := hub.Close(shutdownCtx)
		return errors.Join(serverErr, hubErr)
	case err := <-errCh:
		return err
	}
}

func openStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (storage.Store, func() error, error) {
	switch appConfig.StorageDriver {
	case config.StorageDriverSQLite:
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewSQLiteStore(storage.SQLiteStoreConfig{
			Database: db,
			Clock:    time.Now,
			Logger:   logger,
		})
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return store, sqlDB.Close, nil
	case config.StorageDriverRedis:
		store, err := storage.NewRedisStore(ctx, appConfig.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StorageDriverMemory:
		logger.Warn("room state is kept in memory and lost on restart")
		return storage.NewMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", appConfig.StorageDriver)
	}
}

func newSummarizer(appConfig config.AppConfig, logger *zap.Logger) (*summary.Adapter, error) {
	var generator summary.Generator = summary.DisabledGenerator{}
	if appConfig.SummaryEnabled() {
		chat, err := summary.NewChatCompletionsGenerator(summary.ChatCompletionsConfig{
			Endpoint: appConfig.SummaryEndpoint,
			APIKey:   appConfig.SummaryAPIKey,
			Model:    appConfig.SummaryModel,
			Timeout:  appConfig.SummaryTimeout,
		})
		if err != nil {
			return nil, err
		}
		generator = chat
	} else {
		logger.Info("summary generation disabled: summary.api_key not set")
	}
	return summary.NewAdapter(summary.AdapterConfig{
		Generator: generator,
		Clock:     time.Now,
		Logger:    logger,
	})
}
