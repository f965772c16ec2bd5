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

	"github.com/bhai-cabal/tracker/internal/activity"
	"github.com/bhai-cabal/tracker/internal/auth"
	"github.com/bhai-cabal/tracker/internal/classify"
	"github.com/bhai-cabal/tracker/internal/config"
	"github.com/bhai-cabal/tracker/internal/database"
	"github.com/bhai-cabal/tracker/internal/lock"
	"github.com/bhai-cabal/tracker/internal/logging"
	"github.com/bhai-cabal/tracker/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "tracker-api",
		Short: "Community activity tracker backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token for a transport-layer caller",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := cmd.Flags().GetString("subject")
			if err != nil {
				return err
			}
			return mintToken(subject)
		},
	}
	tokenCmd.Flags().String("subject", "chat-transport", "Subject claim for the service token")
	rootCmd.AddCommand(tokenCmd)

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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Duration("lease-duration", defaults.GetDuration("lease.duration"), "Lock lease length")
	cmd.PersistentFlags().Int("daily-attempt-cap", defaults.GetInt("daily.attempt_cap"), "Attempts per day before exhaustion")
	cmd.PersistentFlags().String("openai-model", defaults.GetString("openai.model"), "Classification model name")
	cmd.PersistentFlags().Duration("openai-timeout", defaults.GetDuration("openai.timeout"), "Classification request timeout")
	cmd.PersistentFlags().String("signing-secret", "", "API signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "lease.duration", "lease-duration")
	bindFlag(cmd, "daily.attempt_cap", "daily-attempt-cap")
	bindFlag(cmd, "openai.model", "openai-model")
	bindFlag(cmd, "openai.timeout", "openai-timeout")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

func mintToken(subject string) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningKey),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
	})
	token, expiresIn, err := issuer.IssueServiceToken(subject)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", token)
	fmt.Fprintf(os.Stderr, "expires in %d seconds\n", expiresIn)
	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningKey),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
	})

	lockManager, err := lock.NewManager(lock.ManagerConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	gateway, err := classify.NewOpenAIGateway(classify.GatewayConfig{
		APIKey:  appConfig.OpenAIAPIKey,
		Model:   appConfig.OpenAIModel,
		Timeout: appConfig.OpenAITimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	activityService, err := activity.NewService(activity.ServiceConfig{
		Database:        db,
		Locks:           lockManager,
		Gateway:         gateway,
		Logger:          logger,
		LeaseDuration:   appConfig.LeaseDuration,
		DailyAttemptCap: appConfig.DailyAttemptCap,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:   tokenIssuer,
		Activity: activityService,
		Logger:   logger,
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
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
