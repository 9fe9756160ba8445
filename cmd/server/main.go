// Command goldstreak runs the habit tracker API and its background worker.
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

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/goldstreak/internal/api"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/config"
	"github.com/jimdaga/goldstreak/internal/database"
	"github.com/jimdaga/goldstreak/internal/logging"
	"github.com/jimdaga/goldstreak/internal/metrics"
	"github.com/jimdaga/goldstreak/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// skipWorker disables the embedded worker in serve mode
	skipWorker bool
	// statusOnly makes migrate report the schema version without applying
	statusOnly bool
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "goldstreak",
	Short:        "Habit tracker API with AI-generated encouragement",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().BoolVar(&skipWorker, "no-worker", false, "do not run the background worker in this process")
	migrateCmd.Flags().BoolVar(&statusOnly, "status", false, "print the applied schema version and exit")
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (with the background worker unless --no-worker)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(a *app) error { return serve(cmd.Context(), a) })
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the background worker and scheduler",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(runWorker)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the badge catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(a *app) error {
			if statusOnly {
				v, err := database.CurrentVersion(a.db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v.Version, v.Dirty)
				return nil
			}
			return a.migrate()
		})
	},
}

// withApp loads configuration, builds the services and runs fn
func withApp(fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		return err
	}
	defer a.close()

	return fn(a)
}

func serve(ctx context.Context, a *app) error {
	if err := a.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if !skipWorker && a.cfg.RedisURL != "" {
		stopWorker, err := worker.Start(a.cfg.RedisURL, worker.NewServeMux(a.workerDeps(), a.logger.Named("worker")), a.logger.Named("worker"))
		if err != nil {
			return err
		}
		defer stopWorker()

		stopScheduler, err := worker.StartScheduler(a.schedulerConfig(), a.logger.Named("scheduler"))
		if err != nil {
			return err
		}
		defer stopScheduler()
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	verifier := auth.NewVerifier(auth.Config{
		URL:       a.cfg.SupabaseURL,
		AnonKey:   a.cfg.SupabaseAnonKey,
		JWTSecret: a.cfg.SupabaseJWTSecret,
	}, a.logger.Named("auth"))

	router := api.NewRouter(api.RouterConfig{
		CORSOrigins: a.cfg.CORSOrigins,
		Auth:        verifier.RequireAuth(),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadyChecks: a.readyChecks(),
		Logger:      a.logger.Named("http"),
	}, api.Services{
		Content: a.content,
		Badges:  a.badges,
		Tracker: a.tracker,
	})

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generation can be slow
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http_server_starting", zap.String("port", a.cfg.Port), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting_down_server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server_stopped")
	return nil
}

// runWorker blocks until the asynq server receives a shutdown signal
func runWorker(a *app) error {
	if a.cfg.RedisURL == "" {
		return errors.New("worker mode requires REDIS_URL")
	}

	stopScheduler, err := worker.StartScheduler(a.schedulerConfig(), a.logger.Named("scheduler"))
	if err != nil {
		return err
	}
	defer stopScheduler()

	return worker.Run(a.cfg.RedisURL, worker.NewServeMux(a.workerDeps(), a.logger.Named("worker")), a.logger.Named("worker"))
}
