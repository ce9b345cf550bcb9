package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/app"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/service"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "support-desk",
	Short:         "Support desk API with realtime ticket rooms",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations and exit",
	RunE:  runMigrate,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	RunE:  runCreateAdmin,
}

var (
	adminEmailFlag    string
	adminPasswordFlag string
)

func init() {
	createAdminCmd.Flags().StringVar(&adminEmailFlag, "email", "", "Admin email (required)")
	createAdminCmd.Flags().StringVar(&adminPasswordFlag, "password", "", "Admin password (required)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

func main() {
	// no subcommand means serve
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Postgres, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pg.Pool, os.DirFS(cfg.Postgres.MigrationsDir), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	opts := app.Options{
		Config:   cfg,
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
		Repos:    app.NewPostgresRepositories(pg.Pool),
		Postgres: pg,
	}

	redisRequired := cfg.Realtime.Backplane == config.BackplaneRedis
	if redisRequired {
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, true, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		opts.Redis = rdb.Client
		opts.RedisHealth = rdb
	}

	application, err := app.New(ctx, opts)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("backplane", cfg.Realtime.Backplane))
		errCh <- application.Fiber.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-waitForSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	return application.Shutdown(shutdownTimeout)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := openPostgres(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	applied, err := persistence.RunMigrations(cmd.Context(), pg.Pool, os.DirFS(cfg.Postgres.MigrationsDir), logger)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration(s)\n", applied)
	return nil
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := openPostgres(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	repos := app.NewPostgresRepositories(pg.Pool)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     repos.Users,
		SettingsRepo: repos.Settings,
		Logger:       logger,
	})
	user, err := authService.CreateAdmin(cmd.Context(), adminEmailFlag, adminPasswordFlag)
	if err != nil {
		return err
	}
	fmt.Printf("created admin %s (id %d)\n", user.Email, user.ID)
	return nil
}

func waitForSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
