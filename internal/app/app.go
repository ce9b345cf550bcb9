// Package app assembles the service from its parts. cmd/api uses it with
// Postgres-backed repositories; tests use it with in-memory ones.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

const (
	notificationQueueSize = 1024
	notificationWorkers   = 2
)

// Repositories bundles the storage the services run on.
type Repositories struct {
	Users    repository.UserRepository
	Tickets  repository.TicketRepository
	Messages repository.MessageRepository
	Settings repository.SettingsRepository
}

// NewPostgresRepositories builds every repository over one pool.
func NewPostgresRepositories(db repository.TxBeginner) Repositories {
	return Repositories{
		Users:    repository.NewUserRepository(db),
		Tickets:  repository.NewTicketRepository(db),
		Messages: repository.NewMessageRepository(db),
		Settings: repository.NewSettingsRepository(db),
	}
}

// Options configures New.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Repos   Repositories
	// Redis is required when the realtime backplane is redis.
	Redis *redis.Client
	// Postgres and RedisHealth are probed by /health/ready; nil means disabled.
	Postgres    handlers.Pinger
	RedisHealth handlers.Pinger
}

// App is the assembled service.
type App struct {
	Fiber      *fiber.App
	Router     *realtime.Router
	Dispatcher events.Dispatcher
	Tickets    *service.TicketService
	Auth       *service.AuthService

	worker    *worker.NotificationWorker
	backplane *realtime.RedisBackplane
	logger    *zap.Logger
}

// New wires services, the realtime layer and HTTP routes. With the redis
// backplane it subscribes before returning.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     opts.Repos.Users,
		SettingsRepo: opts.Repos.Settings,
		TokenManager: tokens,
		Logger:       logger.Named("auth"),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  opts.Repos.Tickets,
		MessageRepo: opts.Repos.Messages,
		Dispatcher:  dispatcher,
		AllowReopen: cfg.Tickets.AllowReopen,
		Logger:      logger.Named("tickets"),
	})

	router := realtime.NewRouter(logger.Named("realtime"), opts.Metrics)
	var emitter realtime.Emitter = router
	var backplane *realtime.RedisBackplane
	if cfg.Realtime.Backplane == config.BackplaneRedis {
		if opts.Redis == nil {
			return nil, fmt.Errorf("realtime backplane %q requires redis", cfg.Realtime.Backplane)
		}
		backplane = realtime.NewRedisBackplane(opts.Redis, cfg.Realtime.RedisChannel, router, logger.Named("backplane"))
		if err := backplane.Start(ctx); err != nil {
			return nil, fmt.Errorf("start backplane: %w", err)
		}
		emitter = backplane
	}
	realtime.NewBroadcaster(emitter, logger.Named("broadcast"), opts.Metrics).Register(dispatcher)

	notifications := service.NewNotificationService(opts.Repos.Settings, logger.Named("notify"), cfg.Notification)
	notifyWorker := worker.NewNotificationWorker(notifications, notificationQueueSize, logger.Named("notify"))
	notifyWorker.Register(dispatcher)
	notifyWorker.Start(notificationWorkers)

	wsServer := realtime.NewServer(router, ticketService, tokens, cfg.Realtime, logger.Named("ws"), opts.Metrics)

	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, opts.Metrics, cfg.App.RequestTimeout(), cfg.App.ClientURL)

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, opts.Postgres, opts.RedisHealth, router.Connections),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Messages:       handlers.NewMessagesHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, opts.Repos.Users),
		Realtime:       wsServer,
		WSOrigins:      wsOrigins(cfg.App.ClientURL),
	}
	if opts.Metrics != nil {
		routes.Metrics = opts.Metrics.Registry
	}
	httptransport.RegisterRoutes(fiberApp, routes)

	return &App{
		Fiber:      fiberApp,
		Router:     router,
		Dispatcher: dispatcher,
		Tickets:    ticketService,
		Auth:       authService,
		worker:     notifyWorker,
		backplane:  backplane,
		logger:     logger,
	}, nil
}

// Shutdown stops accepting requests, then drains background work.
func (a *App) Shutdown(timeout time.Duration) error {
	err := a.Fiber.ShutdownWithTimeout(timeout)
	a.Router.CloseAll()
	if a.backplane != nil {
		if cerr := a.backplane.Close(); cerr != nil {
			a.logger.Warn("close backplane", zap.Error(cerr))
		}
	}
	a.worker.Stop()
	return err
}

func wsOrigins(clientURL string) []string {
	if clientURL == "" || clientURL == "*" {
		return []string{"*"}
	}
	return []string{clientURL}
}
